package models

// Image 是生成结果或参考图的原始字节，JSON 中 data 为 base64
type Image struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// Clone 返回字节独立的副本，避免调用方修改共享切片
func (i Image) Clone() Image {
	data := make([]byte, len(i.Data))
	copy(data, i.Data)
	return Image{MIMEType: i.MIMEType, Data: data}
}
