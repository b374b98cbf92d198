package models

import (
	"mime"
	"strings"
)

// LocalFile 是文件缓存中的一项；Available 为 false 表示只有元数据、内容不在本地
type LocalFile struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
	Data      []byte `json:"-"`
	Available bool   `json:"available"`
}

func (f LocalFile) Meta() LocalFileMeta {
	return LocalFileMeta{Name: f.Name, Type: f.Type, Size: f.Size}
}

func (f LocalFile) IsImage() bool {
	return strings.HasPrefix(f.Type, "image/")
}

// IsPlainText 忽略 charset 等参数，只比较媒体类型
func (f LocalFile) IsPlainText() bool {
	mediaType, _, err := mime.ParseMediaType(f.Type)
	if err != nil {
		return false
	}
	return mediaType == "text/plain"
}

// FileBlob 是数据库兜底的文件缓存行，对象存储不可用时使用
type FileBlob struct {
	ProjectID string `gorm:"primaryKey;type:varchar(64)"`
	Position  int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string
	Type      string
	Data      []byte
}

func (FileBlob) TableName() string {
	return "file_blob"
}
