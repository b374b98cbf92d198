package models

import "time"

// SavedVideo 记录一次成功生成的视频，创建后不再修改（归档地址除外）
type SavedVideo struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID   string    `gorm:"type:varchar(64);index" json:"projectId"`
	ProjectName string    `json:"projectName"`
	AvatarName  string    `json:"avatarName"`
	VideoURL    string    `json:"videoUrl"`
	Prompt      string    `gorm:"type:text" json:"prompt"`
	Script      string    `gorm:"type:text" json:"script"`
	MusicMood   string    `json:"musicMood"`
	Duration    string    `json:"duration"`
	AspectRatio string    `json:"aspectRatio"`
	VoiceStyle  string    `json:"voiceStyle"`
	ArchiveURL  string    `json:"archiveUrl,omitempty"`
	Position    int       `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (SavedVideo) TableName() string {
	return "saved_video"
}
