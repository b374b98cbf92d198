package models

import (
	"time"

	"gorm.io/datatypes"
)

// LocalFileMeta 只记录本地附件的元数据，内容另存于文件缓存
type LocalFileMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// DriveFileMeta 是 Google Drive 附件的元数据
type DriveFileMeta struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	IconLink string `json:"iconLink,omitempty"`
}

type Project struct {
	ID             string                             `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name           string                             `json:"name"`
	Description    string                             `json:"description"`
	URL            string                             `json:"url"`
	ContextFiles   datatypes.JSONSlice[LocalFileMeta] `json:"contextFilesMeta"`
	DriveFiles     datatypes.JSONSlice[DriveFileMeta] `json:"driveFilesMeta"`
	LinkedAvatarID *string                            `gorm:"type:varchar(64)" json:"linkedAvatarId"`
	Position       int                                `json:"-"`
	CreatedAt      time.Time                          `json:"createdAt"`
	UpdatedAt      time.Time                          `json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}

// FindAvatar 解析弱引用；悬空引用视为未关联
func (p Project) FindAvatar(avatars []Avatar) (Avatar, bool) {
	if p.LinkedAvatarID == nil || *p.LinkedAvatarID == "" {
		return Avatar{}, false
	}
	for _, a := range avatars {
		if a.ID == *p.LinkedAvatarID {
			return a, true
		}
	}
	return Avatar{}, false
}

// EligibleForVideo 当且仅当关联的头像存在且已有全身像
func (p Project) EligibleForVideo(avatars []Avatar) bool {
	a, ok := p.FindAvatar(avatars)
	return ok && a.HasFullBody()
}
