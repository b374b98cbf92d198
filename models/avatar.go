package models

import (
	"fmt"
	"strings"
	"time"
)

// CustomizationOptions 是生成头像时使用的文字描述
type CustomizationOptions struct {
	PersonDescription string `json:"personDescription"`
	Clothing          string `json:"clothing"`
	Hairstyle         string `json:"hairstyle"`
}

// BodyOptions 是生成全身像时使用的文字描述
type BodyOptions struct {
	Clothing string `json:"clothing"`
	Pose     string `json:"pose"`
}

func DefaultCustomizationOptions() CustomizationOptions {
	return CustomizationOptions{
		PersonDescription: "A professional and confident woman, of Middle Eastern descent, in her late 20s",
		Clothing:          "A professional blue business suit jacket",
		Hairstyle:         "Long, dark hair in a professional bun",
	}
}

func DefaultBodyOptions() BodyOptions {
	return BodyOptions{
		Clothing: "A full professional blue business suit with trousers",
		Pose:     "Standing confidently, with a welcoming posture",
	}
}

// Validate 要求三个描述字段均非空
func (o CustomizationOptions) Validate() error {
	var missing []string
	if strings.TrimSpace(o.PersonDescription) == "" {
		missing = append(missing, "personDescription")
	}
	if strings.TrimSpace(o.Clothing) == "" {
		missing = append(missing, "clothing")
	}
	if strings.TrimSpace(o.Hairstyle) == "" {
		missing = append(missing, "hairstyle")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (o BodyOptions) Validate() error {
	if strings.TrimSpace(o.Clothing) == "" || strings.TrimSpace(o.Pose) == "" {
		return fmt.Errorf("clothing and pose are required")
	}
	return nil
}

type Avatar struct {
	ID             string               `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name           string               `json:"name"`
	PortraitImage  Image                `gorm:"serializer:json" json:"portraitImage"`
	FullBodyImage  *Image               `gorm:"serializer:json" json:"fullBodyImage"`
	PortraitPrompt CustomizationOptions `gorm:"serializer:json" json:"portraitPrompt"`
	BodyPrompt     *BodyOptions         `gorm:"serializer:json" json:"bodyPrompt,omitempty"`
	Position       int                  `json:"-"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

func (Avatar) TableName() string {
	return "avatar"
}

// HasFullBody 表示全身像阶段是否已完成
func (a Avatar) HasFullBody() bool {
	return a.FullBodyImage != nil && !a.FullBodyImage.Empty()
}
