package pipeline

import (
	"context"

	"BrandAmbassador-server/models"
)

// SubjectKind 告诉增强模型图中是头像还是全身像
type SubjectKind string

const (
	SubjectPortrait SubjectKind = "portrait"
	SubjectFullBody SubjectKind = "full body"
)

type ImageGenerator interface {
	GeneratePortraits(ctx context.Context, opts models.CustomizationOptions) ([]models.Image, error)
	// GenerateFullBody 只接收头像的文字描述作为一致性锚点，不传像素
	GenerateFullBody(ctx context.Context, anchor models.CustomizationOptions, body models.BodyOptions) ([]models.Image, error)
	EnhanceRealism(ctx context.Context, img models.Image, kind SubjectKind) (models.Image, error)
}

type TextRefiner interface {
	RefineText(ctx context.Context, text, domainHint string) (string, error)
}

// PromptFields 是提示词精炼的结构化输入
type PromptFields struct {
	Script      string
	MusicMood   string
	Duration    string
	AspectRatio string
	VoiceStyle  string
}

type PromptRefiner interface {
	RefinePrompt(ctx context.Context, fields PromptFields, contextText string, images []models.Image) (string, error)
}

// JobHandle 是外部长任务的不透明引用
type JobHandle struct {
	Name string `json:"name"`
}

type JobStatus struct {
	Done     bool
	MediaRef string
}

type VideoGenerator interface {
	SubmitVideoJob(ctx context.Context, prompt string, identity models.Image) (JobHandle, error)
	PollJob(ctx context.Context, job JobHandle) (JobStatus, error)
	FetchMedia(ctx context.Context, mediaRef string) ([]byte, error)
}

// DriveFetcher 读取已授权 Drive 中文件的文本内容
type DriveFetcher interface {
	ExportText(ctx context.Context, file models.DriveFileMeta) (string, error)
}

type DriveConnector interface {
	Connect(ctx context.Context, accessToken string) (DriveFetcher, error)
}

type StoredMedia struct {
	URL  string
	Path string
}

// MediaStore 把视频字节落地为可本地播放的地址
type MediaStore interface {
	SaveVideo(ctx context.Context, videoID string, data []byte) (StoredMedia, error)
	// DeleteVideo 文件不存在时返回 nil
	DeleteVideo(ctx context.Context, videoID string) error
}

type Archiver interface {
	EnqueueArchive(ctx context.Context, videoID, localPath string) error
}

// Persistence 是三个集合与按项目划分的文件缓存的持久化接口
type Persistence interface {
	LoadAvatars(ctx context.Context) ([]models.Avatar, error)
	SaveAvatars(ctx context.Context, items []models.Avatar) error
	LoadProjects(ctx context.Context) ([]models.Project, error)
	SaveProjects(ctx context.Context, items []models.Project) error
	LoadVideos(ctx context.Context) ([]models.SavedVideo, error)
	SaveVideos(ctx context.Context, items []models.SavedVideo) error
	LoadFileCache(ctx context.Context, projectID string) ([]models.LocalFile, error)
	SaveFileCache(ctx context.Context, projectID string, files []models.LocalFile) error
	DeleteFileCache(ctx context.Context, projectID string) error
}
