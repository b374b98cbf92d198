package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"BrandAmbassador-server/models"

	"github.com/hibiken/asynq"
)

// VideoUploader 是归档目标，生产环境为 BlobStore
type VideoUploader interface {
	UploadVideo(ctx context.Context, localPath, videoID string) (string, error)
}

// VideoRecorder 回写归档地址，生产环境为 pipeline.AppState
type VideoRecorder interface {
	UpdateVideo(ctx context.Context, id string, fn func(v *models.SavedVideo)) (models.SavedVideo, error)
}

// Processor 处理队列任务
type Processor struct {
	uploader VideoUploader
	videos   VideoRecorder
	srv      *asynq.Server
}

func NewProcessor(uploader VideoUploader, videos VideoRecorder) *Processor {
	return &Processor{uploader: uploader, videos: videos}
}

// StartProcessor 启动任务消费者
func (p *Processor) StartProcessor(concurrency int) {
	p.srv = asynq.NewServer(
		redisOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: asynqLogger{},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeArchiveVideo, p.HandleArchiveTask)

	log.Printf("Starting Archive Processor with concurrency %d...", concurrency)
	go func() {
		if err := p.srv.Run(mux); err != nil {
			log.Printf("could not run archive processor: %v", err)
		}
	}()
}

func (p *Processor) Shutdown() {
	if p.srv != nil {
		p.srv.Shutdown()
	}
}

// HandleArchiveTask 把本地视频上传到 MinIO 并记录归档地址
func (p *Processor) HandleArchiveTask(ctx context.Context, t *asynq.Task) error {
	var payload ArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if _, err := os.Stat(payload.LocalPath); err != nil {
		// 本地文件已被删除，重试无意义
		return fmt.Errorf("local video %s: %v: %w", payload.LocalPath, err, asynq.SkipRetry)
	}

	log.Printf("[Queue] Archiving video %s", payload.VideoID)
	archiveURL, err := p.uploader.UploadVideo(ctx, payload.LocalPath, payload.VideoID)
	if err != nil {
		log.Printf("[Queue] 归档失败: %v", err)
		return err
	}

	_, err = p.videos.UpdateVideo(ctx, payload.VideoID, func(v *models.SavedVideo) {
		v.ArchiveURL = archiveURL
	})
	if err != nil {
		// 视频已从相册删除，归档文件保留在 bucket 中
		log.Printf("[Queue] 记录归档地址失败 %s: %v", payload.VideoID, err)
		return nil
	}
	log.Printf("[Queue] Video %s archived", payload.VideoID)
	return nil
}

// asynqLogger 把 asynq 内部日志转到标准 log
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) {}

func (asynqLogger) Info(args ...interface{}) {
	log.Print(append([]interface{}{"[asynq] "}, args...)...)
}

func (asynqLogger) Warn(args ...interface{}) {
	log.Print(append([]interface{}{"[asynq] WARN "}, args...)...)
}

func (asynqLogger) Error(args ...interface{}) {
	log.Print(append([]interface{}{"[asynq] ERROR "}, args...)...)
}

func (asynqLogger) Fatal(args ...interface{}) {
	log.Fatal(append([]interface{}{"[asynq] FATAL "}, args...)...)
}
