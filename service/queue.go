package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"BrandAmbassador-server/config"

	"github.com/hibiken/asynq"
)

const (
	TypeArchiveVideo = "video:archive"
)

type ArchivePayload struct {
	VideoID   string `json:"video_id"`
	LocalPath string `json:"local_path"`
}

var QueueClient *asynq.Client

func redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.Redis.Addr,
		Password: config.AppConfig.Redis.Password,
		DB:       config.AppConfig.Redis.DB,
	}
}

// InitQueue 初始化
func InitQueue() {
	QueueClient = asynq.NewClient(redisOpt())
}

// Queue 把视频归档任务投递到 asynq
type Queue struct {
	client *asynq.Client
}

func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client}
}

func NewArchiveTask(videoID, localPath string) (*asynq.Task, error) {
	payload, err := json.Marshal(ArchivePayload{VideoID: videoID, LocalPath: localPath})
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	return asynq.NewTask(TypeArchiveVideo, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

func (q *Queue) EnqueueArchive(ctx context.Context, videoID, localPath string) error {
	task, err := NewArchiveTask(videoID, localPath)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	log.Printf("[Queue] Task Enqueued: ID=%s, VideoID=%s", info.ID, videoID)
	return nil
}
