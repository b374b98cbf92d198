package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"BrandAmbassador-server/config"
	"BrandAmbassador-server/models"
	"BrandAmbassador-server/pipeline"
	"BrandAmbassador-server/routers"
	"BrandAmbassador-server/service"
)

func main() {
	config.InitConfig()
	cfg := config.AppConfig
	fmt.Println("Server starting on port", cfg.Server.Port)
	models.InitDB()
	fmt.Println("Database initialized")

	service.InitRedis()
	service.InitMinIO()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gemini, err := service.NewGeminiClient(ctx, cfg.Gemini, cfg.Studio.Brand)
	if err != nil {
		log.Fatalf("Gemini 初始化失败: %v", err)
	}

	var blobs *service.BlobStore
	if service.MinioClient != nil {
		blobs = service.NewBlobStore(service.MinioClient, cfg.MinIO.Bucket)
	}
	state := pipeline.NewAppState(service.NewPersistence(models.NewStore(models.GormDB), blobs))
	if err := state.Load(ctx); err != nil {
		log.Fatalf("加载数据失败: %v", err)
	}

	deps := pipeline.Collaborators{
		Images:  gemini,
		Text:    gemini,
		Prompts: gemini,
		Videos:  gemini,
		Drive:   service.NewDriveConnector(service.NewTextCache(service.RedisClient, "drive:text:", cfg.Drive.CacheTTL)),
		Media:   service.NewMediaStore(cfg.Studio.MediaDir),
	}

	// 归档需要 Redis 队列和 MinIO 同时可用
	var processor *service.Processor
	if service.RedisClient != nil && blobs != nil {
		service.InitQueue()
		fmt.Println("Queue initialized")
		deps.Archiver = service.NewQueue(service.QueueClient)
		processor = service.NewProcessor(blobs, state)
		processor.StartProcessor(cfg.Studio.ArchiveWorkers)
	}

	studio := pipeline.NewStudio(state, deps, pipeline.Options{
		PollInterval:   cfg.Studio.PollInterval,
		RotateInterval: cfg.Studio.RotateInterval,
	})

	r := routers.InitRouter(studio, cfg.Studio.MediaDir)
	srv := &http.Server{Addr: cfg.Server.Port, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务异常退出: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	studio.Shutdown()
	if processor != nil {
		processor.Shutdown()
	}
	if service.QueueClient != nil {
		_ = service.QueueClient.Close()
	}
}
