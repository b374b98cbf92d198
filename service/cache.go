package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"BrandAmbassador-server/config"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis 连接失败时不退出，Drive 缓存自动降级为直连
func InitRedis() {
	cfg := config.AppConfig.Redis
	if cfg.Addr == "" {
		log.Println("Redis 未配置，跳过缓存")
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis 连接失败，跳过缓存: %v", err)
		_ = client.Close()
		return
	}
	RedisClient = client
	log.Println("Redis 连接成功")
}

// TextCache 是带过期时间的文本缓存，client 为 nil 时所有操作都是空操作
type TextCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewTextCache(client *redis.Client, prefix string, ttl time.Duration) *TextCache {
	return &TextCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *TextCache) key(id string) string {
	return c.prefix + id
}

func (c *TextCache) Get(ctx context.Context, id string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, c.key(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[cache] get %s failed: %v", c.key(id), err)
		}
		return "", false
	}
	return val, true
}

func (c *TextCache) Set(ctx context.Context, id, value string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, c.key(id), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", c.key(id), err)
	}
	return nil
}
