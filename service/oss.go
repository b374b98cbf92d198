package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"BrandAmbassador-server/config"
	"BrandAmbassador-server/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var MinioClient *minio.Client

// InitMinIO 初始化连接，未配置时跳过，文件缓存回落到数据库
func InitMinIO() {
	if !config.AppConfig.MinIOConfigured() {
		log.Println("MinIO 未配置，文件缓存使用数据库存储")
		return
	}
	cfg := config.AppConfig.MinIO
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		log.Printf("MinIO 不可用，文件缓存使用数据库存储: %v", err)
		return
	}
	MinioClient = client
	log.Println("MinIO 连接成功")
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("检查 Bucket 失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("创建 Bucket 失败: %w", err)
	}
	log.Printf("Bucket '%s' 已创建", bucket)
	return nil
}

// BlobStore 把项目文件缓存和视频归档放在同一个 bucket 下
type BlobStore struct {
	client *minio.Client
	bucket string
}

func NewBlobStore(client *minio.Client, bucket string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket}
}

func fileCachePrefix(projectID string) string {
	return fmt.Sprintf("filecache/%s/", projectID)
}

// fileCacheObject 用序号前缀保留文件的插入顺序
func fileCacheObject(projectID string, position int, name string) string {
	return fmt.Sprintf("%s%03d/%s", fileCachePrefix(projectID), position, filepath.Base(name))
}

// parseFileCacheObject 从对象名还原序号和文件名
func parseFileCacheObject(projectID, key string) (int, string, bool) {
	rest := strings.TrimPrefix(key, fileCachePrefix(projectID))
	if rest == key {
		return 0, "", false
	}
	pos, name, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		return 0, "", false
	}
	n, err := strconv.Atoi(pos)
	if err != nil {
		return 0, "", false
	}
	return n, name, true
}

func (s *BlobStore) LoadFiles(ctx context.Context, projectID string) ([]models.LocalFile, error) {
	type entry struct {
		pos  int
		file models.LocalFile
	}
	var entries []entry
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    fileCachePrefix(projectID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list file cache: %w", obj.Err)
		}
		pos, name, ok := parseFileCacheObject(projectID, obj.Key)
		if !ok {
			continue
		}
		data, contentType, err := s.get(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{pos: pos, file: models.LocalFile{
			Name:      name,
			Type:      contentType,
			Size:      int64(len(data)),
			Data:      data,
			Available: true,
		}})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })
	files := make([]models.LocalFile, len(entries))
	for i, e := range entries {
		files[i] = e.file
	}
	return files, nil
}

func (s *BlobStore) get(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()
	info, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", key, err)
	}
	return data, info.ContentType, nil
}

// SaveFiles 整体替换项目的文件缓存
func (s *BlobStore) SaveFiles(ctx context.Context, projectID string, files []models.LocalFile) error {
	if err := s.DeleteFiles(ctx, projectID); err != nil {
		return err
	}
	for i, f := range files {
		contentType := f.Type
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		key := fileCacheObject(projectID, i, f.Name)
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(f.Data), int64(len(f.Data)), minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return fmt.Errorf("上传到 MinIO 失败: %w", err)
		}
	}
	return nil
}

func (s *BlobStore) DeleteFiles(ctx context.Context, projectID string) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    fileCachePrefix(projectID),
		Recursive: true,
	})
	var errs []error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err))
	}
	return errors.Join(errs...)
}

// UploadVideo 上传本地视频文件到 MinIO，返回可访问的 URL
func (s *BlobStore) UploadVideo(ctx context.Context, localPath, videoID string) (string, error) {
	objectName := fmt.Sprintf("videos/%s/%s", videoID, filepath.Base(localPath))
	_, err := s.client.FPutObject(ctx, s.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", fmt.Errorf("上传 MinIO 失败: %w", err)
	}

	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, 72*time.Hour, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("生成签名 URL 失败: %w", err)
	}
	log.Printf("文件已上传: %s", objectName)
	return presignedURL.String(), nil
}
