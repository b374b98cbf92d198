package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"BrandAmbassador-server/models"
	"BrandAmbassador-server/pipeline"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const googleDocMIME = "application/vnd.google-apps.document"

// 单个文件最多读取 2MB 文本
const maxDriveTextBytes = 2 << 20

// DriveConnector 用浏览器端拿到的 OAuth access token 建立 Drive 客户端
type DriveConnector struct {
	cache *TextCache
}

func NewDriveConnector(cache *TextCache) *DriveConnector {
	return &DriveConnector{cache: cache}
}

func (c *DriveConnector) Connect(ctx context.Context, accessToken string) (pipeline.DriveFetcher, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("drive: empty access token")
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	svc, err := drive.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &DriveFetcher{svc: svc, cache: c.cache, scope: tokenScope(accessToken)}, nil
}

type DriveFetcher struct {
	svc   *drive.Service
	cache *TextCache
	// scope 区分不同 token 的缓存，没有权限的会话读不到别人的内容
	scope string
}

// tokenScope 取 token 摘要的前 16 位十六进制，不把 token 本身写进 Redis
func tokenScope(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:8])
}

func (f *DriveFetcher) cacheKey(fileID string) string {
	return f.scope + ":" + fileID
}

// ExportText Google Doc 导出为纯文本，text/* 直接下载，其他类型返回错误由调用方降级
func (f *DriveFetcher) ExportText(ctx context.Context, file models.DriveFileMeta) (string, error) {
	key := f.cacheKey(file.ID)
	if text, ok := f.cache.Get(ctx, key); ok {
		return text, nil
	}

	var text string
	var err error
	switch {
	case file.MimeType == googleDocMIME:
		text, err = f.export(ctx, file.ID)
	case strings.HasPrefix(file.MimeType, "text/"):
		text, err = f.download(ctx, file.ID)
	default:
		return "", fmt.Errorf("drive: unsupported mime type %s", file.MimeType)
	}
	if err != nil {
		log.Printf("[drive] 读取 %s(%s) 失败: %v", file.Name, file.ID, err)
		return "", err
	}
	if err := f.cache.Set(ctx, key, text); err != nil {
		log.Printf("[drive] %v", err)
	}
	return text, nil
}

func (f *DriveFetcher) export(ctx context.Context, id string) (string, error) {
	resp, err := f.svc.Files.Export(id, "text/plain").Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("drive export: %w", err)
	}
	defer resp.Body.Close()
	return readText(resp.Body)
}

func (f *DriveFetcher) download(ctx context.Context, id string) (string, error) {
	resp, err := f.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("drive download: %w", err)
	}
	defer resp.Body.Close()
	return readText(resp.Body)
}

func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDriveTextBytes))
	if err != nil {
		return "", fmt.Errorf("read drive body: %w", err)
	}
	return string(data), nil
}
