package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"BrandAmbassador-server/pipeline"
)

// MediaRoute 是 /media 静态目录挂载点
const MediaRoute = "/media"

// MediaStore 把生成的视频写到本地目录，通过 /media 静态路由播放
type MediaStore struct {
	dir string
}

func NewMediaStore(dir string) *MediaStore {
	return &MediaStore{dir: dir}
}

func (m *MediaStore) Dir() string {
	return m.dir
}

func (m *MediaStore) SaveVideo(ctx context.Context, videoID string, data []byte) (pipeline.StoredMedia, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.StoredMedia{}, err
	}
	if len(data) == 0 {
		return pipeline.StoredMedia{}, fmt.Errorf("empty video data for %s", videoID)
	}
	videoDir := filepath.Join(m.dir, "videos")
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		return pipeline.StoredMedia{}, fmt.Errorf("create media dir: %w", err)
	}
	name := videoFileName(videoID)
	path := filepath.Join(videoDir, name)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return pipeline.StoredMedia{}, fmt.Errorf("write video: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return pipeline.StoredMedia{}, fmt.Errorf("rename video: %w", err)
	}
	return pipeline.StoredMedia{
		URL:  fmt.Sprintf("%s/videos/%s", MediaRoute, name),
		Path: path,
	}, nil
}

// DeleteVideo 删除本地视频文件，已经不存在也算成功
func (m *MediaStore) DeleteVideo(ctx context.Context, videoID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(m.dir, "videos", videoFileName(videoID))
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove video: %w", err)
	}
	return nil
}

func videoFileName(videoID string) string {
	return filepath.Base(videoID) + ".mp4"
}
