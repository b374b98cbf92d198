package models

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Store 以整集合替换的方式持久化三个集合与兜底文件缓存
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Avatar{}, &Project{}, &SavedVideo{}, &FileBlob{})
}

func (s *Store) LoadAvatars(ctx context.Context) ([]Avatar, error) {
	var items []Avatar
	if err := s.db.WithContext(ctx).Order("position asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load avatars: %w", err)
	}
	return items, nil
}

func (s *Store) SaveAvatars(ctx context.Context, items []Avatar) error {
	rows := make([]Avatar, len(items))
	for i, a := range items {
		a.Position = i
		rows[i] = a
	}
	return replaceAll(s.db.WithContext(ctx), rows)
}

func (s *Store) LoadProjects(ctx context.Context) ([]Project, error) {
	var items []Project
	if err := s.db.WithContext(ctx).Order("position asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	return items, nil
}

func (s *Store) SaveProjects(ctx context.Context, items []Project) error {
	rows := make([]Project, len(items))
	for i, p := range items {
		p.Position = i
		rows[i] = p
	}
	return replaceAll(s.db.WithContext(ctx), rows)
}

func (s *Store) LoadVideos(ctx context.Context) ([]SavedVideo, error) {
	var items []SavedVideo
	if err := s.db.WithContext(ctx).Order("position asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load videos: %w", err)
	}
	return items, nil
}

func (s *Store) SaveVideos(ctx context.Context, items []SavedVideo) error {
	rows := make([]SavedVideo, len(items))
	for i, v := range items {
		v.Position = i
		rows[i] = v
	}
	return replaceAll(s.db.WithContext(ctx), rows)
}

// LoadFileBlobs 按插入顺序返回项目的文件缓存
func (s *Store) LoadFileBlobs(ctx context.Context, projectID string) ([]FileBlob, error) {
	var items []FileBlob
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("position asc").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load file blobs: %w", err)
	}
	return items, nil
}

func (s *Store) SaveFileBlobs(ctx context.Context, projectID string, blobs []FileBlob) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&FileBlob{}).Error; err != nil {
			return fmt.Errorf("clear file blobs: %w", err)
		}
		if len(blobs) == 0 {
			return nil
		}
		rows := make([]FileBlob, len(blobs))
		for i, b := range blobs {
			b.ProjectID = projectID
			b.Position = i
			rows[i] = b
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("save file blobs: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteFileBlobs(ctx context.Context, projectID string) error {
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&FileBlob{}).Error; err != nil {
		return fmt.Errorf("delete file blobs: %w", err)
	}
	return nil
}

// replaceAll 在事务内清空表后批量写入，读者不会看到半更新的集合
func replaceAll[T any](db *gorm.DB, rows []T) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(new(T)).Error; err != nil {
			return fmt.Errorf("clear collection: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("write collection: %w", err)
		}
		return nil
	})
}
