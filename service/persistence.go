package service

import (
	"context"

	"BrandAmbassador-server/models"
)

// Persistence 组合数据库集合存储与文件缓存；blobs 为 nil 时文件内容存数据库
type Persistence struct {
	*models.Store
	blobs *BlobStore
}

func NewPersistence(store *models.Store, blobs *BlobStore) *Persistence {
	return &Persistence{Store: store, blobs: blobs}
}

func (p *Persistence) LoadFileCache(ctx context.Context, projectID string) ([]models.LocalFile, error) {
	if p.blobs != nil {
		return p.blobs.LoadFiles(ctx, projectID)
	}
	rows, err := p.Store.LoadFileBlobs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	files := make([]models.LocalFile, len(rows))
	for i, r := range rows {
		files[i] = models.LocalFile{
			Name:      r.Name,
			Type:      r.Type,
			Size:      int64(len(r.Data)),
			Data:      r.Data,
			Available: true,
		}
	}
	return files, nil
}

func (p *Persistence) SaveFileCache(ctx context.Context, projectID string, files []models.LocalFile) error {
	if p.blobs != nil {
		return p.blobs.SaveFiles(ctx, projectID, files)
	}
	rows := make([]models.FileBlob, len(files))
	for i, f := range files {
		rows[i] = models.FileBlob{
			ProjectID: projectID,
			Position:  i,
			Name:      f.Name,
			Type:      f.Type,
			Data:      f.Data,
		}
	}
	return p.Store.SaveFileBlobs(ctx, projectID, rows)
}

func (p *Persistence) DeleteFileCache(ctx context.Context, projectID string) error {
	if p.blobs != nil {
		return p.blobs.DeleteFiles(ctx, projectID)
	}
	return p.Store.DeleteFileBlobs(ctx, projectID)
}
