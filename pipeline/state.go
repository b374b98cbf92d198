package pipeline

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"BrandAmbassador-server/models"

	"github.com/google/uuid"
)

// Warning 记录一次持久化失败；内存状态不回滚
type Warning struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

const maxWarnings = 20

// AppState 持有三个集合与项目文件缓存。所有修改都是整值替换，随后同步落盘
type AppState struct {
	store Persistence

	mu       sync.RWMutex
	avatars  []models.Avatar
	projects []models.Project
	videos   []models.SavedVideo
	files    map[string][]models.LocalFile
	warnings []Warning

	// 串行化写者，保证落盘顺序与修改顺序一致
	writeMu sync.Mutex
}

func NewAppState(store Persistence) *AppState {
	return &AppState{
		store: store,
		files: make(map[string][]models.LocalFile),
	}
}

// Load 读取全部集合，并把文件元数据与缓存内容对齐
func (s *AppState) Load(ctx context.Context) error {
	avatars, err := s.store.LoadAvatars(ctx)
	if err != nil {
		return fmt.Errorf("load avatars: %w", err)
	}
	projects, err := s.store.LoadProjects(ctx)
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}
	videos, err := s.store.LoadVideos(ctx)
	if err != nil {
		return fmt.Errorf("load videos: %w", err)
	}

	files := make(map[string][]models.LocalFile, len(projects))
	for _, p := range projects {
		cached, err := s.store.LoadFileCache(ctx, p.ID)
		if err != nil {
			s.warn(fmt.Sprintf("file cache for project %q unavailable: %v", p.Name, err))
			cached = nil
		}
		files[p.ID] = reconcileFiles(p.ContextFiles, cached)
	}

	s.mu.Lock()
	s.avatars = avatars
	s.projects = projects
	s.videos = videos
	s.files = files
	s.mu.Unlock()
	log.Printf("[state] loaded %d avatars, %d projects, %d videos", len(avatars), len(projects), len(videos))
	return nil
}

// reconcileFiles 按元数据顺序匹配缓存内容，找不到内容的项标记为不可用
func reconcileFiles(metas []models.LocalFileMeta, cached []models.LocalFile) []models.LocalFile {
	used := make([]bool, len(cached))
	out := make([]models.LocalFile, 0, len(metas))
	for _, meta := range metas {
		f := models.LocalFile{Name: meta.Name, Type: meta.Type, Size: meta.Size}
		for i, c := range cached {
			if !used[i] && c.Name == meta.Name {
				used[i] = true
				f.Data = c.Data
				f.Available = true
				break
			}
		}
		out = append(out, f)
	}
	return out
}

func (s *AppState) Avatars() []models.Avatar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.avatars)
}

func (s *AppState) Avatar(id string) (models.Avatar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.avatars {
		if a.ID == id {
			return a, true
		}
	}
	return models.Avatar{}, false
}

func (s *AppState) Projects() []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.projects)
}

func (s *AppState) Project(id string) (models.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return models.Project{}, false
}

func (s *AppState) Videos() []models.SavedVideo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.videos)
}

func (s *AppState) Video(id string) (models.SavedVideo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.videos {
		if v.ID == id {
			return v, true
		}
	}
	return models.SavedVideo{}, false
}

// ProjectFiles 返回项目文件缓存的副本，包括内容不可用的项
func (s *AppState) ProjectFiles(projectID string) []models.LocalFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.files[projectID])
}

// EligibleProjects 每次调用都按当前头像状态重新计算
func (s *AppState) EligibleProjects() []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		if p.EligibleForVideo(s.avatars) {
			out = append(out, p)
		}
	}
	return out
}

func (s *AppState) Warnings() []Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.warnings)
}

// UpsertAvatar 按 id 替换已有头像，否则追加
func (s *AppState) UpsertAvatar(ctx context.Context, a models.Avatar) models.Avatar {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	s.mu.Lock()
	next := slices.Clone(s.avatars)
	if i := slices.IndexFunc(next, func(x models.Avatar) bool { return x.ID == a.ID }); i >= 0 {
		next[i] = a
	} else {
		next = append(next, a)
	}
	s.avatars = next
	s.mu.Unlock()

	s.flush(ctx, "avatars", func(ctx context.Context) error { return s.store.SaveAvatars(ctx, next) })
	return a
}

// DeleteAvatar 不级联删除项目，项目上的引用变为悬空
func (s *AppState) DeleteAvatar(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := slices.IndexFunc(s.avatars, func(x models.Avatar) bool { return x.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	next := slices.Delete(slices.Clone(s.avatars), i, i+1)
	s.avatars = next
	s.mu.Unlock()

	s.flush(ctx, "avatars", func(ctx context.Context) error { return s.store.SaveAvatars(ctx, next) })
	return nil
}

func (s *AppState) CreateProject(ctx context.Context, p models.Project) models.Project {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.ContextFiles == nil {
		p.ContextFiles = []models.LocalFileMeta{}
	}
	if p.DriveFiles == nil {
		p.DriveFiles = []models.DriveFileMeta{}
	}

	s.mu.Lock()
	next := append(slices.Clone(s.projects), p)
	s.projects = next
	s.mu.Unlock()

	s.flush(ctx, "projects", func(ctx context.Context) error { return s.store.SaveProjects(ctx, next) })
	return p
}

// UpdateProject 在副本上应用 fn，成功后整体替换
func (s *AppState) UpdateProject(ctx context.Context, id string, fn func(p *models.Project) error) (models.Project, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := slices.IndexFunc(s.projects, func(x models.Project) bool { return x.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return models.Project{}, ErrNotFound
	}
	updated := s.projects[i]
	updated.ContextFiles = slices.Clone(updated.ContextFiles)
	updated.DriveFiles = slices.Clone(updated.DriveFiles)
	if err := fn(&updated); err != nil {
		s.mu.Unlock()
		return models.Project{}, err
	}
	updated.ID = id
	updated.UpdatedAt = time.Now().UTC()
	next := slices.Clone(s.projects)
	next[i] = updated
	s.projects = next
	s.mu.Unlock()

	s.flush(ctx, "projects", func(ctx context.Context) error { return s.store.SaveProjects(ctx, next) })
	return updated, nil
}

// DeleteProject 同时删除该项目的文件缓存
func (s *AppState) DeleteProject(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := slices.IndexFunc(s.projects, func(x models.Project) bool { return x.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	next := slices.Delete(slices.Clone(s.projects), i, i+1)
	s.projects = next
	files := make(map[string][]models.LocalFile, len(s.files))
	for k, v := range s.files {
		if k != id {
			files[k] = v
		}
	}
	s.files = files
	s.mu.Unlock()

	s.flush(ctx, "projects", func(ctx context.Context) error { return s.store.SaveProjects(ctx, next) })
	s.flush(ctx, "file cache", func(ctx context.Context) error { return s.store.DeleteFileCache(ctx, id) })
	return nil
}

// AddProjectFiles 追加本地附件：元数据进项目，内容进文件缓存
func (s *AppState) AddProjectFiles(ctx context.Context, projectID string, added ...models.LocalFile) (models.Project, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := slices.IndexFunc(s.projects, func(x models.Project) bool { return x.ID == projectID })
	if i < 0 {
		s.mu.Unlock()
		return models.Project{}, ErrNotFound
	}
	project := s.projects[i]
	metas := slices.Clone(project.ContextFiles)
	files := slices.Clone(s.files[projectID])
	for _, f := range added {
		f.Available = true
		if f.Size == 0 {
			f.Size = int64(len(f.Data))
		}
		metas = append(metas, f.Meta())
		files = append(files, f)
	}
	project.ContextFiles = metas
	project.UpdatedAt = time.Now().UTC()
	nextProjects := slices.Clone(s.projects)
	nextProjects[i] = project
	s.projects = nextProjects
	s.files = withFiles(s.files, projectID, files)
	s.mu.Unlock()

	s.flush(ctx, "projects", func(ctx context.Context) error { return s.store.SaveProjects(ctx, nextProjects) })
	s.flush(ctx, "file cache", func(ctx context.Context) error { return s.store.SaveFileCache(ctx, projectID, availableOnly(files)) })
	return project, nil
}

// RemoveProjectFile 删除第一个同名附件
func (s *AppState) RemoveProjectFile(ctx context.Context, projectID, name string) (models.Project, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := slices.IndexFunc(s.projects, func(x models.Project) bool { return x.ID == projectID })
	if i < 0 {
		s.mu.Unlock()
		return models.Project{}, ErrNotFound
	}
	project := s.projects[i]
	mi := slices.IndexFunc(project.ContextFiles, func(m models.LocalFileMeta) bool { return m.Name == name })
	if mi < 0 {
		s.mu.Unlock()
		return models.Project{}, ErrNotFound
	}
	project.ContextFiles = slices.Delete(slices.Clone(project.ContextFiles), mi, mi+1)
	project.UpdatedAt = time.Now().UTC()
	files := slices.Clone(s.files[projectID])
	if fi := slices.IndexFunc(files, func(f models.LocalFile) bool { return f.Name == name }); fi >= 0 {
		files = slices.Delete(files, fi, fi+1)
	}
	nextProjects := slices.Clone(s.projects)
	nextProjects[i] = project
	s.projects = nextProjects
	s.files = withFiles(s.files, projectID, files)
	s.mu.Unlock()

	s.flush(ctx, "projects", func(ctx context.Context) error { return s.store.SaveProjects(ctx, nextProjects) })
	s.flush(ctx, "file cache", func(ctx context.Context) error { return s.store.SaveFileCache(ctx, projectID, availableOnly(files)) })
	return project, nil
}

// AddVideo 新视频排在最前
func (s *AppState) AddVideo(ctx context.Context, v models.SavedVideo) models.SavedVideo {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	next := append([]models.SavedVideo{v}, s.videos...)
	s.videos = next
	s.mu.Unlock()

	s.flush(ctx, "videos", func(ctx context.Context) error { return s.store.SaveVideos(ctx, next) })
	return v
}

func (s *AppState) UpdateVideo(ctx context.Context, id string, fn func(v *models.SavedVideo)) (models.SavedVideo, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := slices.IndexFunc(s.videos, func(x models.SavedVideo) bool { return x.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return models.SavedVideo{}, ErrNotFound
	}
	updated := s.videos[i]
	fn(&updated)
	updated.ID = id
	next := slices.Clone(s.videos)
	next[i] = updated
	s.videos = next
	s.mu.Unlock()

	s.flush(ctx, "videos", func(ctx context.Context) error { return s.store.SaveVideos(ctx, next) })
	return updated, nil
}

func (s *AppState) DeleteVideo(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := slices.IndexFunc(s.videos, func(x models.SavedVideo) bool { return x.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	next := slices.Delete(slices.Clone(s.videos), i, i+1)
	s.videos = next
	s.mu.Unlock()

	s.flush(ctx, "videos", func(ctx context.Context) error { return s.store.SaveVideos(ctx, next) })
	return nil
}

func (s *AppState) flush(ctx context.Context, what string, save func(ctx context.Context) error) {
	if err := save(ctx); err != nil {
		s.warn(fmt.Sprintf("failed to save %s, storage might be full: %v", what, err))
	}
}

func (s *AppState) warn(msg string) {
	log.Printf("[state] %s", msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, Warning{Message: msg, Time: time.Now().UTC()})
	if len(s.warnings) > maxWarnings {
		s.warnings = slices.Clone(s.warnings[len(s.warnings)-maxWarnings:])
	}
}

func withFiles(cur map[string][]models.LocalFile, projectID string, files []models.LocalFile) map[string][]models.LocalFile {
	next := make(map[string][]models.LocalFile, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[projectID] = files
	return next
}

func availableOnly(files []models.LocalFile) []models.LocalFile {
	out := make([]models.LocalFile, 0, len(files))
	for _, f := range files {
		if f.Available {
			out = append(out, f)
		}
	}
	return out
}
