package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"BrandAmbassador-server/models"
)

type memPersistence struct {
	mu       sync.Mutex
	avatars  []models.Avatar
	projects []models.Project
	videos   []models.SavedVideo
	files    map[string][]models.LocalFile
	failSave error
	saves    int
}

func newMemPersistence() *memPersistence {
	return &memPersistence{files: make(map[string][]models.LocalFile)}
}

func (m *memPersistence) save(fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failSave != nil {
		return m.failSave
	}
	fn()
	return nil
}

func (m *memPersistence) LoadAvatars(context.Context) ([]models.Avatar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Avatar(nil), m.avatars...), nil
}

func (m *memPersistence) SaveAvatars(_ context.Context, items []models.Avatar) error {
	return m.save(func() { m.avatars = append([]models.Avatar(nil), items...) })
}

func (m *memPersistence) LoadProjects(context.Context) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Project(nil), m.projects...), nil
}

func (m *memPersistence) SaveProjects(_ context.Context, items []models.Project) error {
	return m.save(func() { m.projects = append([]models.Project(nil), items...) })
}

func (m *memPersistence) LoadVideos(context.Context) ([]models.SavedVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SavedVideo(nil), m.videos...), nil
}

func (m *memPersistence) SaveVideos(_ context.Context, items []models.SavedVideo) error {
	return m.save(func() { m.videos = append([]models.SavedVideo(nil), items...) })
}

func (m *memPersistence) LoadFileCache(_ context.Context, projectID string) ([]models.LocalFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LocalFile(nil), m.files[projectID]...), nil
}

func (m *memPersistence) SaveFileCache(_ context.Context, projectID string, files []models.LocalFile) error {
	return m.save(func() { m.files[projectID] = append([]models.LocalFile(nil), files...) })
}

func (m *memPersistence) DeleteFileCache(_ context.Context, projectID string) error {
	return m.save(func() { delete(m.files, projectID) })
}

func (m *memPersistence) savedVideos() []models.SavedVideo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SavedVideo(nil), m.videos...)
}

func testImages(n int, tag byte) []models.Image {
	out := make([]models.Image, n)
	for i := range out {
		out[i] = models.Image{MIMEType: "image/jpeg", Data: []byte{tag, byte(i)}}
	}
	return out
}

type fakeImages struct {
	mu           sync.Mutex
	portraits    []models.Image
	portraitErr  error
	bodies       []models.Image
	bodyErr      error
	enhanced     models.Image
	enhanceErr   error
	anchors      []models.CustomizationOptions
	portraitGate chan struct{}
}

func (f *fakeImages) GeneratePortraits(ctx context.Context, _ models.CustomizationOptions) ([]models.Image, error) {
	if f.portraitGate != nil {
		select {
		case <-f.portraitGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.portraits, f.portraitErr
}

func (f *fakeImages) GenerateFullBody(_ context.Context, anchor models.CustomizationOptions, _ models.BodyOptions) ([]models.Image, error) {
	f.mu.Lock()
	f.anchors = append(f.anchors, anchor)
	f.mu.Unlock()
	return f.bodies, f.bodyErr
}

func (f *fakeImages) EnhanceRealism(context.Context, models.Image, SubjectKind) (models.Image, error) {
	return f.enhanced, f.enhanceErr
}

type fakeText struct {
	mu    sync.Mutex
	out   string
	err   error
	calls []string
	gate  chan struct{}
}

func (f *fakeText) RefineText(ctx context.Context, text, hint string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text+"|"+hint)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.out, f.err
}

type fakePrompts struct {
	mu      sync.Mutex
	out     string
	err     error
	fields  []PromptFields
	context []string
	images  int
}

func (f *fakePrompts) RefinePrompt(_ context.Context, fields PromptFields, contextText string, images []models.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = append(f.fields, fields)
	f.context = append(f.context, contextText)
	f.images = len(images)
	return f.out, f.err
}

// fakeVideos 依次返回脚本中的轮询结果，用完后保持未完成
type fakeVideos struct {
	mu        sync.Mutex
	submitErr error
	prompts   []string
	statuses  []JobStatus
	pollErr   error
	polls     int
	media     []byte
	fetchErr  error
	fetches   int
}

func (f *fakeVideos) SubmitVideoJob(_ context.Context, prompt string, _ models.Image) (JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.submitErr != nil {
		return JobHandle{}, f.submitErr
	}
	return JobHandle{Name: fmt.Sprintf("operations/%d", len(f.prompts))}, nil
}

func (f *fakeVideos) PollJob(context.Context, JobHandle) (JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return JobStatus{}, f.pollErr
	}
	if len(f.statuses) == 0 {
		return JobStatus{}, nil
	}
	st := f.statuses[0]
	f.statuses = f.statuses[1:]
	return st, nil
}

func (f *fakeVideos) FetchMedia(context.Context, string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.media, f.fetchErr
}

func (f *fakeVideos) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *fakeVideos) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

type fakeMedia struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
}

func (f *fakeMedia) SaveVideo(_ context.Context, id string, data []byte) (StoredMedia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[id] = data
	return StoredMedia{URL: "/media/videos/" + id + ".mp4", Path: "/tmp/" + id + ".mp4"}, nil
}

func (f *fakeMedia) DeleteVideo(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeArchiver struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeArchiver) EnqueueArchive(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

func (f *fakeArchiver) enqueued() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

type fakeDrive struct {
	texts map[string]string
}

func (f *fakeDrive) ExportText(_ context.Context, file models.DriveFileMeta) (string, error) {
	text, ok := f.texts[file.ID]
	if !ok {
		return "", errors.New("403 forbidden")
	}
	return text, nil
}
