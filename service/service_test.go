package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"BrandAmbassador-server/config"
	"BrandAmbassador-server/models"
	"BrandAmbassador-server/pipeline"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBrand = config.BrandConfig{
	Company: "Harbor Homes",
	Colors:  "teal and white",
	Logo:    "a lighthouse above the word Harbor",
}

func TestRefinementInstructionsUseBrand(t *testing.T) {
	out := refinementInstructions(testBrand)
	assert.Contains(t, out, "company called 'Harbor Homes'")
	assert.Contains(t, out, "The 'Harbor Homes' logo (a lighthouse above the word Harbor)")
	assert.Contains(t, out, "The brand colors, teal and white,")
	assert.NotContains(t, out, "Seek Beyond")
}

func TestRefinementRequestFallbacks(t *testing.T) {
	out := refinementRequest(pipeline.PromptFields{
		Script:      "Narration Script: Welcome home.",
		Duration:    "30",
		AspectRatio: "16:9",
		VoiceStyle:  "Professional",
	}, "")
	assert.Contains(t, out, "Narration Script: Welcome home.")
	assert.Contains(t, out, "Approximately 30 seconds.")
	assert.Contains(t, out, "Background Music Mood: None specified.")
	assert.Contains(t, out, "No additional context provided.")

	out = refinementRequest(pipeline.PromptFields{MusicMood: "Upbeat"}, "Project Name: Villa")
	assert.Contains(t, out, "Background Music Mood: Upbeat")
	assert.Contains(t, out, "Project Name: Villa")
}

func TestFullBodyPromptAnchorsOnPortraitText(t *testing.T) {
	anchor := models.DefaultCustomizationOptions()
	out := fullBodyPrompt(anchor, models.BodyOptions{Clothing: "linen suit", Pose: "arms crossed"})
	assert.Contains(t, out, anchor.PersonDescription)
	assert.Contains(t, out, anchor.Hairstyle)
	assert.Contains(t, out, "**Clothing:** linen suit.")
	assert.Contains(t, out, "**Pose:** arms crossed.")
}

func TestEnhancePromptsCarryContext(t *testing.T) {
	assert.Contains(t, enhanceImagePrompt(pipeline.SubjectFullBody), "This is a full body shot")
	assert.Contains(t, enhanceTextPrompt("a woman", "avatar description"), `The context for this text is: "avatar description".`)
}

func TestGeminiWithoutKeyReportsConfiguration(t *testing.T) {
	g, err := NewGeminiClient(context.Background(), config.GeminiConfig{}, testBrand)
	require.NoError(t, err)
	assert.False(t, g.Configured())

	_, err = g.GeneratePortraits(context.Background(), models.DefaultCustomizationOptions())
	assert.ErrorIs(t, err, ErrGeminiNotConfigured)
	_, err = g.PollJob(context.Background(), pipeline.JobHandle{Name: "op"})
	assert.ErrorIs(t, err, ErrGeminiNotConfigured)
	_, err = g.FetchMedia(context.Background(), "http://example.invalid/v")
	assert.ErrorIs(t, err, ErrGeminiNotConfigured)
}

func TestFetchMediaAppendsKey(t *testing.T) {
	var gotKey, gotAlt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotAlt = r.URL.Query().Get("alt")
		_, _ = w.Write([]byte("mp4-bytes"))
	}))
	defer srv.Close()

	g, err := NewGeminiClient(context.Background(), config.GeminiConfig{APIKey: "secret", FetchTimeout: 5 * time.Second}, testBrand)
	require.NoError(t, err)

	data, err := g.FetchMedia(context.Background(), srv.URL+"/files/abc:download?alt=media")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), data)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "media", gotAlt)
}

func TestFetchMediaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g, err := NewGeminiClient(context.Background(), config.GeminiConfig{APIKey: "secret", FetchTimeout: 5 * time.Second}, testBrand)
	require.NoError(t, err)
	_, err = g.FetchMedia(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestMediaStoreSaveVideo(t *testing.T) {
	dir := t.TempDir()
	m := NewMediaStore(dir)

	stored, err := m.SaveVideo(context.Background(), "vid-1", []byte("video"))
	require.NoError(t, err)
	assert.Equal(t, "/media/videos/vid-1.mp4", stored.URL)
	assert.Equal(t, filepath.Join(dir, "videos", "vid-1.mp4"), stored.Path)

	data, err := os.ReadFile(stored.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("video"), data)

	_, err = m.SaveVideo(context.Background(), "vid-2", nil)
	assert.Error(t, err)

	require.NoError(t, m.DeleteVideo(context.Background(), "vid-1"))
	assert.NoFileExists(t, stored.Path)
	assert.NoError(t, m.DeleteVideo(context.Background(), "vid-1"), "already gone")
}

func TestFileCacheObjectNames(t *testing.T) {
	key := fileCacheObject("p1", 7, "floor plan.pdf")
	assert.Equal(t, "filecache/p1/007/floor plan.pdf", key)

	pos, name, ok := parseFileCacheObject("p1", key)
	require.True(t, ok)
	assert.Equal(t, 7, pos)
	assert.Equal(t, "floor plan.pdf", name)

	_, _, ok = parseFileCacheObject("p2", key)
	assert.False(t, ok)
	_, _, ok = parseFileCacheObject("p1", "filecache/p1/notanumber/x")
	assert.False(t, ok)
}

func TestTextCacheNilClientIsNoop(t *testing.T) {
	c := NewTextCache(nil, "drive:text:", time.Minute)
	require.NoError(t, c.Set(context.Background(), "id", "value"))
	_, ok := c.Get(context.Background(), "id")
	assert.False(t, ok)

	var nilCache *TextCache
	_, ok = nilCache.Get(context.Background(), "id")
	assert.False(t, ok)
}

func TestDriveCacheKeyIsScopedByToken(t *testing.T) {
	conn := NewDriveConnector(nil)
	fetcherFor := func(token string) *DriveFetcher {
		f, err := conn.Connect(context.Background(), token)
		require.NoError(t, err)
		return f.(*DriveFetcher)
	}

	a := fetcherFor("ya29.session-a")
	b := fetcherFor("ya29.session-b")
	again := fetcherFor("ya29.session-a")

	assert.NotEqual(t, a.cacheKey("doc1"), b.cacheKey("doc1"))
	assert.Equal(t, a.cacheKey("doc1"), again.cacheKey("doc1"))
	assert.True(t, strings.HasSuffix(a.cacheKey("doc1"), ":doc1"))
	assert.NotContains(t, a.cacheKey("doc1"), "session-a")

	_, err := conn.Connect(context.Background(), " ")
	assert.Error(t, err)
}

func TestPersistenceFallsBackToDatabaseBlobs(t *testing.T) {
	db, err := models.OpenDatabase("sqlite", filepath.Join(t.TempDir(), "studio.db"))
	require.NoError(t, err)
	store := models.NewStore(db)
	require.NoError(t, store.AutoMigrate())
	p := NewPersistence(store, nil)
	ctx := context.Background()

	files := []models.LocalFile{
		{Name: "notes.txt", Type: "text/plain", Data: []byte("3 bedrooms")},
		{Name: "pool.png", Type: "image/png", Data: []byte{1, 2}},
	}
	require.NoError(t, p.SaveFileCache(ctx, "p1", files))

	loaded, err := p.LoadFileCache(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "notes.txt", loaded[0].Name)
	assert.Equal(t, int64(10), loaded[0].Size)
	assert.True(t, loaded[0].Available)
	assert.Equal(t, []byte{1, 2}, loaded[1].Data)

	require.NoError(t, p.DeleteFileCache(ctx, "p1"))
	loaded, err = p.LoadFileCache(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	var _ pipeline.Persistence = p
}

type fakeUploader struct {
	url   string
	err   error
	calls []string
}

func (f *fakeUploader) UploadVideo(ctx context.Context, localPath, videoID string) (string, error) {
	f.calls = append(f.calls, videoID)
	return f.url, f.err
}

type fakeRecorder struct {
	videos map[string]models.SavedVideo
}

func (f *fakeRecorder) UpdateVideo(ctx context.Context, id string, fn func(v *models.SavedVideo)) (models.SavedVideo, error) {
	v, ok := f.videos[id]
	if !ok {
		return models.SavedVideo{}, pipeline.ErrNotFound
	}
	fn(&v)
	f.videos[id] = v
	return v, nil
}

func TestHandleArchiveTaskRecordsURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))

	up := &fakeUploader{url: "https://minio.local/videos/v1/v1.mp4"}
	rec := &fakeRecorder{videos: map[string]models.SavedVideo{"v1": {ID: "v1"}}}
	p := NewProcessor(up, rec)

	task, err := NewArchiveTask("v1", path)
	require.NoError(t, err)
	require.NoError(t, p.HandleArchiveTask(context.Background(), task))

	assert.Equal(t, []string{"v1"}, up.calls)
	assert.Equal(t, up.url, rec.videos["v1"].ArchiveURL)
}

func TestHandleArchiveTaskSkipsRetryForMissingFile(t *testing.T) {
	p := NewProcessor(&fakeUploader{}, &fakeRecorder{videos: map[string]models.SavedVideo{}})

	task, err := NewArchiveTask("v1", filepath.Join(t.TempDir(), "gone.mp4"))
	require.NoError(t, err)
	err = p.HandleArchiveTask(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	bad := asynq.NewTask(TypeArchiveVideo, []byte("{"))
	assert.ErrorIs(t, p.HandleArchiveTask(context.Background(), bad), asynq.SkipRetry)
}

func TestHandleArchiveTaskDeletedVideoIsNotRetried(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v9.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))
	p := NewProcessor(&fakeUploader{url: "u"}, &fakeRecorder{videos: map[string]models.SavedVideo{}})

	task, err := NewArchiveTask("v9", path)
	require.NoError(t, err)
	assert.NoError(t, p.HandleArchiveTask(context.Background(), task))
}

func TestRefinementInstructionsSingleParagraphDirective(t *testing.T) {
	out := refinementInstructions(testBrand)
	assert.True(t, strings.HasSuffix(out, "exact subtitles."))
}
