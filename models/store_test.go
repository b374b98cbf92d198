package models

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenDatabase("sqlite", filepath.Join(t.TempDir(), "studio.db"))
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestStoreAvatarsRoundTripKeepsOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	body := &Image{MIMEType: "image/jpeg", Data: []byte{4, 5, 6}}
	avatars := []Avatar{
		{ID: "b", Name: "Agent Alex", PortraitImage: Image{MIMEType: "image/jpeg", Data: []byte{1, 2, 3}}, PortraitPrompt: DefaultCustomizationOptions()},
		{ID: "a", Name: "Agent Sam", PortraitImage: Image{MIMEType: "image/png", Data: []byte{9}}, FullBodyImage: body},
	}
	require.NoError(t, store.SaveAvatars(ctx, avatars))

	loaded, err := store.LoadAvatars(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "b", loaded[0].ID)
	assert.Equal(t, []byte{1, 2, 3}, loaded[0].PortraitImage.Data)
	assert.Nil(t, loaded[0].FullBodyImage)
	assert.Equal(t, DefaultCustomizationOptions(), loaded[0].PortraitPrompt)
	assert.True(t, loaded[1].HasFullBody())
	assert.Equal(t, body.Data, loaded[1].FullBodyImage.Data)
}

func TestStoreSaveReplacesWholeCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveVideos(ctx, []SavedVideo{{ID: "v1"}, {ID: "v2"}}))
	require.NoError(t, store.SaveVideos(ctx, []SavedVideo{{ID: "v3"}}))

	loaded, err := store.LoadVideos(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "v3", loaded[0].ID)

	require.NoError(t, store.SaveVideos(ctx, nil))
	loaded, err = store.LoadVideos(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestStoreProjectsKeepFileMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	avatarID := "av-1"
	project := Project{
		ID:             "p1",
		Name:           "Villa",
		ContextFiles:   []LocalFileMeta{{Name: "notes.txt", Type: "text/plain", Size: 12}},
		DriveFiles:     []DriveFileMeta{{ID: "d1", Name: "Brochure", MimeType: "application/vnd.google-apps.document"}},
		LinkedAvatarID: &avatarID,
	}
	require.NoError(t, store.SaveProjects(ctx, []Project{project}))

	loaded, err := store.LoadProjects(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "notes.txt", loaded[0].ContextFiles[0].Name)
	assert.Equal(t, "d1", loaded[0].DriveFiles[0].ID)
	require.NotNil(t, loaded[0].LinkedAvatarID)
	assert.Equal(t, avatarID, *loaded[0].LinkedAvatarID)
}

func TestStoreFileBlobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	blobs := []FileBlob{
		{Name: "a.png", Type: "image/png", Data: []byte{1}},
		{Name: "b.txt", Type: "text/plain", Data: []byte("hello")},
	}
	require.NoError(t, store.SaveFileBlobs(ctx, "p1", blobs))
	require.NoError(t, store.SaveFileBlobs(ctx, "p2", blobs[:1]))

	loaded, err := store.LoadFileBlobs(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "a.png", loaded[0].Name)
	assert.Equal(t, "hello", string(loaded[1].Data))

	require.NoError(t, store.DeleteFileBlobs(ctx, "p1"))
	loaded, err = store.LoadFileBlobs(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	other, err := store.LoadFileBlobs(ctx, "p2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
