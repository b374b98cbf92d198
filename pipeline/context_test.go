package pipeline

import (
	"context"
	"net/http"
	"testing"

	"BrandAmbassador-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextFixture() (models.Project, []models.LocalFile) {
	project := models.Project{
		Name:        "Skyblade",
		Description: "Luxury tower",
		URL:         "https://example.com",
		DriveFiles: []models.DriveFileMeta{
			{ID: "doc", Name: "Brochure", MimeType: googleDocMIME},
			{ID: "txt", Name: "facts.txt", MimeType: "text/plain"},
			{ID: "pdf", Name: "plan.pdf", MimeType: "application/pdf"},
			{ID: "bad", Name: "Secret", MimeType: googleDocMIME},
		},
	}
	files := []models.LocalFile{
		{Name: "lobby.jpg", Type: "image/jpeg", Data: []byte{7, 7}, Available: true},
		{Name: "notes.txt", Type: "text/plain", Data: []byte("3 pools"), Available: true},
		{Name: "tour.mp4", Type: "video/mp4", Data: []byte{0}, Available: true},
		{Name: "gone.txt", Type: "text/plain"},
	}
	return project, files
}

func TestAssembleContextOrderingAndKinds(t *testing.T) {
	project, files := contextFixture()
	drive := &fakeDrive{texts: map[string]string{"doc": "Doc body", "txt": "Text body"}}

	got := AssembleContext(context.Background(), project, files, drive)

	want := "Project Name: Skyblade\nProject Description: Luxury tower\nProject URL: https://example.com\n\n" +
		"Reference to an uploaded image named \"lobby.jpg\".\n" +
		"Content from file \"notes.txt\":\n3 pools\n\n" +
		"Reference to a file (e.g. PDF, video): \"tour.mp4\"\n" +
		"Reference to a file \"gone.txt\" (content not available locally).\n" +
		"\n--- Context from Google Drive ---\n" +
		"Content from Google Doc \"Brochure\":\nDoc body\n" +
		"Content from text file \"facts.txt\":\nText body\n" +
		"Reference to a file from Google Drive named \"plan.pdf\" of type application/pdf.\n" +
		"Error fetching content for file \"Secret\".\n"
	assert.Equal(t, want, got.Text)
	require.Len(t, got.Images, 1)
	assert.Equal(t, []byte{7, 7}, got.Images[0].Data)
	assert.Equal(t, "image/jpeg", got.Images[0].MIMEType)
}

func TestAssembleContextDeterministic(t *testing.T) {
	project, files := contextFixture()
	drive := &fakeDrive{texts: map[string]string{"doc": "a", "txt": "b"}}
	first := AssembleContext(context.Background(), project, files, drive)
	second := AssembleContext(context.Background(), project, files, drive)
	assert.Equal(t, first, second)
}

func TestAssembleContextSkipsDriveWhenSignedOut(t *testing.T) {
	project, files := contextFixture()
	got := AssembleContext(context.Background(), project, files, nil)
	assert.NotContains(t, got.Text, "Google Drive")
}

func TestAssembleContextInlinesTextWithCharset(t *testing.T) {
	data := []byte("Sea view from every room")
	files := []models.LocalFile{
		{Name: "notes.txt", Type: http.DetectContentType(data), Data: data, Available: true},
	}

	got := AssembleContext(context.Background(), models.Project{Name: "Villa"}, files, nil)
	assert.Contains(t, got.Text, "Content from file \"notes.txt\":\nSea view from every room\n\n")
	assert.NotContains(t, got.Text, "e.g. PDF")
}
