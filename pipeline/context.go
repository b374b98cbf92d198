package pipeline

import (
	"context"
	"fmt"
	"strings"

	"BrandAmbassador-server/models"
)

const googleDocMIME = "application/vnd.google-apps.document"

type AssembledContext struct {
	Text   string
	Images []models.Image
}

// AssembleContext 合并项目信息、本地附件与 Drive 附件。
// 本地附件在前，组内保持插入顺序；drive 为 nil 表示未登录 Drive
func AssembleContext(ctx context.Context, project models.Project, files []models.LocalFile, drive DriveFetcher) AssembledContext {
	var b strings.Builder
	fmt.Fprintf(&b, "Project Name: %s\nProject Description: %s\nProject URL: %s\n\n", project.Name, project.Description, project.URL)

	var images []models.Image
	for _, f := range files {
		switch {
		case !f.Available:
			fmt.Fprintf(&b, "Reference to a file \"%s\" (content not available locally).\n", f.Name)
		case f.IsImage():
			images = append(images, models.Image{MIMEType: f.Type, Data: f.Data})
			fmt.Fprintf(&b, "Reference to an uploaded image named \"%s\".\n", f.Name)
		case f.IsPlainText():
			fmt.Fprintf(&b, "Content from file \"%s\":\n%s\n\n", f.Name, string(f.Data))
		default:
			fmt.Fprintf(&b, "Reference to a file (e.g. PDF, video): \"%s\"\n", f.Name)
		}
	}

	if drive != nil && len(project.DriveFiles) > 0 {
		b.WriteString("\n--- Context from Google Drive ---\n")
		for _, df := range project.DriveFiles {
			b.WriteString(fetchExternalFileText(ctx, drive, df))
		}
	}
	return AssembledContext{Text: b.String(), Images: images}
}

// fetchExternalFileText 从不返回错误，失败时退化为占位说明
func fetchExternalFileText(ctx context.Context, drive DriveFetcher, file models.DriveFileMeta) string {
	var label string
	switch {
	case file.MimeType == googleDocMIME:
		label = "Google Doc"
	case strings.HasPrefix(file.MimeType, "text/"):
		label = "text file"
	default:
		return fmt.Sprintf("Reference to a file from Google Drive named \"%s\" of type %s.\n", file.Name, file.MimeType)
	}
	text, err := drive.ExportText(ctx, file)
	if err != nil {
		return fmt.Sprintf("Error fetching content for file \"%s\".\n", file.Name)
	}
	return fmt.Sprintf("Content from %s \"%s\":\n%s\n", label, file.Name, text)
}
