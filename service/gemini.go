package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"BrandAmbassador-server/config"
	"BrandAmbassador-server/models"
	"BrandAmbassador-server/pipeline"

	"google.golang.org/genai"
)

var ErrGeminiNotConfigured = errors.New("Gemini API key is not configured. Please set the GEMINI_API_KEY environment variable.")

// GeminiClient 同时实现图像、文本、提示词与视频四类协作方
type GeminiClient struct {
	client *genai.Client
	cfg    config.GeminiConfig
	brand  config.BrandConfig
	apiKey string
	http   *http.Client
}

// NewGeminiClient 未配置 API Key 时返回可用但每次调用都报错的客户端，服务仍可启动
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, brand config.BrandConfig) (*GeminiClient, error) {
	g := &GeminiClient{
		cfg:    cfg,
		brand:  brand,
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: cfg.FetchTimeout},
	}
	if cfg.APIKey == "" {
		log.Println("[gemini] API key 未配置，生成类接口将返回错误")
		return g, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *GeminiClient) Configured() bool {
	return g != nil && g.client != nil
}

func (g *GeminiClient) ready() error {
	if !g.Configured() {
		return ErrGeminiNotConfigured
	}
	return nil
}

func (g *GeminiClient) GeneratePortraits(ctx context.Context, opts models.CustomizationOptions) ([]models.Image, error) {
	return g.generateImages(ctx, portraitPrompt(opts), "1:1")
}

func (g *GeminiClient) GenerateFullBody(ctx context.Context, anchor models.CustomizationOptions, body models.BodyOptions) ([]models.Image, error) {
	return g.generateImages(ctx, fullBodyPrompt(anchor, body), "9:16")
}

func (g *GeminiClient) generateImages(ctx context.Context, prompt, aspect string) ([]models.Image, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	resp, err := g.client.Models.GenerateImages(ctx, g.cfg.ImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 4,
		OutputMIMEType: g.cfg.ImageMIME,
		AspectRatio:    aspect,
	})
	if err != nil {
		return nil, fmt.Errorf("generate images: %w", err)
	}
	images := make([]models.Image, 0, len(resp.GeneratedImages))
	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		mime := gi.Image.MIMEType
		if mime == "" {
			mime = g.cfg.ImageMIME
		}
		images = append(images, models.Image{MIMEType: mime, Data: gi.Image.ImageBytes})
	}
	log.Printf("[gemini] %s 返回 %d 张图片", g.cfg.ImageModel, len(images))
	return images, nil
}

func (g *GeminiClient) EnhanceRealism(ctx context.Context, img models.Image, kind pipeline.SubjectKind) (models.Image, error) {
	if err := g.ready(); err != nil {
		return models.Image{}, err
	}
	mime := img.MIMEType
	if mime == "" {
		mime = g.cfg.ImageMIME
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, mime),
			genai.NewPartFromText(enhanceImagePrompt(kind)),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.EditModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return models.Image{}, fmt.Errorf("enhance image: %w", err)
	}

	var feedback string
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				out := part.InlineData.MIMEType
				if out == "" {
					out = mime
				}
				return models.Image{MIMEType: out, Data: part.InlineData.Data}, nil
			}
			if feedback == "" && part.Text != "" {
				feedback = part.Text
			}
		}
	}
	if feedback != "" {
		return models.Image{}, fmt.Errorf("AI did not return an enhanced image. Model response: %q", feedback)
	}
	return models.Image{}, errors.New("AI did not return an enhanced image. The model returned no image or text feedback.")
}

func (g *GeminiClient) RefineText(ctx context.Context, text, domainHint string) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.TextModel, genai.Text(enhanceTextPrompt(text, domainHint)), nil)
	if err != nil {
		return "", fmt.Errorf("enhance text: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (g *GeminiClient) RefinePrompt(ctx context.Context, fields pipeline.PromptFields, contextText string, images []models.Image) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	parts := []*genai.Part{genai.NewPartFromText(refinementRequest(fields, contextText))}
	for _, img := range images {
		if img.Empty() {
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.TextModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: refinementInstructions(g.brand)}}},
		})
	if err != nil {
		return "", fmt.Errorf("refine prompt: %w", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", errors.New("refine prompt: empty response")
	}
	return out, nil
}

func (g *GeminiClient) SubmitVideoJob(ctx context.Context, prompt string, identity models.Image) (pipeline.JobHandle, error) {
	if err := g.ready(); err != nil {
		return pipeline.JobHandle{}, err
	}
	mime := identity.MIMEType
	if mime == "" {
		mime = g.cfg.ImageMIME
	}
	op, err := g.client.Models.GenerateVideos(ctx, g.cfg.VideoModel, prompt,
		&genai.Image{ImageBytes: identity.Data, MIMEType: mime},
		&genai.GenerateVideosConfig{NumberOfVideos: 1})
	if err != nil {
		return pipeline.JobHandle{}, fmt.Errorf("start video generation: %w", err)
	}
	if op == nil || op.Name == "" {
		return pipeline.JobHandle{}, errors.New("start video generation: missing operation name")
	}
	log.Printf("[video] 已提交生成任务: %s", op.Name)
	return pipeline.JobHandle{Name: op.Name}, nil
}

func (g *GeminiClient) PollJob(ctx context.Context, job pipeline.JobHandle) (pipeline.JobStatus, error) {
	if err := g.ready(); err != nil {
		return pipeline.JobStatus{}, err
	}
	op, err := g.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: job.Name}, nil)
	if err != nil {
		return pipeline.JobStatus{}, fmt.Errorf("get video operation: %w", err)
	}
	if !op.Done {
		return pipeline.JobStatus{}, nil
	}
	if len(op.Error) > 0 {
		return pipeline.JobStatus{}, fmt.Errorf("video operation failed: %v", op.Error["message"])
	}
	status := pipeline.JobStatus{Done: true}
	if op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0].Video; v != nil {
			status.MediaRef = v.URI
		}
	}
	return status, nil
}

// FetchMedia 下载生成的视频，URI 需要追加 API Key 才能访问
func (g *GeminiClient) FetchMedia(ctx context.Context, mediaRef string) ([]byte, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	u, err := url.Parse(mediaRef)
	if err != nil {
		return nil, fmt.Errorf("parse media uri: %w", err)
	}
	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create media request: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	return data, nil
}
