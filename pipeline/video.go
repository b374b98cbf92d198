package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"BrandAmbassador-server/models"

	"github.com/google/uuid"
)

const scriptPrefix = "Narration Script: "

type VideoForm struct {
	ProjectID   string `json:"projectId"`
	Script      string `json:"script"`
	MusicMood   string `json:"musicMood"`
	Duration    string `json:"duration"`
	AspectRatio string `json:"aspectRatio"`
	VoiceStyle  string `json:"voiceStyle"`
}

func DefaultVideoForm() VideoForm {
	return VideoForm{Duration: "30", AspectRatio: "16:9", VoiceStyle: "Professional"}
}

type VideoSnapshot struct {
	Form           VideoForm          `json:"form"`
	Status         GenerationStatus   `json:"status"`
	RefinedPrompt  string             `json:"refinedPrompt"`
	Job            *JobHandle         `json:"job,omitempty"`
	Video          *models.SavedVideo `json:"video,omitempty"`
	Error          string             `json:"error,omitempty"`
	Notice         string             `json:"notice,omitempty"`
	EnhancingField string             `json:"enhancingField,omitempty"`
}

// pendingVideo 记录提交时的字段，生成完成后据此构造 SavedVideo
type pendingVideo struct {
	form        VideoForm
	prompt      string
	projectName string
	avatarName  string
}

// VideoPipeline 驱动 提示词精炼 -> 提交 -> 轮询 -> 取回视频
type VideoPipeline struct {
	state        *AppState
	refiner      PromptRefiner
	videos       VideoGenerator
	media        MediaStore
	archiver     Archiver
	enhancer     *Enhancer
	machine      *Machine
	drive        func() DriveFetcher
	pollInterval time.Duration

	mu         sync.Mutex
	epoch      uint64
	ctx        context.Context
	cancel     context.CancelFunc
	pollCancel context.CancelFunc
	form       VideoForm
	prompt     string
	job        *JobHandle
	result     *models.SavedVideo
	lastError  string
	notice     string
	wg         sync.WaitGroup
}

type VideoPipelineConfig struct {
	State        *AppState
	Refiner      PromptRefiner
	Videos       VideoGenerator
	Media        MediaStore
	Archiver     Archiver
	Enhancer     *Enhancer
	Machine      *Machine
	Drive        func() DriveFetcher
	PollInterval time.Duration
}

func NewVideoPipeline(cfg VideoPipelineConfig) *VideoPipeline {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.Drive == nil {
		cfg.Drive = func() DriveFetcher { return nil }
	}
	p := &VideoPipeline{
		state:        cfg.State,
		refiner:      cfg.Refiner,
		videos:       cfg.Videos,
		media:        cfg.Media,
		archiver:     cfg.Archiver,
		enhancer:     cfg.Enhancer,
		machine:      cfg.Machine,
		drive:        cfg.Drive,
		pollInterval: cfg.PollInterval,
		form:         DefaultVideoForm(),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

func (p *VideoPipeline) Machine() *Machine {
	return p.machine
}

func (p *VideoPipeline) Snapshot() VideoSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := VideoSnapshot{
		Form:           p.form,
		Status:         p.machine.Status(),
		RefinedPrompt:  p.prompt,
		Error:          p.lastError,
		Notice:         p.notice,
		EnhancingField: p.enhancer.Active(),
	}
	if p.job != nil {
		job := *p.job
		snap.Job = &job
	}
	if p.result != nil {
		v := *p.result
		snap.Video = &v
	}
	return snap
}

// EligibleProjects 是项目选择器的数据源，只包含已关联完整头像的项目
func (p *VideoPipeline) EligibleProjects() []models.Project {
	return p.state.EligibleProjects()
}

func (p *VideoPipeline) Wait() {
	p.wg.Wait()
	p.enhancer.Wait()
}

// errFormLocked 提示词精炼后表单锁定，提交与保存都以精炼时的字段为准
var errFormLocked = validationError("The form is locked after refinement. Reset to change it.")

// SetForm 替换表单字段；进行中的操作期间不可修改，Refined 阶段锁定
func (p *VideoPipeline) SetForm(form VideoForm) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkFormEditableLocked(func() { p.form = form })
}

func (p *VideoPipeline) checkFormEditableLocked(apply func()) error {
	phase := p.machine.Status().Phase
	if phase.Busy() {
		return ErrBusy
	}
	if phase == PhaseRefined {
		return errFormLocked
	}
	apply()
	return nil
}

// Reset 取消进行中的轮询并恢复默认表单
func (p *VideoPipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandonLocked()
	p.form = DefaultVideoForm()
	p.machine.Reset("Ready to generate.")
}

func (p *VideoPipeline) abandonLocked() {
	p.epoch++
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	if p.pollCancel != nil {
		p.pollCancel()
		p.pollCancel = nil
	}
	p.prompt = ""
	p.job = nil
	p.result = nil
	p.lastError = ""
	p.notice = ""
}

// resolveLocked 校验项目与其关联头像；任何失败都是本地校验错误
func (p *VideoPipeline) resolveLocked() (models.Project, models.Avatar, error) {
	project, ok := p.state.Project(p.form.ProjectID)
	if p.form.ProjectID == "" || !ok {
		return models.Project{}, models.Avatar{}, validationError("A project with a linked, fully generated avatar must be selected.")
	}
	avatar, ok := project.FindAvatar(p.state.Avatars())
	if !ok || !avatar.HasFullBody() {
		return models.Project{}, models.Avatar{}, validationError("A project with a linked, fully generated avatar must be selected.")
	}
	return project, avatar, nil
}

// Refine 校验前置条件后在后台组装上下文并精炼提示词
func (p *VideoPipeline) Refine() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	project, _, err := p.resolveLocked()
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.form.Script) == "" {
		return validationError("Please write a narration script.")
	}
	if _, err := models.ParseVideoDuration(p.form.Duration); err != nil {
		return validationError("Please enter a valid duration between 5 and 60 seconds.")
	}
	if err := begin(p.machine, PhaseRefining, "Refining your prompt with AI..."); err != nil {
		return err
	}

	p.prompt = ""
	p.lastError = ""
	p.result = nil
	form := p.form
	files := p.state.ProjectFiles(project.ID)
	drive := p.drive()
	epoch, ctx := p.epoch, p.ctx

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		assembled := AssembleContext(ctx, project, files, drive)
		fields := PromptFields{
			Script:      scriptPrefix + form.Script,
			MusicMood:   form.MusicMood,
			Duration:    form.Duration,
			AspectRatio: form.AspectRatio,
			VoiceStyle:  form.VoiceStyle,
		}
		out, err := p.refiner.RefinePrompt(ctx, fields, assembled.Text, assembled.Images)
		p.finishRefine(epoch, out, err)
	}()
	return nil
}

func (p *VideoPipeline) finishRefine(epoch uint64, out string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return
	}
	prompt := singleParagraph(out)
	if err == nil && prompt == "" {
		err = errors.New("the model returned an empty prompt")
	}
	if err != nil {
		p.failLocked(newError(KindRefinement, "Failed to refine prompt", err), "Error during prompt refinement.")
		return
	}
	p.prompt = prompt
	p.setLocked(PhaseRefined, "Prompt refined. Review and generate.")
}

func singleParagraph(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// EditPrompt 只在 Refined 阶段允许修改精炼后的提示词
func (p *VideoPipeline) EditPrompt(prompt string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.machine.Status().Phase != PhaseRefined {
		return validationError("The prompt can only be edited after refinement.")
	}
	p.prompt = prompt
	return nil
}

// Submit 用（可能已编辑的）提示词与头像全身像提交视频任务，随后开始轮询
func (p *VideoPipeline) Submit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.machine.Status().Phase != PhaseRefined {
		return validationError("Refine the prompt before generating the video.")
	}
	if strings.TrimSpace(p.prompt) == "" {
		return validationError("Missing required information to start generation.")
	}
	project, avatar, err := p.resolveLocked()
	if err != nil {
		return err
	}
	if _, err := models.ParseVideoDuration(p.form.Duration); err != nil {
		return validationError("Please enter a valid duration between 5 and 60 seconds.")
	}
	if err := begin(p.machine, PhaseSubmitting, "Sending request to video model..."); err != nil {
		return err
	}

	p.lastError = ""
	rec := pendingVideo{
		form:        p.form,
		prompt:      p.prompt,
		projectName: project.Name,
		avatarName:  avatar.Name,
	}
	identity := avatar.FullBodyImage.Clone()
	epoch, ctx := p.epoch, p.ctx

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		job, err := p.videos.SubmitVideoJob(ctx, rec.prompt, identity)
		p.finishSubmit(epoch, job, err, rec)
	}()
	return nil
}

func (p *VideoPipeline) finishSubmit(epoch uint64, job JobHandle, err error, rec pendingVideo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return
	}
	if err == nil && job.Name == "" {
		err = errors.New("no operation handle returned")
	}
	if err != nil {
		p.failLocked(newError(KindSubmission, "Failed to start generation", err), "Generation failed to start.")
		return
	}
	p.job = &job
	p.setLocked(PhasePolling, "Video generation in progress...")

	pollCtx, cancel := context.WithCancel(context.Background())
	p.pollCancel = cancel
	p.wg.Add(1)
	go p.pollLoop(pollCtx, epoch, job, rec)
	log.Printf("[poll] job %s submitted, polling every %s", job.Name, p.pollInterval)
}

// pollLoop 是可取消的轮询任务：未完成则按固定间隔重新调度，无超时上限
func (p *VideoPipeline) pollLoop(ctx context.Context, epoch uint64, job JobHandle, rec pendingVideo) {
	defer p.wg.Done()
	timer := time.NewTimer(p.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		status, err := p.videos.PollJob(ctx, job)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.failPoll(epoch, newError(KindPoll, "An error occurred during polling", err))
			return
		}
		if !status.Done {
			if !p.stillPolling(epoch) {
				return
			}
			timer.Reset(p.pollInterval)
			continue
		}
		if status.MediaRef == "" {
			p.failPoll(epoch, newError(KindPoll, "An error occurred during polling",
				errors.New("video generation finished, but no video URL was found")))
			return
		}
		p.complete(ctx, epoch, status.MediaRef, rec)
		return
	}
}

func (p *VideoPipeline) stillPolling(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return false
	}
	p.setLocked(PhasePolling, "")
	return true
}

func (p *VideoPipeline) failPoll(epoch uint64, pe *Error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return
	}
	p.pollCancel = nil
	p.failLocked(pe, "Failed to get video status.")
}

// complete 取回视频、落地为本地可播放地址并保存记录；每个任务只会走一次
func (p *VideoPipeline) complete(ctx context.Context, epoch uint64, mediaRef string, rec pendingVideo) {
	p.mu.Lock()
	if epoch != p.epoch {
		p.mu.Unlock()
		return
	}
	p.setLocked(PhasePolling, "Fetching video data...")
	p.mu.Unlock()

	data, err := p.videos.FetchMedia(ctx, mediaRef)
	if err != nil {
		p.failPoll(epoch, newError(KindPoll, "An error occurred during polling", err))
		return
	}
	videoID := uuid.NewString()
	stored, err := p.media.SaveVideo(ctx, videoID, data)
	if err != nil {
		p.failPoll(epoch, newError(KindPersistence, "Failed to store the generated video", err))
		return
	}

	p.mu.Lock()
	if epoch != p.epoch {
		p.mu.Unlock()
		return
	}
	saved := p.state.AddVideo(context.Background(), models.SavedVideo{
		ID:          videoID,
		ProjectID:   rec.form.ProjectID,
		ProjectName: rec.projectName,
		AvatarName:  rec.avatarName,
		VideoURL:    stored.URL,
		Prompt:      rec.prompt,
		Script:      rec.form.Script,
		MusicMood:   rec.form.MusicMood,
		Duration:    rec.form.Duration,
		AspectRatio: rec.form.AspectRatio,
		VoiceStyle:  rec.form.VoiceStyle,
	})
	p.result = &saved
	p.pollCancel = nil
	p.setLocked(PhaseSuccess, "Video generation complete!")
	p.mu.Unlock()

	if p.archiver != nil && stored.Path != "" {
		if err := p.archiver.EnqueueArchive(context.Background(), saved.ID, stored.Path); err != nil {
			log.Printf("[poll] enqueue archive for video %s failed: %v", saved.ID, err)
		}
	}
}

// LoadForEdit 用已保存视频的字段重建表单并直接进入 Refined，提示词原样复用
func (p *VideoPipeline) LoadForEdit(videoID string) error {
	v, ok := p.state.Video(videoID)
	if !ok {
		return ErrNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.machine.Status().Phase.Busy() {
		return ErrBusy
	}
	p.abandonLocked()
	p.form = VideoForm{
		ProjectID:   v.ProjectID,
		Script:      v.Script,
		MusicMood:   v.MusicMood,
		Duration:    v.Duration,
		AspectRatio: v.AspectRatio,
		VoiceStyle:  v.VoiceStyle,
	}
	p.prompt = v.Prompt
	p.machine.Reset("")
	p.setLocked(PhaseRefined, "Editing previous video. Review and generate.")
	return nil
}

// EnhanceText 润色脚本或音乐氛围字段
func (p *VideoPipeline) EnhanceText(field string) error {
	p.mu.Lock()
	var value string
	switch field {
	case FieldScript:
		value = p.form.Script
	case FieldMusicMood:
		value = p.form.MusicMood
	default:
		p.mu.Unlock()
		return validationError("field %q cannot be enhanced in the video studio", field)
	}
	if err := p.checkFormEditableLocked(func() {}); err != nil {
		p.mu.Unlock()
		return err
	}
	p.notice = ""
	epoch, ctx := p.epoch, p.ctx
	p.mu.Unlock()

	return p.enhancer.Go(ctx, field, value, func(out string, err error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if epoch != p.epoch {
			return
		}
		if err != nil {
			p.notice = err.Error()
			return
		}
		// 精炼已开始时丢弃结果，保持表单与提示词一致
		_ = p.checkFormEditableLocked(func() {
			if field == FieldScript {
				p.form.Script = out
			} else {
				p.form.MusicMood = out
			}
		})
	})
}

func (p *VideoPipeline) failLocked(pe *Error, message string) {
	p.lastError = pe.Error()
	log.Printf("[video] %v", pe)
	p.setLocked(PhaseError, message)
}

func (p *VideoPipeline) setLocked(phase Phase, message string) {
	if err := p.machine.Set(phase, message); err != nil {
		log.Printf("[video] %v", err)
	}
}
