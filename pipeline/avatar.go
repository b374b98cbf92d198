package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"BrandAmbassador-server/models"

	"github.com/google/uuid"
)

const candidateCount = 4

type AvatarStep int

const (
	StepList AvatarStep = iota
	StepCreatePortrait
	StepSelectPortrait
	StepCreateBody
	StepSelectBody
)

func (s AvatarStep) String() string {
	switch s {
	case StepList:
		return "list"
	case StepCreatePortrait:
		return "create_portrait"
	case StepSelectPortrait:
		return "select_portrait"
	case StepCreateBody:
		return "create_body"
	case StepSelectBody:
		return "select_body"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s AvatarStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AvatarSnapshot 是头像工作室对外展示的只读视图
type AvatarSnapshot struct {
	Step              AvatarStep                  `json:"step"`
	Status            GenerationStatus            `json:"status"`
	PortraitOptions   models.CustomizationOptions `json:"portraitOptions"`
	BodyOptions       models.BodyOptions          `json:"bodyOptions"`
	Portraits         []models.Image              `json:"generatedPortraits"`
	Bodies            []models.Image              `json:"generatedBodies"`
	SelectedPortrait  int                         `json:"selectedPortrait"`
	SelectedBody      int                         `json:"selectedBody"`
	TentativePortrait *models.Image               `json:"tentativePortrait"`
	TentativeBody     *models.Image               `json:"tentativeBody"`
	Draft             *models.Avatar              `json:"activeAvatar"`
	Error             string                      `json:"error,omitempty"`
	Notice            string                      `json:"notice,omitempty"`
	EnhancingField    string                      `json:"enhancingField,omitempty"`
	EnhancingImage    bool                        `json:"enhancingImage"`
}

// AvatarPipeline 驱动 头像生成 -> 选择 -> 全身像生成 -> 选择
type AvatarPipeline struct {
	state    *AppState
	images   ImageGenerator
	enhancer *Enhancer
	machine  *Machine

	mu sync.Mutex
	// epoch 在重置时递增，旧的回调据此丢弃结果
	epoch             uint64
	ctx               context.Context
	cancel            context.CancelFunc
	step              AvatarStep
	portraitOpts      models.CustomizationOptions
	bodyOpts          models.BodyOptions
	// generatedOpts 是当前候选头像实际使用的选项，之后表单再改也不影响
	generatedOpts     models.CustomizationOptions
	portraits         []models.Image
	bodies            []models.Image
	selectedPortrait  int
	selectedBody      int
	tentativePortrait *models.Image
	tentativeBody     *models.Image
	draft             *models.Avatar
	lastError         string
	notice            string
	enhancingImage    bool
	wg                sync.WaitGroup
}

func NewAvatarPipeline(state *AppState, images ImageGenerator, enhancer *Enhancer, machine *Machine) *AvatarPipeline {
	p := &AvatarPipeline{
		state:            state,
		images:           images,
		enhancer:         enhancer,
		machine:          machine,
		portraitOpts:     models.DefaultCustomizationOptions(),
		bodyOpts:         models.DefaultBodyOptions(),
		selectedPortrait: -1,
		selectedBody:     -1,
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

func (p *AvatarPipeline) Machine() *Machine {
	return p.machine
}

func (p *AvatarPipeline) Snapshot() AvatarSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := AvatarSnapshot{
		Step:             p.step,
		Status:           p.machine.Status(),
		PortraitOptions:  p.portraitOpts,
		BodyOptions:      p.bodyOpts,
		Portraits:        append([]models.Image(nil), p.portraits...),
		Bodies:           append([]models.Image(nil), p.bodies...),
		SelectedPortrait: p.selectedPortrait,
		SelectedBody:     p.selectedBody,
		Error:            p.lastError,
		Notice:           p.notice,
		EnhancingField:   p.enhancer.Active(),
		EnhancingImage:   p.enhancingImage,
	}
	if p.tentativePortrait != nil {
		img := *p.tentativePortrait
		snap.TentativePortrait = &img
	}
	if p.tentativeBody != nil {
		img := *p.tentativeBody
		snap.TentativeBody = &img
	}
	if p.draft != nil {
		d := *p.draft
		snap.Draft = &d
	}
	return snap
}

// Wait 等待所有后台调用结束
func (p *AvatarPipeline) Wait() {
	p.wg.Wait()
	p.enhancer.Wait()
}

// StartNew 开始一个新的草稿，已有头像不受影响
func (p *AvatarPipeline) StartNew() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandonLocked()
	p.step = StepCreatePortrait
	p.machine.Reset("")
}

// Reset 回到列表页并丢弃所有进行中的结果
func (p *AvatarPipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandonLocked()
	p.step = StepList
	p.machine.Reset("")
}

func (p *AvatarPipeline) abandonLocked() {
	p.epoch++
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.portraits = nil
	p.bodies = nil
	p.selectedPortrait = -1
	p.selectedBody = -1
	p.tentativePortrait = nil
	p.tentativeBody = nil
	p.draft = nil
	p.lastError = ""
	p.notice = ""
	p.enhancingImage = false
}

func (p *AvatarPipeline) SetPortraitOptions(opts models.CustomizationOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.portraitOpts = opts
}

func (p *AvatarPipeline) SetBodyOptions(opts models.BodyOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodyOpts = opts
}

// RequestPortraits 总是从新草稿开始，后台请求 4 张方形候选头像
func (p *AvatarPipeline) RequestPortraits(opts models.CustomizationOptions) error {
	if err := opts.Validate(); err != nil {
		return validationError("Please fill in the portrait description: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := begin(p.machine, PhaseGeneratingPortraits, "Generating ultra-realistic portrait shots..."); err != nil {
		return err
	}
	p.abandonLocked()
	p.step = StepCreatePortrait
	p.portraitOpts = opts
	epoch, ctx := p.epoch, p.ctx

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		imgs, err := p.images.GeneratePortraits(ctx, opts)
		p.finishPortraits(epoch, opts, imgs, err)
	}()
	return nil
}

func (p *AvatarPipeline) finishPortraits(epoch uint64, opts models.CustomizationOptions, imgs []models.Image, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return
	}
	if err == nil && len(imgs) < candidateCount {
		err = fmt.Errorf("avatar generation returned %d of %d images", len(imgs), candidateCount)
	}
	if err != nil {
		pe := newError(KindGeneration, "Failed to generate portraits", err)
		p.failLocked(pe, "Error during portrait generation.")
		return
	}
	p.portraits = imgs[:candidateCount]
	p.generatedOpts = opts
	p.step = StepSelectPortrait
	p.setLocked(PhaseIdle, "")
}

// SelectPortrait 暂选一张候选头像，之后可做真实感增强
func (p *AvatarPipeline) SelectPortrait(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step != StepSelectPortrait {
		return validationError("no portrait candidates to select from")
	}
	if index < 0 || index >= len(p.portraits) {
		return validationError("portrait index %d out of range", index)
	}
	img := p.portraits[index].Clone()
	p.selectedPortrait = index
	p.tentativePortrait = &img
	return nil
}

// FinalizePortrait 需要已选头像和非空名称；头像立即加入集合，随后进入全身像阶段
func (p *AvatarPipeline) FinalizePortrait(ctx context.Context, name string) (models.Avatar, error) {
	name = strings.TrimSpace(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step != StepSelectPortrait || p.tentativePortrait == nil {
		return models.Avatar{}, validationError("Please select a portrait first.")
	}
	if name == "" {
		return models.Avatar{}, validationError("Please enter a name for your avatar.")
	}
	if p.enhancingImage {
		return models.Avatar{}, ErrBusy
	}

	draft := models.Avatar{
		ID:             uuid.NewString(),
		Name:           name,
		PortraitImage:  p.tentativePortrait.Clone(),
		PortraitPrompt: p.generatedOpts,
	}
	draft = p.state.UpsertAvatar(ctx, draft)
	p.draft = &draft
	p.bodies = nil
	p.selectedBody = -1
	p.tentativeBody = nil
	p.notice = ""
	p.step = StepCreateBody
	return draft, nil
}

// RequestBody 以头像的文字描述为锚点，后台请求 4 张竖幅全身像
func (p *AvatarPipeline) RequestBody(opts models.BodyOptions) error {
	if err := opts.Validate(); err != nil {
		return validationError("Please describe the outfit and pose: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.draft == nil || (p.step != StepCreateBody && p.step != StepSelectBody) {
		return validationError("Finalize a portrait before generating the full body.")
	}
	if err := begin(p.machine, PhaseGeneratingFullBody, "Generating full body avatar..."); err != nil {
		return err
	}
	p.bodyOpts = opts
	p.lastError = ""
	anchor := p.draft.PortraitPrompt
	epoch, ctx := p.epoch, p.ctx

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		imgs, err := p.images.GenerateFullBody(ctx, anchor, opts)
		p.finishBodies(epoch, imgs, err)
	}()
	return nil
}

func (p *AvatarPipeline) finishBodies(epoch uint64, imgs []models.Image, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return
	}
	if err == nil && len(imgs) == 0 {
		err = errors.New("full body generation returned no images")
	}
	if err != nil {
		pe := newError(KindGeneration, "Failed to generate full body", err)
		p.failLocked(pe, "Error during full body generation.")
		return
	}
	if len(imgs) > candidateCount {
		imgs = imgs[:candidateCount]
	}
	p.bodies = imgs
	p.selectedBody = -1
	p.tentativeBody = nil
	p.step = StepSelectBody
	p.setLocked(PhaseIdle, "")
}

func (p *AvatarPipeline) SelectBody(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step != StepSelectBody {
		return validationError("no full body candidates to select from")
	}
	if index < 0 || index >= len(p.bodies) {
		return validationError("body index %d out of range", index)
	}
	img := p.bodies[index].Clone()
	p.selectedBody = index
	p.tentativeBody = &img
	return nil
}

// FinalizeBody 把全身像并入草稿并替换集合中的同一头像
func (p *AvatarPipeline) FinalizeBody(ctx context.Context) (models.Avatar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step != StepSelectBody || p.draft == nil || p.tentativeBody == nil {
		return models.Avatar{}, validationError("Please select a full body image first.")
	}
	if p.enhancingImage {
		return models.Avatar{}, ErrBusy
	}

	final := *p.draft
	body := p.tentativeBody.Clone()
	bodyOpts := p.bodyOpts
	final.FullBodyImage = &body
	final.BodyPrompt = &bodyOpts
	final = p.state.UpsertAvatar(ctx, final)

	p.abandonLocked()
	p.step = StepList
	return final, nil
}

// EnhanceRealism 对暂选图片做图生图增强；失败只记录提示，不改变阶段和步骤
func (p *AvatarPipeline) EnhanceRealism(kind SubjectKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var src *models.Image
	switch kind {
	case SubjectPortrait:
		if p.step == StepSelectPortrait {
			src = p.tentativePortrait
		}
	case SubjectFullBody:
		if p.step == StepSelectBody {
			src = p.tentativeBody
		}
	default:
		return validationError("unknown subject kind %q", kind)
	}
	if src == nil {
		return validationError("Select an image to enhance first.")
	}
	if p.enhancingImage {
		return ErrBusy
	}
	p.enhancingImage = true
	p.notice = ""
	img := src.Clone()
	epoch, ctx := p.epoch, p.ctx

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		out, err := p.images.EnhanceRealism(ctx, img, kind)
		p.finishEnhance(epoch, kind, out, err)
	}()
	return nil
}

func (p *AvatarPipeline) finishEnhance(epoch uint64, kind SubjectKind, out models.Image, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return
	}
	p.enhancingImage = false
	if err == nil && out.Empty() {
		err = errors.New("AI did not return an enhanced image")
	}
	if err != nil {
		p.notice = newError(KindEnhancement, "Failed to enhance image", err).Error()
		log.Printf("[avatar] enhance %s failed: %v", kind, err)
		return
	}
	if kind == SubjectPortrait {
		p.tentativePortrait = &out
	} else {
		p.tentativeBody = &out
	}
}

// EnhanceText 润色当前表单中的某个字段，结果原地替换
func (p *AvatarPipeline) EnhanceText(field string) error {
	p.mu.Lock()
	var value string
	switch field {
	case FieldPersonDescription:
		value = p.portraitOpts.PersonDescription
	case FieldPortraitClothing:
		value = p.portraitOpts.Clothing
	case FieldHairstyle:
		value = p.portraitOpts.Hairstyle
	case FieldBodyClothing:
		value = p.bodyOpts.Clothing
	case FieldPose:
		value = p.bodyOpts.Pose
	default:
		p.mu.Unlock()
		return validationError("field %q cannot be enhanced in the avatar studio", field)
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
		switch field {
		case FieldPersonDescription:
			p.portraitOpts.PersonDescription = out
		case FieldPortraitClothing:
			p.portraitOpts.Clothing = out
		case FieldHairstyle:
			p.portraitOpts.Hairstyle = out
		case FieldBodyClothing:
			p.bodyOpts.Clothing = out
		case FieldPose:
			p.bodyOpts.Pose = out
		}
	})
}

func (p *AvatarPipeline) failLocked(pe *Error, message string) {
	p.lastError = pe.Error()
	log.Printf("[avatar] %v", pe)
	p.setLocked(PhaseError, message)
}

func (p *AvatarPipeline) setLocked(phase Phase, message string) {
	if err := p.machine.Set(phase, message); err != nil {
		log.Printf("[avatar] %v", err)
	}
}

// begin 在新的用户操作开始时调用：忙碌则拒绝，终态先重置
func begin(m *Machine, phase Phase, message string) error {
	st := m.Status()
	if st.Phase.Busy() {
		return ErrBusy
	}
	if st.Phase.Terminal() {
		m.Reset("")
	}
	return m.Set(phase, message)
}
