package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// 可送去 AI 润色的文本字段
const (
	FieldPersonDescription  = "personDescription"
	FieldPortraitClothing   = "portraitClothing"
	FieldHairstyle          = "hairstyle"
	FieldBodyClothing       = "bodyClothing"
	FieldPose               = "pose"
	FieldProjectDescription = "projectDescription"
	FieldScript             = "script"
	FieldMusicMood          = "musicMood"
)

var fieldHints = map[string]string{
	FieldPersonDescription:  "A description of a brand ambassador persona.",
	FieldPortraitClothing:   "A description of professional clothing for a portrait.",
	FieldHairstyle:          "A description of a professional hairstyle.",
	FieldBodyClothing:       "A description of a full professional outfit.",
	FieldPose:               "A description of a confident and professional pose.",
	FieldProjectDescription: "A compelling and detailed description of a luxury real estate project.",
	FieldScript:             "The narration script for a luxury real estate promotional video.",
	FieldMusicMood:          "A description of the mood for background music in a promotional video.",
}

// FieldHint 返回字段对应的领域提示
func FieldHint(field string) (string, bool) {
	hint, ok := fieldHints[field]
	return hint, ok
}

// Enhancer 同一时刻只允许润色一个字段
type Enhancer struct {
	refiner TextRefiner

	mu     sync.Mutex
	active string
	wg     sync.WaitGroup
}

func NewEnhancer(refiner TextRefiner) *Enhancer {
	return &Enhancer{refiner: refiner}
}

// Active 返回正在润色的字段，空串表示空闲
func (e *Enhancer) Active() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Enhance 空输入原样返回；失败时返回原值和 Refinement 类错误，不影响流程阶段
func (e *Enhancer) Enhance(ctx context.Context, field, value string) (string, error) {
	release, err := e.acquire(field)
	if err != nil || release == nil {
		return value, err
	}
	defer release()
	return e.refine(ctx, field, value)
}

// Go 同步占用令牌后在后台润色，完成时调用 done。空输入不会调用 done
func (e *Enhancer) Go(ctx context.Context, field, value string, done func(out string, err error)) error {
	if _, ok := fieldHints[field]; ok && strings.TrimSpace(value) == "" {
		return nil
	}
	release, err := e.acquire(field)
	if err != nil {
		return err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		out, err := e.refine(ctx, field, value)
		release()
		done(out, err)
	}()
	return nil
}

// Wait 等待后台润色结束
func (e *Enhancer) Wait() {
	e.wg.Wait()
}

func (e *Enhancer) acquire(field string) (func(), error) {
	if _, ok := fieldHints[field]; !ok {
		return nil, validationError("unknown field %q", field)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != "" {
		return nil, ErrBusy
	}
	e.active = field
	return func() {
		e.mu.Lock()
		e.active = ""
		e.mu.Unlock()
	}, nil
}

func (e *Enhancer) refine(ctx context.Context, field, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return value, nil
	}
	out, err := e.refiner.RefineText(ctx, value, fieldHints[field])
	if err != nil {
		return value, newError(KindRefinement, fmt.Sprintf("Failed to enhance %s", field), err)
	}
	return strings.TrimSpace(out), nil
}
