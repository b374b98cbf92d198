package pipeline

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindGeneration
	KindEnhancement
	KindRefinement
	KindSubmission
	KindPoll
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindGeneration:
		return "generation"
	case KindEnhancement:
		return "enhancement"
	case KindRefinement:
		return "refinement"
	case KindSubmission:
		return "submission"
	case KindPoll:
		return "poll"
	case KindPersistence:
		return "persistence"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error 是控制器边界上的统一错误；Summary 面向用户，Cause 保留协作方原始信息
type Error struct {
	Kind    ErrorKind
	Summary string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Summary
	}
	return e.Summary + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind ErrorKind, summary string, cause error) *Error {
	return &Error{Kind: kind, Summary: summary, Cause: cause}
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Summary: fmt.Sprintf(format, args...)}
}

// KindOf 返回 err 链上第一个 *Error 的类别
func KindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

func IsValidation(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindValidation
}

var (
	ErrBusy     = errors.New("another operation is in progress")
	ErrNotFound = errors.New("not found")
)
