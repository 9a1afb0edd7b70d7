package publisher

import (
	"errors"
	"fmt"
)

// Kind names the stage a posting run failed in.
type Kind string

const (
	KindAuth        Kind = "auth_failure"
	KindDraftCreate Kind = "draft_create_failure"
	KindImage       Kind = "image_failure"
	KindFinalize    Kind = "finalize_failure"
)

// Sentinels matched by *PostError of the corresponding kind.
var (
	ErrAuthFailure        = errors.New(string(KindAuth))
	ErrDraftCreateFailure = errors.New(string(KindDraftCreate))
	ErrImageFailure       = errors.New(string(KindImage))
	ErrFinalizeFailure    = errors.New(string(KindFinalize))
)

var sentinels = map[Kind]error{
	KindAuth:        ErrAuthFailure,
	KindDraftCreate: ErrDraftCreateFailure,
	KindImage:       ErrImageFailure,
	KindFinalize:    ErrFinalizeFailure,
}

// PostError is the only error type Post returns. Image failures never
// abort a run; they show up on Result.ImageErr instead.
type PostError struct {
	Kind   Kind
	Reason string
	Err    error
}

func newPostError(kind Kind, err error, format string, args ...any) *PostError {
	return &PostError{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

func (e *PostError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *PostError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func (e *PostError) Unwrap() error { return e.Err }

// KindOf returns the Kind of a *PostError in err's chain, or "".
func KindOf(err error) Kind {
	var pe *PostError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
