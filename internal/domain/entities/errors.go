package entities

import (
	"context"
	"errors"
)

// Error kinds reported in step error descriptors
const (
	KindIOError                = "IOError"
	KindMalformedContainer     = "MalformedContainer"
	KindExternalToolError      = "ExternalToolError"
	KindUnsupportedFormat      = "UnsupportedFormat"
	KindSignatureDatabaseError = "SignatureDatabaseError"
	KindUnknown                = "Unknown"
)

// Sentinel errors; wrap with fmt.Errorf("...: %w", Err...)
var (
	ErrIO                 = errors.New("i/o error")
	ErrMalformedContainer = errors.New("malformed container")
	ErrExternalTool       = errors.New("external tool error")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrSignatureDatabase  = errors.New("signature database error")
)

// KindOf maps an error to its kind
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedContainer):
		return KindMalformedContainer
	case errors.Is(err, ErrExternalTool):
		return KindExternalToolError
	case errors.Is(err, ErrSignatureDatabase):
		return KindSignatureDatabaseError
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrIO):
		return KindIOError
	default:
		return KindUnknown
	}
}

// StepError describes a failed analysis step
type StepError struct {
	Step    string `json:"step" yaml:"step"`
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// deadlineKinds is the kind of an unwrapped deadline or cancellation, per step
var deadlineKinds = map[string]string{
	StepLoad:   KindIOError,
	StepHash:   KindIOError,
	StepPacker: KindExternalToolError,
}

// NewStepError builds a descriptor for err raised by step
func NewStepError(step string, err error) StepError {
	kind := KindOf(err)
	if kind == KindUnknown && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		if k, ok := deadlineKinds[step]; ok {
			kind = k
		}
	}
	return StepError{Step: step, Kind: kind, Message: err.Error()}
}
