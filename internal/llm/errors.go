package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies why a routine could not be generated by the model.
type Kind string

const (
	KindNetwork           Kind = "network"
	KindAPI               Kind = "api"
	KindMalformedResponse Kind = "malformed_response"
	KindSchemaViolation   Kind = "schema_violation"
	KindTimeout           Kind = "timeout"
)

// GenerationError is the tagged failure returned by providers and by
// RoutineClient. Status is the HTTP status for KindAPI and zero otherwise.
type GenerationError struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Kind == KindAPI && e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Transient reports whether a retry could succeed.
func (e *GenerationError) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindAPI:
		return e.Status == http.StatusTooManyRequests || e.Status >= 500
	}
	return false
}

// KindOf returns the Kind carried by err, or "" when err is not a
// GenerationError.
func KindOf(err error) Kind {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func apiError(provider string, status int, detail string) *GenerationError {
	return &GenerationError{Kind: KindAPI, Status: status, Err: fmt.Errorf("%s: %s", provider, detail)}
}

func malformed(provider, format string, args ...any) *GenerationError {
	return &GenerationError{Kind: KindMalformedResponse, Err: fmt.Errorf("%s: %s", provider, fmt.Sprintf(format, args...))}
}

// transportError classifies a failure that happened before a complete HTTP
// response was read.
func transportError(provider string, err error) *GenerationError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &GenerationError{Kind: KindTimeout, Err: fmt.Errorf("%s: %w", provider, err)}
	}
	return &GenerationError{Kind: KindNetwork, Err: fmt.Errorf("%s: %w", provider, err)}
}
