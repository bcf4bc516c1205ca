package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the generation parameters of a single completion.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Client is a text-in/text-out completion service.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

var (
	// ErrUnavailable means the service could not be reached or refused the request.
	ErrUnavailable = errors.New("completion service unavailable")
	// ErrMalformedResponse means the response envelope could not be decoded.
	ErrMalformedResponse = errors.New("completion response malformed")
	// ErrEmptyResponse means the service answered without any content.
	ErrEmptyResponse = errors.New("completion response empty")
)

// StatusError is returned for non-2xx responses. It matches ErrUnavailable.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion request failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnavailable
}
