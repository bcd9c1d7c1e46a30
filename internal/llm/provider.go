package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Adapter is the interface all LLM backends must implement.
type Adapter interface {
	// Complete sends the system prompt, the replayed history and the new
	// user message as exactly one backend call and returns the generated text.
	// Failures are always *Error.
	Complete(ctx context.Context, req Request) (string, error)

	// Backend returns the backend this adapter talks to.
	Backend() Backend
}

// Kind classifies backend failures.
type Kind int

const (
	KindMissingCredentials Kind = iota + 1
	KindInvalidProvider
	KindTransport
	KindAuthRejected
	KindMalformedResponse
	KindEmptyResponse
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredentials:
		return "missing credentials"
	case KindInvalidProvider:
		return "invalid provider"
	case KindTransport:
		return "transport failure"
	case KindAuthRejected:
		return "authentication rejected"
	case KindMalformedResponse:
		return "malformed response"
	case KindEmptyResponse:
		return "empty response"
	default:
		return "unknown failure"
	}
}

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Backend Backend // set once by the Router
	Message string
	Err     error
}

// NewError creates an unattributed error of the given kind.
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	text := e.Kind.String()
	if e.Message != "" {
		text += ": " + e.Message
	}
	if e.Backend != "" {
		return "(" + string(e.Backend) + ") " + text
	}
	return text
}

func (e *Error) Unwrap() error {
	return e.Err
}

// attribute tags the error with the originating backend. An error that
// already carries a backend is returned unchanged.
func (e *Error) attribute(b Backend) *Error {
	if e.Backend != "" {
		return e
	}
	c := *e
	c.Backend = b
	return &c
}

// classifyTransport maps generic client errors that every SDK can surface.
// It returns nil when the error is not recognisably a transport failure.
func classifyTransport(ctx context.Context, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindTransport, "request timed out", err)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return NewError(KindTransport, "request cancelled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(KindTransport, netErr.Error(), err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewError(KindTransport, opErr.Error(), err)
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "eof"),
		strings.Contains(lower, "tls"):
		return NewError(KindTransport, err.Error(), err)
	}
	return nil
}

// classifyStatus maps an HTTP status returned by a backend.
func classifyStatus(status int, err error) *Error {
	switch {
	case status == 401 || status == 403:
		return NewError(KindAuthRejected, err.Error(), err)
	case status >= 200 && status < 300:
		return NewError(KindMalformedResponse, err.Error(), err)
	default:
		return NewError(KindTransport, err.Error(), err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// recoverInto turns a panic inside an SDK call into a malformed-response error.
func recoverInto(errp *error) {
	if r := recover(); r != nil {
		*errp = NewError(KindMalformedResponse, fmt.Sprintf("backend client panicked: %v", r), nil)
	}
}
