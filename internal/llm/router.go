package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
)

// Router dispatches a completion to the adapter of the requested backend.
// It holds no per-call state and is safe for concurrent use.
type Router struct {
	adapters map[Backend]Adapter
}

// NewRouter creates a Router over the given adapters, keyed by their backend.
func NewRouter(adapters ...Adapter) *Router {
	m := make(map[Backend]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Backend()] = a
	}
	return &Router{adapters: m}
}

// Complete runs one completion against target.Backend. Failures come back
// as a Result carrying an error attributed to the backend; the Router never
// returns a Go error or panics.
func (r *Router) Complete(ctx context.Context, target Target, req Request) Result {
	a, ok := r.adapters[target.Backend]
	if !ok {
		err := NewError(KindInvalidProvider,
			fmt.Sprintf("%q is not one of [%s]", target.Backend, r.names()), nil)
		return Failure(err).Attribute(target.Backend)
	}

	req.Credentials = target.Credentials
	req.History = slices.Clone(req.History)

	text, err := a.Complete(ctx, req)
	if err != nil {
		res := Failure(asError(err)).Attribute(target.Backend)
		log.Printf("[router] %v", res.Err)
		return res
	}
	return Success(text)
}

// Backends returns the registered backends in display order.
func (r *Router) Backends() []Backend {
	var out []Backend
	for _, b := range Backends {
		if _, ok := r.adapters[b]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Adapter returns the adapter registered for b.
func (r *Router) Adapter(b Backend) (Adapter, bool) {
	a, ok := r.adapters[b]
	return a, ok
}

// Attribute prefixes a failure with its backend. Applying it again to an
// already attributed failure leaves the message unchanged.
func (res Result) Attribute(b Backend) Result {
	if res.Err == nil || b == "" {
		return res
	}
	return Failure(res.Err.attribute(b))
}

func (r *Router) names() string {
	names := make([]string, 0, len(r.adapters))
	for _, b := range r.Backends() {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

// asError converts anything an adapter returned into *Error.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(KindTransport, err.Error(), err)
}
