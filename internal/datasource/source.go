package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Renzios/sharerapy-harness/internal/query"
)

var (
	// ErrUnavailable covers transport failures, timeouts and backend errors.
	ErrUnavailable = errors.New("remote data source unavailable")
	// ErrMalformed covers empty or non-JSON responses.
	ErrMalformed = errors.New("malformed remote response")
	// ErrUnsupported is returned for actions a source cannot perform.
	ErrUnsupported = errors.New("action not supported by data source")
)

// Source executes a query descriptor against the remote backend and returns
// the JSON value described by query.Descriptor.
type Source interface {
	Execute(ctx context.Context, d *query.Descriptor) (json.RawMessage, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error)

func (f SourceFunc) Execute(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	return f(ctx, d)
}

// Pinger is implemented by sources that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Unavailable returns a source that fails every call. It backs mock mode.
func Unavailable() Source {
	return SourceFunc(func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
		return nil, fmt.Errorf("%w: no backend configured", ErrUnavailable)
	})
}

// Unavailablef wraps a transport error.
func Unavailablef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

// CheckJSON rejects empty or invalid output.
func CheckJSON(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrMalformed)
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	return json.RawMessage(trimmed), nil
}

// IsNull reports whether raw is the JSON null literal.
func IsNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
