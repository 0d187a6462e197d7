package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/pkg/circuitbreaker"
	"github.com/Renzios/sharerapy-harness/pkg/metrics"
)

// WithTimeout bounds every call with a deadline.
func WithTimeout(next Source, timeout time.Duration) Source {
	if timeout <= 0 {
		return next
	}
	return SourceFunc(func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next.Execute(ctx, d)
	})
}

// WithBreaker fails fast with ErrUnavailable while cb is open. Calls are
// never retried.
func WithBreaker(next Source, cb *circuitbreaker.CircuitBreaker) Source {
	return SourceFunc(func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
		var raw json.RawMessage
		err := cb.Execute(func() error {
			var err error
			raw, err = next.Execute(ctx, d)
			return err
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, Unavailablef("%v", err)
		}
		return raw, err
	})
}

// WithMetrics records call outcomes and latency.
func WithMetrics(next Source, m *metrics.Metrics) Source {
	if m == nil {
		return next
	}
	return SourceFunc(func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
		start := time.Now()
		raw, err := next.Execute(ctx, d)
		m.ObserveRemote(d.Entity, string(d.Action), Outcome(err), time.Since(start))
		return raw, err
	})
}

// WithLogging logs every descriptor at debug level and failures at warn.
func WithLogging(next Source, logger zerolog.Logger) Source {
	return SourceFunc(func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
		start := time.Now()
		raw, err := next.Execute(ctx, d)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("entity", d.Entity).
				Str("action", string(d.Action)).
				Dur("duration", time.Since(start)).
				Msg("remote call failed")
			return raw, err
		}
		logger.Debug().
			Str("entity", d.Entity).
			Str("action", string(d.Action)).
			Stringer("descriptor", d).
			Dur("duration", time.Since(start)).
			Msg("remote call")
		return raw, nil
	})
}

// Outcome labels an error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unavailable"
	}
}
