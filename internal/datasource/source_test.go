package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/pkg/circuitbreaker"
	"github.com/Renzios/sharerapy-harness/pkg/metrics"
)

var listPatients = &query.Descriptor{Entity: "patient", Table: "patients", Action: query.ActionList}

func TestUnavailableAlwaysFails(t *testing.T) {
	_, err := Unavailable().Execute(context.Background(), listPatients)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCheckJSON(t *testing.T) {
	_, err := CheckJSON([]byte("  \n"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = CheckJSON([]byte("Error: boom"))
	assert.ErrorIs(t, err, ErrMalformed)

	raw, err := CheckJSON([]byte(" null\n"))
	require.NoError(t, err)
	assert.True(t, IsNull(raw))
}

func TestWithTimeoutSetsDeadline(t *testing.T) {
	src := WithTimeout(SourceFunc(func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return nil, Unavailablef("%v", ctx.Err())
	}), 10*time.Millisecond)

	_, err := src.Execute(context.Background(), listPatients)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "deadline exceeded")
}

func TestWithBreakerFailsFastWithoutRetry(t *testing.T) {
	calls := 0
	failing := SourceFunc(func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
		calls++
		return nil, Unavailablef("connection refused")
	})
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: "test", ConsecutiveFailures: 1, Timeout: time.Minute})
	src := WithBreaker(failing, cb)

	_, err := src.Execute(context.Background(), listPatients)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, calls)

	_, err = src.Execute(context.Background(), listPatients)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "circuit breaker is open")
	assert.Equal(t, 1, calls)
}

func TestWithMetricsCountsOutcomes(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	ok := WithMetrics(SourceFunc(func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
		return json.RawMessage(`{"data":[],"count":0}`), nil
	}), m)
	bad := WithMetrics(SourceFunc(func(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
		return nil, ErrMalformed
	}), m)

	_, _ = ok.Execute(context.Background(), listPatients)
	_, _ = bad.Execute(context.Background(), listPatients)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("patient", "list", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("patient", "list", "malformed")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "unsupported", Outcome(ErrUnsupported))
	assert.Equal(t, "timeout", Outcome(context.DeadlineExceeded))
	assert.Equal(t, "unavailable", Outcome(errors.New("dial tcp")))
}

func TestWithLoggingOmitsPayloadValues(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	src := WithLogging(SourceFunc(func(context.Context, *query.Descriptor) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"u1"}`), nil
	}), logger)

	signup := &query.Descriptor{
		Entity:  "user",
		Action:  query.ActionSignup,
		Payload: map[string]interface{}{"email": "a@x.com", "password": "hunter2-secret"},
	}
	_, err := src.Execute(context.Background(), signup)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "remote call")
	assert.Contains(t, buf.String(), "password")
	assert.NotContains(t, buf.String(), "hunter2-secret")
}

func TestWithLoggingWarnsOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	src := WithLogging(Unavailable(), logger)
	_, err := src.Execute(context.Background(), listPatients)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "remote call failed")
}
