package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Renzios/sharerapy-harness/pkg/messaging"
)

type fakeClient struct {
	channels []string
	payloads [][]byte
	err      error
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	if b, ok := message.([]byte); ok {
		f.payloads = append(f.payloads, b)
	}
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func (f *fakeClient) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return nil
}

func (f *fakeClient) PSubscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return nil
}

func (f *fakeClient) Close() error { return nil }

func TestPublisherWritesEnvelopeToPrefixedChannel(t *testing.T) {
	fc := &fakeClient{}
	pub := messaging.NewBrokerPublisher(newBroker(fc, zerolog.Nop()), "harness.events")

	err := pub.Publish(context.Background(), "patient.created", map[string]string{"id": "p1"})
	require.NoError(t, err)

	require.Equal(t, []string{"harness.events.patient.created"}, fc.channels)
	var msg struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(fc.payloads[0], &msg))
	assert.Equal(t, "patient.created", msg.Type)
	assert.Equal(t, "p1", msg.Payload["id"])
	assert.Equal(t, "harness.events.*", pub.Pattern())
}

func TestPublishSurfacesClientErrors(t *testing.T) {
	fc := &fakeClient{err: errors.New("connection refused")}
	b := newBroker(fc, zerolog.Nop())

	err := b.Publish(context.Background(), "c", "x")
	assert.ErrorContains(t, err, "connection refused")
}
