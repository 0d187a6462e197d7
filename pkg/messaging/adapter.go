package messaging

import (
	"context"
	"time"
)

// BrokerPublisher publishes typed events onto "<prefix>.<eventType>" channels.
type BrokerPublisher struct {
	broker Broker
	prefix string
	now    func() time.Time
}

func NewBrokerPublisher(broker Broker, prefix string) *BrokerPublisher {
	return &BrokerPublisher{broker: broker, prefix: prefix, now: time.Now}
}

func (p *BrokerPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return p.broker.Publish(ctx, p.Channel(eventType), Message{
		Type:       eventType,
		Payload:    payload,
		OccurredAt: p.now().UTC(),
	})
}

// Channel returns the channel an event type is published on.
func (p *BrokerPublisher) Channel(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

// Pattern matches every channel this publisher writes to.
func (p *BrokerPublisher) Pattern() string {
	return p.Channel("*")
}
