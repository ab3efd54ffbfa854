package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Publisher is a pub/sub transport such as the Redis publisher.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PublisherSink forwards live updates to a pub/sub channel named after the
// notification type.
type PublisherSink struct {
	pub Publisher
	now func() time.Time
}

func NewPublisherSink(pub Publisher) *PublisherSink {
	return &PublisherSink{pub: pub, now: time.Now}
}

func (s *PublisherSink) Name() string { return "pubsub" }

// Accepts takes every channel-style type ("market:update" and friends).
func (s *PublisherSink) Accepts(t string) bool {
	return strings.Contains(t, ":")
}

func (s *PublisherSink) Send(ctx context.Context, n Notification) error {
	msg := make(map[string]any, len(n.Data)+2)
	for k, v := range n.Data {
		msg[k] = v
	}
	msg["marketId"] = n.ArenaID
	msg["timestamp"] = s.now().UnixMilli()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}
	return s.pub.Publish(ctx, n.Type, payload)
}
