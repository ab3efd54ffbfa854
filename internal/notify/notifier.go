// Package notify pushes derived alerts and live updates to external sinks.
// Delivery is fire-and-forget: failures are logged and counted, never
// returned to the caller.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arena-indexer/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Alert types pushed to the presentation service
const (
	TypeBigBet          = "BIG_BET"
	TypeWinnerAnnounced = "WINNER_ANNOUNCED"
)

// Live-update channels
const (
	ChannelMarketUpdate = "market:update"
	ChannelTradeNew     = "trade:new"
	ChannelPriceUpdate  = "price:update"
	ChannelOrderUpdate  = "order:update"
)

// Notification is one outbound message. Type is an alert type or a
// live-update channel.
type Notification struct {
	Type    string         `json:"type"`
	ArenaID string         `json:"arenaId"`
	Data    map[string]any `json:"data"`
}

// Sink delivers notifications of the types it accepts.
type Sink interface {
	Name() string
	Accepts(notificationType string) bool
	Send(ctx context.Context, n Notification) error
}

// Notifier fans notifications out to sinks in background goroutines.
type Notifier struct {
	sinks   []Sink
	timeout time.Duration
	log     *logrus.Logger
	wg      sync.WaitGroup
}

func NewNotifier(log *logrus.Logger, timeout time.Duration, sinks ...Sink) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{sinks: sinks, timeout: timeout, log: log}
}

// Notify schedules n on every accepting sink and returns immediately.
func (n *Notifier) Notify(note Notification) {
	if n == nil {
		return
	}
	for _, sink := range n.sinks {
		if !sink.Accepts(note.Type) {
			continue
		}
		n.wg.Add(1)
		go n.send(sink, note)
	}
}

func (n *Notifier) send(sink Sink, note Notification) {
	defer n.wg.Done()

	entry := n.log.WithFields(logrus.Fields{
		"sink":  sink.Name(),
		"type":  note.Type,
		"arena": note.ArenaID,
	})

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		metrics.IncNotification(sink.Name(), err == nil)
		if err != nil {
			entry.WithError(err).Error("Failed to push notification")
			return
		}
		entry.Debug("Notification pushed")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	err = sink.Send(ctx, note)
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
