package services

import (
	"context"
	"encoding/json"

	"arena-indexer/internal/events"

	"github.com/sirupsen/logrus"
)

type handlerFunc func(ctx context.Context, signature string, raw json.RawMessage) error

// decoded adapts a typed service method into a handlerFunc. Payload decoding
// and validation happen before any store access.
func decoded[P any, PP interface {
	*P
	events.Payload
}](fn func(ctx context.Context, signature string, p PP) error) handlerFunc {
	return func(ctx context.Context, signature string, raw json.RawMessage) error {
		p := PP(new(P))
		if err := events.Decode(raw, p); err != nil {
			return err
		}
		return fn(ctx, signature, p)
	}
}

// Dispatcher routes a delivery to the mutator for its event kind.
type Dispatcher struct {
	handlers map[events.Kind]handlerFunc
	arena    *ArenaService
	log      *logrus.Logger
}

// NewDispatcher wires every known event kind to its service method
func NewDispatcher(arena *ArenaService, shares *ShareService, amm *AMMService, orders *OrderService, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		arena: arena,
		log:   log,
		handlers: map[events.Kind]handlerFunc{
			events.KindCreateArena:       decoded(arena.CreateArena),
			events.KindJoinArena:         decoded(arena.JoinArena),
			events.KindResolveArena:      decoded(arena.ResolveArena),
			events.KindClaimWinnings:     decoded(arena.ClaimWinnings),
			events.KindCreateShareTokens: decoded(shares.CreateShareTokens),
			events.KindBuyShares:         decoded(shares.BuyShares),
			events.KindSellShares:        decoded(shares.SellShares),
			events.KindInitializePool:    decoded(amm.InitializePool),
			events.KindAddLiquidity:      decoded(amm.AddLiquidity),
			events.KindRemoveLiquidity:   decoded(amm.RemoveLiquidity),
			events.KindSwap:              decoded(amm.Swap),
			events.KindPlaceLimitOrder:   decoded(orders.PlaceLimitOrder),
			events.KindCancelOrder:       decoded(orders.CancelOrder),
			events.KindOrderMatched:      decoded(orders.OrderMatched),
		},
	}
}

// Handles reports whether kind has a dedicated handler
func (d *Dispatcher) Handles(kind events.Kind) bool {
	_, ok := d.handlers[kind]
	return ok
}

// Dispatch applies one delivery. Unknown types fall back to recording
// activity on the referenced arena and always succeed.
func (d *Dispatcher) Dispatch(ctx context.Context, delivery *events.Delivery) error {
	if h, ok := d.handlers[delivery.Kind()]; ok {
		return h(ctx, delivery.Signature, delivery.Transaction)
	}

	var generic events.Generic
	if len(delivery.Transaction) > 0 {
		if err := json.Unmarshal(delivery.Transaction, &generic); err != nil {
			d.log.WithFields(logrus.Fields{
				"event":     delivery.Type,
				"signature": delivery.Signature,
			}).WithError(err).Debug("Unknown transaction payload is not an object")
		}
	}
	return d.arena.TouchActivity(ctx, delivery.Type, delivery.Signature, &generic)
}
