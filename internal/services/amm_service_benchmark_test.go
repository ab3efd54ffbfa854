package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"arena-indexer/internal/events"
	"arena-indexer/internal/notify"
	"arena-indexer/internal/testutil"
)

func BenchmarkSwap(b *testing.B) {
	db := testutil.NewDB(b)
	log := testutil.Logger()
	notifier := notify.NewNotifier(log, time.Second)
	arena := NewArenaService(db, notifier, log, 0)
	amm := NewAMMService(db, notifier, log)
	ctx := context.Background()

	outcome := 0
	if err := arena.CreateArena(ctx, "5xCreate", &events.CreateArena{
		ArenaAccount: arenaAccount,
		Title:        "bench",
		Question:     "bench?",
		Outcomes:     []string{"Yes", "No"},
		Creator:      "Creator",
	}); err != nil {
		b.Fatalf("seed arena: %v", err)
	}
	if err := amm.InitializePool(ctx, "5xPool", &events.InitializePool{
		ArenaAccount: arenaAccount,
		OutcomeIndex: &outcome,
		Pool:         "PoolA",
	}); err != nil {
		b.Fatalf("seed pool: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := amm.Swap(ctx, fmt.Sprintf("5xSwap%d", i), &events.Swap{
			Pool:         "PoolA",
			User:         "Trader",
			AmountIn:     10,
			AmountOut:    9,
			IsTokenToSol: i%2 == 0,
		})
		if err != nil {
			b.Fatalf("Swap failed: %v", err)
		}
	}
}
