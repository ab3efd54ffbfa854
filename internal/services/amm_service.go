package services

import (
	"context"

	"arena-indexer/internal/database"
	"arena-indexer/internal/events"
	"arena-indexer/internal/models"
	"arena-indexer/internal/notify"
	"arena-indexer/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AMMService indexes pool lifecycle, liquidity and swaps
type AMMService struct {
	mutator
}

// NewAMMService creates a new AMM service
func NewAMMService(db *gorm.DB, notifier *notify.Notifier, log *logrus.Logger) *AMMService {
	return &AMMService{mutator: newMutator(db, notifier, log)}
}

// ============================================================================
// POOL OPERATIONS
// ============================================================================

// InitializePool registers a pool with empty reserves
func (s *AMMService) InitializePool(ctx context.Context, signature string, p *events.InitializePool) error {
	feeBps, protocolFeeBps := p.Fees()

	applied, err := s.apply(ctx, "initialize pool", func(tx *gorm.DB, repo *repository.Repository, _ *outbox) error {
		market, err := repo.GetMarketByAccount(ctx, p.ArenaAccount)
		if err != nil {
			return err
		}
		if err := checkOutcome(market, *p.OutcomeIndex, "outcome"); err != nil {
			return err
		}
		return insertOnce(tx, &models.AMMPool{
			PoolAccount:    p.Pool,
			MarketID:       market.ID,
			OutcomeIndex:   *p.OutcomeIndex,
			ShareMint:      p.ShareMint,
			LPTokenMint:    p.LPTokenMint,
			FeeBps:         feeBps,
			ProtocolFeeBps: protocolFeeBps,
			Status:         models.PoolStatusActive,
		}, "insert pool")
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindInitializePool.String(), signature).WithFields(logrus.Fields{
		"arena": p.ArenaAccount,
		"pool":  p.Pool,
	})
	if !applied {
		entry.Info("Pool already initialized")
		return nil
	}
	entry.Info("Pool initialized")
	return nil
}

// ============================================================================
// LIQUIDITY
// ============================================================================

// AddLiquidity grows reserves and LP supply and credits the provider.
func (s *AMMService) AddLiquidity(ctx context.Context, signature string, p *events.AddLiquidity) error {
	applied, err := s.apply(ctx, "add liquidity", func(tx *gorm.DB, repo *repository.Repository, _ *outbox) error {
		pool, err := repo.GetPoolByAccount(ctx, p.Pool)
		if err != nil {
			return err
		}
		if err := insertOnce(tx, &models.LiquidityEvent{
			TxSignature: signature,
			PoolID:      pool.ID,
			Provider:    p.Provider,
			Kind:        models.LiquidityAdd,
			TokenAmount: p.TokenAmount.Int64(),
			SolAmount:   p.SolAmount.Int64(),
			LPTokens:    p.LPTokensMinted.Int64(),
		}, "insert liquidity event"); err != nil {
			return err
		}

		if err := adjustReserves(tx, pool.ID, p.TokenAmount.Int64(), p.SolAmount.Int64(), p.LPTokensMinted.Int64()); err != nil {
			return err
		}

		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "pool_id"}, {Name: "provider"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"lp_tokens":        gorm.Expr("liquidity_positions.lp_tokens + ?", p.LPTokensMinted.Int64()),
				"tokens_deposited": gorm.Expr("liquidity_positions.tokens_deposited + ?", p.TokenAmount.Int64()),
				"sol_deposited":    gorm.Expr("liquidity_positions.sol_deposited + ?", p.SolAmount.Int64()),
				"updated_at":       s.now(),
			}),
		}).Create(&models.LiquidityPosition{
			PoolID:          pool.ID,
			Provider:        p.Provider,
			LPTokens:        p.LPTokensMinted.Int64(),
			TokensDeposited: p.TokenAmount.Int64(),
			SolDeposited:    p.SolAmount.Int64(),
		}).Error
		if err != nil {
			return database.Classify(err, "upsert liquidity position")
		}
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindAddLiquidity.String(), signature).WithFields(logrus.Fields{
		"pool":     p.Pool,
		"provider": p.Provider,
	})
	if !applied {
		entry.Info("Liquidity add already recorded")
		return nil
	}
	entry.Info("Liquidity added")
	return nil
}

// RemoveLiquidity shrinks reserves and LP supply, burns the provider's LP
// tokens and books the fees they earned.
func (s *AMMService) RemoveLiquidity(ctx context.Context, signature string, p *events.RemoveLiquidity) error {
	applied, err := s.apply(ctx, "remove liquidity", func(tx *gorm.DB, repo *repository.Repository, _ *outbox) error {
		pool, err := repo.GetPoolByAccount(ctx, p.Pool)
		if err != nil {
			return err
		}
		if err := insertOnce(tx, &models.LiquidityEvent{
			TxSignature: signature,
			PoolID:      pool.ID,
			Provider:    p.Provider,
			Kind:        models.LiquidityRemove,
			TokenAmount: p.TokenAmount.Int64(),
			SolAmount:   p.SolAmount.Int64(),
			LPTokens:    p.LPTokensBurned.Int64(),
			FeesEarned:  p.FeesEarned.Int64(),
		}, "insert liquidity event"); err != nil {
			return err
		}

		if err := adjustReserves(tx, pool.ID, -p.TokenAmount.Int64(), -p.SolAmount.Int64(), -p.LPTokensBurned.Int64()); err != nil {
			return err
		}

		res := tx.Model(&models.LiquidityPosition{}).
			Where("pool_id = ? AND provider = ?", pool.ID, p.Provider).
			Updates(map[string]interface{}{
				"lp_tokens":   gorm.Expr("lp_tokens - ?", p.LPTokensBurned.Int64()),
				"fees_earned": gorm.Expr("fees_earned + ?", p.FeesEarned.Int64()),
			})
		if res.Error != nil {
			return database.Classify(res.Error, "update liquidity position")
		}
		if res.RowsAffected == 0 {
			s.entry(events.KindRemoveLiquidity.String(), signature).WithField("provider", p.Provider).
				Warn("Liquidity removed by a provider with no recorded position")
		}
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindRemoveLiquidity.String(), signature).WithFields(logrus.Fields{
		"pool":     p.Pool,
		"provider": p.Provider,
	})
	if !applied {
		entry.Info("Liquidity removal already recorded")
		return nil
	}
	entry.Info("Liquidity removed")
	return nil
}

// ============================================================================
// SWAPS
// ============================================================================

// Swap logs the swap and moves both reserves by the swapped amounts.
func (s *AMMService) Swap(ctx context.Context, signature string, p *events.Swap) error {
	tokenDelta, solDelta := p.AmountIn.Int64(), -p.AmountOut.Int64()
	if !p.IsTokenToSol {
		tokenDelta, solDelta = -p.AmountOut.Int64(), p.AmountIn.Int64()
	}

	applied, err := s.apply(ctx, "swap", func(tx *gorm.DB, repo *repository.Repository, _ *outbox) error {
		pool, err := repo.GetPoolByAccount(ctx, p.Pool)
		if err != nil {
			return err
		}
		if err := insertOnce(tx, &models.Swap{
			TxSignature:  signature,
			PoolID:       pool.ID,
			User:         p.User,
			IsTokenToSol: p.IsTokenToSol,
			AmountIn:     p.AmountIn.Int64(),
			AmountOut:    p.AmountOut.Int64(),
			FeeAmount:    p.FeeAmount.Int64(),
		}, "insert swap"); err != nil {
			return err
		}
		return adjustReserves(tx, pool.ID, tokenDelta, solDelta, 0)
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindSwap.String(), signature).WithFields(logrus.Fields{
		"pool": p.Pool,
		"user": p.User,
	})
	if !applied {
		entry.Info("Swap already recorded")
		return nil
	}
	entry.Info("Swap executed")
	return nil
}

// adjustReserves applies signed deltas to a pool. Reserves are never set
// absolutely after creation.
func adjustReserves(tx *gorm.DB, poolID uint, tokenDelta, solDelta, lpDelta int64) error {
	err := tx.Model(&models.AMMPool{}).Where("id = ?", poolID).Updates(map[string]interface{}{
		"token_reserve":   gorm.Expr("token_reserve + ?", tokenDelta),
		"sol_reserve":     gorm.Expr("sol_reserve + ?", solDelta),
		"total_lp_tokens": gorm.Expr("total_lp_tokens + ?", lpDelta),
	}).Error
	if err != nil {
		return database.Classify(err, "update pool reserves")
	}
	return nil
}
