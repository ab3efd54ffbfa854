package services

import (
	"context"

	"arena-indexer/internal/database"
	"arena-indexer/internal/events"
	"arena-indexer/internal/models"
	"arena-indexer/internal/notify"
	"arena-indexer/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShareService indexes outcome share tokens and the trades against them.
type ShareService struct {
	mutator
}

// NewShareService creates a new share service
func NewShareService(db *gorm.DB, notifier *notify.Notifier, log *logrus.Logger) *ShareService {
	return &ShareService{mutator: newMutator(db, notifier, log)}
}

// CreateShareTokens registers the share mint of one outcome. A second
// registration for the same outcome is ignored.
func (s *ShareService) CreateShareTokens(ctx context.Context, signature string, p *events.CreateShareTokens) error {
	applied, err := s.apply(ctx, "create share tokens", func(tx *gorm.DB, repo *repository.Repository, _ *outbox) error {
		market, err := repo.GetMarketByAccount(ctx, p.ArenaAccount)
		if err != nil {
			return err
		}
		if err := checkOutcome(market, *p.OutcomeIndex, "outcome"); err != nil {
			return err
		}
		return insertOnce(tx, &models.OutcomeShare{
			MarketID:     market.ID,
			OutcomeIndex: *p.OutcomeIndex,
			TokenMint:    p.TokenMint,
			InitialPrice: p.InitialPrice,
			CurrentPrice: p.InitialPrice,
		}, "insert outcome share")
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindCreateShareTokens.String(), signature).WithFields(logrus.Fields{
		"arena":   p.ArenaAccount,
		"outcome": *p.OutcomeIndex,
	})
	if !applied {
		entry.Info("Share tokens already exist")
		return nil
	}
	entry.Info("Share tokens created")
	return nil
}

// shareTrade is the common shape of a buy or a sell
type shareTrade struct {
	kind         events.Kind
	side         string
	arena        string
	trader       string
	outcome      int
	shares       int64 // signed supply delta
	sol          int64 // SOL moved, always positive
	currentPrice decimal.Decimal
}

// BuyShares logs the trade, mints supply and grows the buyer's position.
func (s *ShareService) BuyShares(ctx context.Context, signature string, p *events.BuyShares) error {
	return s.recordTrade(ctx, signature, shareTrade{
		kind:         events.KindBuyShares,
		side:         models.TradeSideBuy,
		arena:        p.ArenaAccount,
		trader:       p.Buyer,
		outcome:      *p.OutcomeIndex,
		shares:       p.SharesMinted.Int64(),
		sol:          p.SolSpent.Int64(),
		currentPrice: p.CurrentPrice,
	})
}

// SellShares logs the trade, burns supply and shrinks the seller's position.
func (s *ShareService) SellShares(ctx context.Context, signature string, p *events.SellShares) error {
	return s.recordTrade(ctx, signature, shareTrade{
		kind:         events.KindSellShares,
		side:         models.TradeSideSell,
		arena:        p.ArenaAccount,
		trader:       p.Seller,
		outcome:      *p.OutcomeIndex,
		shares:       -p.SharesBurned.Int64(),
		sol:          p.SolReceived.Int64(),
		currentPrice: p.CurrentPrice,
	})
}

func (s *ShareService) recordTrade(ctx context.Context, signature string, t shareTrade) error {
	shares := t.shares
	if shares < 0 {
		shares = -shares
	}

	applied, err := s.apply(ctx, "record "+t.side, func(tx *gorm.DB, repo *repository.Repository, out *outbox) error {
		market, err := repo.GetMarketByAccount(ctx, t.arena)
		if err != nil {
			return err
		}
		if err := checkOutcome(market, t.outcome, "outcome"); err != nil {
			return err
		}

		if err := insertOnce(tx, &models.Trade{
			TxSignature:  signature,
			MarketID:     market.ID,
			OutcomeIndex: t.outcome,
			Trader:       t.trader,
			Side:         t.side,
			Shares:       shares,
			SolAmount:    t.sol,
			Price:        t.currentPrice,
		}, "insert trade"); err != nil {
			return err
		}

		now := s.now()
		if err := tx.Model(&models.Market{}).Where("id = ?", market.ID).Updates(map[string]interface{}{
			"volume":           gorm.Expr("volume + ?", t.sol),
			"volume_24h":       gorm.Expr("volume_24h + ?", t.sol),
			"last_activity_at": now,
		}).Error; err != nil {
			return database.Classify(err, "update arena volume")
		}

		res := tx.Model(&models.OutcomeShare{}).
			Where("market_id = ? AND outcome_index = ?", market.ID, t.outcome).
			Updates(map[string]interface{}{
				"total_supply":  gorm.Expr("total_supply + ?", t.shares),
				"current_price": t.currentPrice,
				"volume_24h":    gorm.Expr("volume_24h + ?", t.sol),
				"trade_count":   gorm.Expr("trade_count + 1"),
			})
		if res.Error != nil {
			return database.Classify(res.Error, "update outcome share")
		}
		if res.RowsAffected == 0 {
			s.entry(t.kind.String(), signature).WithField("outcome", t.outcome).
				Warn("Trade on an outcome without registered share tokens")
		}

		if err := s.updatePosition(tx, market.ID, t); err != nil {
			return err
		}

		out.add(notify.Notification{
			Type:    notify.ChannelTradeNew,
			ArenaID: t.arena,
			Data: map[string]any{"trade": map[string]any{
				"user":    t.trader,
				"outcome": t.outcome,
				"type":    t.side,
				"amount":  shares,
				"price":   t.currentPrice.String(),
			}},
		})
		out.add(notify.Notification{
			Type:    notify.ChannelPriceUpdate,
			ArenaID: t.arena,
			Data: map[string]any{
				"outcomeIndex": t.outcome,
				"price":        t.currentPrice.String(),
				"volume":       t.sol,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(t.kind.String(), signature).WithFields(logrus.Fields{
		"arena":  t.arena,
		"trader": t.trader,
	})
	if !applied {
		entry.Info("Trade already recorded")
		return nil
	}
	entry.Info("Trade recorded")
	return nil
}

// updatePosition applies the trade to the trader's position with additive
// deltas. Buys create the row on first use.
func (s *ShareService) updatePosition(tx *gorm.DB, marketID uint, t shareTrade) error {
	costDelta := t.sol
	if t.shares < 0 {
		costDelta = -t.sol
	}

	if t.side == models.TradeSideBuy {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner"}, {Name: "market_id"}, {Name: "outcome_index"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"shares":     gorm.Expr("user_positions.shares + ?", t.shares),
				"cost_basis": gorm.Expr("user_positions.cost_basis + ?", costDelta),
				"updated_at": s.now(),
			}),
		}).Create(&models.UserPosition{
			Owner:        t.trader,
			MarketID:     marketID,
			OutcomeIndex: t.outcome,
			Shares:       t.shares,
			CostBasis:    costDelta,
		}).Error
		if err != nil {
			return database.Classify(err, "upsert position")
		}
		return nil
	}

	err := tx.Model(&models.UserPosition{}).
		Where("owner = ? AND market_id = ? AND outcome_index = ?", t.trader, marketID, t.outcome).
		Updates(map[string]interface{}{
			"shares":     gorm.Expr("shares + ?", t.shares),
			"cost_basis": gorm.Expr("cost_basis + ?", costDelta),
		}).Error
	if err != nil {
		return database.Classify(err, "update position")
	}
	return nil
}
