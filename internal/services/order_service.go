package services

import (
	"context"

	"arena-indexer/internal/apperrors"
	"arena-indexer/internal/database"
	"arena-indexer/internal/events"
	"arena-indexer/internal/models"
	"arena-indexer/internal/notify"
	"arena-indexer/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OrderService indexes the limit order book
type OrderService struct {
	mutator
}

// NewOrderService creates a new order service
func NewOrderService(db *gorm.DB, notifier *notify.Notifier, log *logrus.Logger) *OrderService {
	return &OrderService{mutator: newMutator(db, notifier, log)}
}

// PlaceLimitOrder records a new open order. Redelivery is ignored.
func (s *OrderService) PlaceLimitOrder(ctx context.Context, signature string, p *events.PlaceLimitOrder) error {
	orderType := p.OrderType
	if orderType == "" {
		orderType = "limit"
	}
	side := p.Side
	if side == "" {
		side = models.TradeSideBuy
	}

	applied, err := s.apply(ctx, "place order", func(tx *gorm.DB, repo *repository.Repository, out *outbox) error {
		market, err := repo.GetMarketByAccount(ctx, p.ArenaAccount)
		if err != nil {
			return err
		}
		if err := checkOutcome(market, *p.OutcomeIndex, "outcome"); err != nil {
			return err
		}
		if err := insertOnce(tx, &models.LimitOrder{
			MarketID:     market.ID,
			OutcomeIndex: *p.OutcomeIndex,
			OrderID:      string(p.OrderID),
			Owner:        p.User,
			OrderType:    orderType,
			Side:         side,
			Price:        p.Price,
			Size:         p.Size.Int64(),
			Status:       models.OrderStatusOpen,
			TxSignature:  signature,
		}, "insert order"); err != nil {
			return err
		}

		out.add(notify.Notification{
			Type:    notify.ChannelOrderUpdate,
			ArenaID: p.ArenaAccount,
			Data: map[string]any{
				"action":       "placed",
				"orderId":      string(p.OrderID),
				"outcomeIndex": *p.OutcomeIndex,
				"side":         side,
				"price":        p.Price.String(),
				"size":         p.Size.Int64(),
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindPlaceLimitOrder.String(), signature).WithFields(logrus.Fields{
		"arena": p.ArenaAccount,
		"order": p.OrderID,
	})
	if !applied {
		entry.Info("Order already recorded")
		return nil
	}
	entry.Info("Limit order placed")
	return nil
}

// CancelOrder moves an open or partially filled order to cancelled. Orders
// in a terminal state are left alone.
func (s *OrderService) CancelOrder(ctx context.Context, signature string, p *events.CancelOrder) error {
	applied, err := s.apply(ctx, "cancel order", func(tx *gorm.DB, repo *repository.Repository, out *outbox) error {
		market, err := repo.GetMarketByAccount(ctx, p.ArenaAccount)
		if err != nil {
			return err
		}

		res := tx.Model(&models.LimitOrder{}).
			Where("market_id = ? AND order_id = ? AND status IN ?", market.ID, string(p.OrderID), models.ActiveOrderStatuses).
			Updates(map[string]interface{}{
				"status":       models.OrderStatusCancelled,
				"cancelled_at": s.now(),
			})
		if res.Error != nil {
			return database.Classify(res.Error, "cancel order")
		}
		if res.RowsAffected == 0 {
			exists, err := repo.OrderExists(ctx, market.ID, string(p.OrderID))
			if err != nil {
				return err
			}
			if !exists {
				// The placement may not have been delivered yet.
				return apperrors.NotFound(repository.CodeOrderNotFound, "Order not found: %s", p.OrderID)
			}
			return errAlreadyApplied
		}

		out.add(notify.Notification{
			Type:    notify.ChannelOrderUpdate,
			ArenaID: p.ArenaAccount,
			Data:    map[string]any{"action": "cancelled", "orderId": string(p.OrderID)},
		})
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindCancelOrder.String(), signature).WithFields(logrus.Fields{
		"arena": p.ArenaAccount,
		"order": p.OrderID,
	})
	if !applied {
		entry.Info("Order already terminal")
		return nil
	}
	entry.Info("Order cancelled")
	return nil
}

// OrderMatched logs the fill as a trade and adds it to both orders.
func (s *OrderService) OrderMatched(ctx context.Context, signature string, p *events.OrderMatched) error {
	fill := p.FillAmount.Int64()
	outcome := *p.OutcomeIndex

	applied, err := s.apply(ctx, "match orders", func(tx *gorm.DB, repo *repository.Repository, out *outbox) error {
		market, err := repo.GetMarketByAccount(ctx, p.ArenaAccount)
		if err != nil {
			return err
		}
		if err := checkOutcome(market, outcome, "outcome"); err != nil {
			return err
		}

		var trader string
		taker, err := repo.GetOrder(ctx, market.ID, outcome, string(p.TakerOrderID))
		if err != nil {
			return err
		}
		if taker != nil {
			trader = taker.Owner
		}

		if err := insertOnce(tx, &models.Trade{
			TxSignature:  signature,
			MarketID:     market.ID,
			OutcomeIndex: outcome,
			Trader:       trader,
			Side:         models.TradeSideMatch,
			Shares:       fill,
			Price:        p.FillPrice,
			MakerOrderID: string(p.MakerOrderID),
			TakerOrderID: string(p.TakerOrderID),
		}, "insert match"); err != nil {
			return err
		}

		for _, id := range []events.OrderID{p.MakerOrderID, p.TakerOrderID} {
			n, err := fillOrder(tx, market.ID, outcome, string(id), fill)
			if err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			// The match is still recorded so the trade history stays complete.
			entry := s.entry(events.KindOrderMatched.String(), signature).WithFields(logrus.Fields{
				"arena": p.ArenaAccount,
				"order": string(id),
			})
			order, err := repo.GetOrder(ctx, market.ID, outcome, string(id))
			if err != nil {
				return err
			}
			switch {
			case order == nil:
				entry.Warn("Matched order not found")
			case !order.Status.Active():
				entry.WithField("status", order.Status).Warn("Fill for an order already terminal")
			}
		}

		shareUpdates := map[string]interface{}{"trade_count": gorm.Expr("trade_count + 1")}
		if p.FillPrice.IsPositive() {
			shareUpdates["current_price"] = p.FillPrice
		}
		if err := tx.Model(&models.OutcomeShare{}).
			Where("market_id = ? AND outcome_index = ?", market.ID, outcome).
			Updates(shareUpdates).Error; err != nil {
			return database.Classify(err, "update outcome share")
		}
		if err := tx.Model(&models.Market{}).Where("id = ?", market.ID).
			Update("last_activity_at", s.now()).Error; err != nil {
			return database.Classify(err, "touch arena")
		}

		out.add(notify.Notification{
			Type:    notify.ChannelOrderUpdate,
			ArenaID: p.ArenaAccount,
			Data: map[string]any{
				"action":       "matched",
				"makerOrderId": string(p.MakerOrderID),
				"takerOrderId": string(p.TakerOrderID),
				"fillAmount":   fill,
				"fillPrice":    p.FillPrice.String(),
			},
		})
		return nil
	})
	if err != nil {
		return err
	}

	entry := s.entry(events.KindOrderMatched.String(), signature).WithFields(logrus.Fields{
		"arena": p.ArenaAccount,
		"maker": p.MakerOrderID,
		"taker": p.TakerOrderID,
	})
	if !applied {
		entry.Info("Match already recorded")
		return nil
	}
	entry.WithField("fill", fill).Info("Orders matched")
	return nil
}

// fillOrder adds fill to an active order and moves it to partial or filled.
func fillOrder(tx *gorm.DB, marketID uint, outcome int, orderID string, fill int64) (int64, error) {
	res := tx.Model(&models.LimitOrder{}).
		Where("market_id = ? AND outcome_index = ? AND order_id = ? AND status IN ?",
			marketID, outcome, orderID, models.ActiveOrderStatuses).
		Updates(map[string]interface{}{
			"filled_size": gorm.Expr("filled_size + ?", fill),
			"status": gorm.Expr("CASE WHEN filled_size + ? >= size THEN ? ELSE ? END",
				fill, models.OrderStatusFilled, models.OrderStatusPartial),
		})
	if res.Error != nil {
		return 0, database.Classify(res.Error, "fill order %s", orderID)
	}
	return res.RowsAffected, nil
}
