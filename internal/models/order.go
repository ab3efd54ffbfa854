package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status constants. Filled and cancelled are terminal.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ActiveOrderStatuses are the states in which an order may still be filled
// or cancelled.
var ActiveOrderStatuses = []OrderStatus{OrderStatusOpen, OrderStatusPartial}

// Active reports whether the order may still be filled or cancelled
func (s OrderStatus) Active() bool {
	for _, active := range ActiveOrderStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// LimitOrder is a resting order on a market outcome
type LimitOrder struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	MarketID     uint            `gorm:"not null;uniqueIndex:idx_order_market_outcome_id" json:"market_id"`
	OutcomeIndex int             `gorm:"not null;uniqueIndex:idx_order_market_outcome_id" json:"outcome_index"`
	OrderID      string          `gorm:"size:64;not null;uniqueIndex:idx_order_market_outcome_id" json:"order_id"`
	Owner        string          `gorm:"size:64;not null;index" json:"owner"`
	OrderType    string          `gorm:"size:20;not null;default:limit" json:"order_type"`
	Side         string          `gorm:"size:10;not null;default:buy" json:"side"`
	Price        decimal.Decimal `gorm:"type:decimal(20,9);not null;default:0" json:"price"`
	Size         int64           `gorm:"not null;default:0" json:"size"`
	FilledSize   int64           `gorm:"not null;default:0" json:"filled_size"`
	Status       OrderStatus     `gorm:"size:20;not null;default:open;index" json:"status"`
	TxSignature  string          `gorm:"size:128" json:"tx_signature"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName specifies the table name for LimitOrder model
func (LimitOrder) TableName() string {
	return "limit_orders"
}
