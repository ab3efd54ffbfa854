package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade sides
const (
	TradeSideBuy   = "buy"
	TradeSideSell  = "sell"
	TradeSideMatch = "match"
)

// OutcomeShare tracks the share token of one market outcome
type OutcomeShare struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	MarketID     uint            `gorm:"not null;uniqueIndex:idx_share_market_outcome" json:"market_id"`
	OutcomeIndex int             `gorm:"not null;uniqueIndex:idx_share_market_outcome" json:"outcome_index"`
	TokenMint    string          `gorm:"size:64;not null" json:"token_mint"`
	InitialPrice decimal.Decimal `gorm:"type:decimal(20,9);not null;default:0" json:"initial_price"`
	CurrentPrice decimal.Decimal `gorm:"type:decimal(20,9);not null;default:0" json:"current_price"`
	TotalSupply  int64           `gorm:"not null;default:0" json:"total_supply"`
	Volume24h    int64           `gorm:"column:volume_24h;not null;default:0" json:"volume_24h"`
	TradeCount   int             `gorm:"not null;default:0" json:"trade_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (OutcomeShare) TableName() string {
	return "outcome_shares"
}

// Trade is an immutable record of a share buy, sell or order match. One row
// per ledger transaction.
type Trade struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TxSignature  string          `gorm:"size:128;uniqueIndex;not null" json:"tx_signature"`
	MarketID     uint            `gorm:"not null;index" json:"market_id"`
	OutcomeIndex int             `gorm:"not null" json:"outcome_index"`
	Trader       string          `gorm:"size:64;index" json:"trader,omitempty"`
	Side         string          `gorm:"size:10;not null" json:"side"`
	Shares       int64           `gorm:"not null;default:0" json:"shares"`
	SolAmount    int64           `gorm:"not null;default:0" json:"sol_amount"`
	Price        decimal.Decimal `gorm:"type:decimal(20,9);not null;default:0" json:"price"`
	MakerOrderID string          `gorm:"size:64" json:"maker_order_id,omitempty"`
	TakerOrderID string          `gorm:"size:64" json:"taker_order_id,omitempty"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}

func (t *Trade) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// UserPosition is a wallet's net share holding in one outcome
type UserPosition struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Owner        string    `gorm:"size:64;not null;uniqueIndex:idx_position_owner_market_outcome" json:"owner"`
	MarketID     uint      `gorm:"not null;uniqueIndex:idx_position_owner_market_outcome" json:"market_id"`
	OutcomeIndex int       `gorm:"not null;uniqueIndex:idx_position_owner_market_outcome" json:"outcome_index"`
	Shares       int64     `gorm:"not null;default:0" json:"shares"`
	CostBasis    int64     `gorm:"not null;default:0" json:"cost_basis"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UserPosition) TableName() string {
	return "user_positions"
}
