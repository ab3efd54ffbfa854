package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pool status constants
type PoolStatus string

const PoolStatusActive PoolStatus = "ACTIVE"

// Liquidity event kinds
const (
	LiquidityAdd    = "add"
	LiquidityRemove = "remove"
)

// AMMPool is a constant-product pool for one outcome's share token.
// Reserves and LP supply change only through deltas.
type AMMPool struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	PoolAccount    string     `gorm:"size:64;uniqueIndex;not null" json:"pool"`
	MarketID       uint       `gorm:"not null;index" json:"market_id"`
	OutcomeIndex   int        `gorm:"not null" json:"outcome_index"`
	ShareMint      string     `gorm:"size:64" json:"share_mint,omitempty"`
	LPTokenMint    string     `gorm:"size:64" json:"lp_token_mint,omitempty"`
	TokenReserve   int64      `gorm:"not null;default:0" json:"token_reserve"`
	SolReserve     int64      `gorm:"not null;default:0" json:"sol_reserve"`
	TotalLPTokens  int64      `gorm:"column:total_lp_tokens;not null;default:0" json:"total_lp_tokens"`
	FeeBps         int        `gorm:"not null;default:30" json:"fee_bps"`
	ProtocolFeeBps int        `gorm:"not null;default:10" json:"protocol_fee_bps"`
	Status         PoolStatus `gorm:"size:20;not null;default:ACTIVE" json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (AMMPool) TableName() string {
	return "amm_pools"
}

// LiquidityPosition is one provider's stake in a pool
type LiquidityPosition struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PoolID          uint      `gorm:"not null;uniqueIndex:idx_lp_pool_provider" json:"pool_id"`
	Provider        string    `gorm:"size:64;not null;uniqueIndex:idx_lp_pool_provider" json:"provider"`
	LPTokens        int64     `gorm:"column:lp_tokens;not null;default:0" json:"lp_tokens"`
	TokensDeposited int64     `gorm:"not null;default:0" json:"tokens_deposited"`
	SolDeposited    int64     `gorm:"not null;default:0" json:"sol_deposited"`
	FeesEarned      int64     `gorm:"not null;default:0" json:"fees_earned"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (LiquidityPosition) TableName() string {
	return "liquidity_positions"
}

// LiquidityEvent logs an add or remove, one row per ledger transaction
type LiquidityEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TxSignature string    `gorm:"size:128;uniqueIndex;not null" json:"tx_signature"`
	PoolID      uint      `gorm:"not null;index" json:"pool_id"`
	Provider    string    `gorm:"size:64;not null" json:"provider"`
	Kind        string    `gorm:"size:10;not null" json:"kind"`
	TokenAmount int64     `gorm:"not null;default:0" json:"token_amount"`
	SolAmount   int64     `gorm:"not null;default:0" json:"sol_amount"`
	LPTokens    int64     `gorm:"column:lp_tokens;not null;default:0" json:"lp_tokens"`
	FeesEarned  int64     `gorm:"not null;default:0" json:"fees_earned"`
	CreatedAt   time.Time `json:"created_at"`
}

func (LiquidityEvent) TableName() string {
	return "liquidity_events"
}

func (e *LiquidityEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Swap is an immutable record of a pool swap
type Swap struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TxSignature  string    `gorm:"size:128;uniqueIndex;not null" json:"tx_signature"`
	PoolID       uint      `gorm:"not null;index" json:"pool_id"`
	User         string    `gorm:"size:64;not null;index" json:"user"`
	IsTokenToSol bool      `gorm:"not null" json:"is_token_to_sol"`
	AmountIn     int64     `gorm:"not null" json:"amount_in"`
	AmountOut    int64     `gorm:"not null" json:"amount_out"`
	FeeAmount    int64     `gorm:"not null;default:0" json:"fee_amount"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Swap) TableName() string {
	return "swaps"
}

func (s *Swap) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
