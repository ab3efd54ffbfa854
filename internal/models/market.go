package models

import (
	"time"
)

// Market is an arena indexed from the prediction program. Account is the
// on-chain arena address and the natural key used by every event.
type Market struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Account          string          `gorm:"size:64;uniqueIndex;not null" json:"arena_account"`
	Creator          string          `gorm:"size:64;not null;index" json:"creator"`
	Title            string          `gorm:"size:500;not null" json:"title"`
	Description      string          `gorm:"type:text" json:"description"`
	Question         string          `gorm:"type:text;not null" json:"question"`
	Outcomes         StringList      `json:"outcomes"`
	Tags             StringList      `json:"tags"`
	EntryFee         int64           `gorm:"not null;default:0" json:"entry_fee"`
	EndTime          time.Time       `json:"end_time"`
	Resolved         bool            `gorm:"not null;default:false;index" json:"resolved"`
	WinnerOutcome    *int            `json:"winner_outcome,omitempty"`
	Pot              int64           `gorm:"not null;default:0" json:"pot"`
	ParticipantCount int             `gorm:"not null;default:0" json:"participant_count"`
	Volume           int64           `gorm:"not null;default:0" json:"volume"`
	Volume24h        int64           `gorm:"column:volume_24h;not null;default:0" json:"volume_24h"`
	TxSignature      string          `gorm:"size:128" json:"tx_signature"`
	LastActivityAt   *time.Time      `json:"last_activity_at,omitempty"`
	OutcomeStats     []MarketOutcome `gorm:"foreignKey:MarketID" json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// OutcomePots returns the per-outcome pot aligned with Outcomes. OutcomeStats
// must be preloaded.
func (m *Market) OutcomePots() []int64 {
	pots := make([]int64, len(m.Outcomes))
	for _, s := range m.OutcomeStats {
		if s.OutcomeIndex >= 0 && s.OutcomeIndex < len(pots) {
			pots[s.OutcomeIndex] = s.Pot
		}
	}
	return pots
}

// OutcomeCounts returns the per-outcome participant count aligned with Outcomes.
func (m *Market) OutcomeCounts() []int {
	counts := make([]int, len(m.Outcomes))
	for _, s := range m.OutcomeStats {
		if s.OutcomeIndex >= 0 && s.OutcomeIndex < len(counts) {
			counts[s.OutcomeIndex] = s.ParticipantCount
		}
	}
	return counts
}

// MarketOutcome holds the aggregates of one outcome of a market
type MarketOutcome struct {
	ID               uint  `gorm:"primaryKey" json:"id"`
	MarketID         uint  `gorm:"not null;uniqueIndex:idx_market_outcome" json:"market_id"`
	OutcomeIndex     int   `gorm:"not null;uniqueIndex:idx_market_outcome" json:"outcome_index"`
	Pot              int64 `gorm:"not null;default:0" json:"pot"`
	ParticipantCount int   `gorm:"not null;default:0" json:"participant_count"`
}

func (MarketOutcome) TableName() string {
	return "market_outcomes"
}

// Participant is a wallet's entry in a market. At most one per (market, wallet).
type Participant struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	MarketID      uint       `gorm:"not null;uniqueIndex:idx_participant_market_wallet" json:"market_id"`
	Wallet        string     `gorm:"size:64;not null;uniqueIndex:idx_participant_market_wallet;index" json:"wallet"`
	OutcomeChosen int        `gorm:"not null" json:"outcome_chosen"`
	Stake         int64      `gorm:"not null" json:"stake"`
	Claimed       bool       `gorm:"not null;default:false" json:"claimed"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	TxSignature   string     `gorm:"size:128" json:"tx_signature"`
	JoinedAt      time.Time  `json:"joined_at"`
}

func (Participant) TableName() string {
	return "participants"
}
