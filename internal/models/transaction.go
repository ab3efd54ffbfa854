package models

import (
	"time"
)

// ProcessedTransaction marks a ledger transaction whose effects are committed
type ProcessedTransaction struct {
	Signature   string    `gorm:"size:128;primaryKey" json:"signature"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

// TableName specifies the table name for ProcessedTransaction model
func (ProcessedTransaction) TableName() string {
	return "processed_transactions"
}
