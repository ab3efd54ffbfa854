package repository

import (
	"context"
	"errors"
	"time"

	"arena-indexer/internal/apperrors"
	"arena-indexer/internal/database"
	"arena-indexer/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Not-found codes rendered to webhook callers
const (
	CodeArenaNotFound       = "ARENA_NOT_FOUND"
	CodeParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	CodePoolNotFound        = "POOL_NOT_FOUND"
	CodeOrderNotFound       = "ORDER_NOT_FOUND"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// GetMarketByAccount retrieves a market by its on-chain arena account
func (r *Repository) GetMarketByAccount(ctx context.Context, account string) (*models.Market, error) {
	var market models.Market
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&market).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(CodeArenaNotFound, "Arena not found: %s", account)
	}
	if err != nil {
		return nil, database.Classify(err, "load arena %s", account)
	}
	return &market, nil
}

// GetMarketWithOutcomes retrieves a market with its per-outcome aggregates
func (r *Repository) GetMarketWithOutcomes(ctx context.Context, account string) (*models.Market, error) {
	var market models.Market
	err := r.db.WithContext(ctx).
		Preload("OutcomeStats", func(db *gorm.DB) *gorm.DB {
			return db.Order("outcome_index ASC")
		}).
		Where("account = ?", account).
		First(&market).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(CodeArenaNotFound, "Arena not found: %s", account)
	}
	if err != nil {
		return nil, database.Classify(err, "load arena %s", account)
	}
	return &market, nil
}

// GetParticipant returns the participant for (market, wallet), or nil
func (r *Repository) GetParticipant(ctx context.Context, marketID uint, wallet string) (*models.Participant, error) {
	var p models.Participant
	err := r.db.WithContext(ctx).
		Where("market_id = ? AND wallet = ?", marketID, wallet).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err, "load participant %s", wallet)
	}
	return &p, nil
}

// GetPoolByAccount retrieves an AMM pool by its on-chain address
func (r *Repository) GetPoolByAccount(ctx context.Context, account string) (*models.AMMPool, error) {
	var pool models.AMMPool
	err := r.db.WithContext(ctx).Where("pool_account = ?", account).First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(CodePoolNotFound, "Pool not found: %s", account)
	}
	if err != nil {
		return nil, database.Classify(err, "load pool %s", account)
	}
	return &pool, nil
}

// GetOrder returns an order by market and on-chain order id, or nil
func (r *Repository) GetOrder(ctx context.Context, marketID uint, outcomeIndex int, orderID string) (*models.LimitOrder, error) {
	var order models.LimitOrder
	err := r.db.WithContext(ctx).
		Where("market_id = ? AND outcome_index = ? AND order_id = ?", marketID, outcomeIndex, orderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err, "load order %s", orderID)
	}
	return &order, nil
}

// OrderExists reports whether any outcome of the market carries orderID
func (r *Repository) OrderExists(ctx context.Context, marketID uint, orderID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.LimitOrder{}).
		Where("market_id = ? AND order_id = ?", marketID, orderID).
		Count(&n).Error
	if err != nil {
		return false, database.Classify(err, "check order %s", orderID)
	}
	return n > 0, nil
}

// TouchMarketActivity stamps last activity on a market. It returns the
// number of rows updated, zero when the market is unknown.
func (r *Repository) TouchMarketActivity(ctx context.Context, account string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("account = ?", account).
		Update("last_activity_at", at)
	if res.Error != nil {
		return 0, database.Classify(res.Error, "touch arena %s", account)
	}
	return res.RowsAffected, nil
}

// ResetDailyVolumes zeroes the rolling 24h volume on markets and shares
func (r *Repository) ResetDailyVolumes(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Market{}).Where("volume_24h <> 0").
			Update("volume_24h", 0).Error; err != nil {
			return database.Classify(err, "reset market volume")
		}
		if err := tx.Model(&models.OutcomeShare{}).Where("volume_24h <> 0").
			Update("volume_24h", 0).Error; err != nil {
			return database.Classify(err, "reset share volume")
		}
		return nil
	})
}

// ProcessedExists reports whether a transaction signature has been committed
func (r *Repository) ProcessedExists(ctx context.Context, signature string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedTransaction{}).
		Where("signature = ?", signature).
		Count(&count).Error
	if err != nil {
		return false, database.Classify(err, "check processed %s", signature)
	}
	return count > 0, nil
}

// GetProcessed returns the processed marker for a signature, or nil
func (r *Repository) GetProcessed(ctx context.Context, signature string) (*models.ProcessedTransaction, error) {
	var pt models.ProcessedTransaction
	err := r.db.WithContext(ctx).Where("signature = ?", signature).First(&pt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err, "load processed %s", signature)
	}
	return &pt, nil
}

// InsertProcessed records a committed transaction. Re-inserting is a no-op.
func (r *Repository) InsertProcessed(ctx context.Context, signature string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedTransaction{Signature: signature, ProcessedAt: at}).Error
	if err != nil {
		return database.Classify(err, "mark processed %s", signature)
	}
	return nil
}

// DeleteProcessed removes a processed marker and reports whether one existed
func (r *Repository) DeleteProcessed(ctx context.Context, signature string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("signature = ?", signature).
		Delete(&models.ProcessedTransaction{})
	if res.Error != nil {
		return false, database.Classify(res.Error, "clear processed %s", signature)
	}
	return res.RowsAffected > 0, nil
}
