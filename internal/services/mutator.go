package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arena-indexer/internal/apperrors"
	"arena-indexer/internal/database"
	"arena-indexer/internal/models"
	"arena-indexer/internal/notify"
	"arena-indexer/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// errAlreadyApplied aborts a mutation whose effect is already in the store.
// The transaction is rolled back and the mutator reports success.
var errAlreadyApplied = errors.New("already applied")

// mutator is shared by the per-domain services. Every state change runs in
// one database transaction and live updates are only sent after commit.
type mutator struct {
	db       *gorm.DB
	repo     *repository.Repository
	notifier *notify.Notifier
	log      *logrus.Logger
	now      func() time.Time
}

func newMutator(db *gorm.DB, notifier *notify.Notifier, log *logrus.Logger) mutator {
	return mutator{
		db:       db,
		repo:     repository.NewRepository(db),
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// outbox collects notifications produced inside a transaction.
type outbox []notify.Notification

func (o *outbox) add(n notify.Notification) {
	*o = append(*o, n)
}

// apply runs fn in a transaction. It returns applied=false when fn reported
// errAlreadyApplied, and only flushes the outbox after a successful commit.
func (m *mutator) apply(ctx context.Context, op string, fn func(tx *gorm.DB, repo *repository.Repository, out *outbox) error) (bool, error) {
	var out outbox
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, m.repo.WithTx(tx), &out)
	})
	if errors.Is(err, errAlreadyApplied) {
		return false, nil
	}
	if err != nil {
		return false, database.Classify(err, "%s", op)
	}
	for _, n := range out {
		m.notifier.Notify(n)
	}
	return true, nil
}

// insertOnce creates row and converts a unique violation into
// errAlreadyApplied.
func insertOnce(tx *gorm.DB, row interface{}, op string) error {
	if err := tx.Create(row).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return errAlreadyApplied
		}
		return database.Classify(err, "%s", op)
	}
	return nil
}

func checkOutcome(market *models.Market, idx int, what string) error {
	if idx < 0 || idx >= len(market.Outcomes) {
		return apperrors.New(apperrors.KindValidation, "INVALID_OUTCOME",
			fmt.Sprintf("Invalid %s index: %d", what, idx))
	}
	return nil
}

func (m *mutator) entry(kind, signature string) *logrus.Entry {
	return m.log.WithFields(logrus.Fields{"event": kind, "signature": signature})
}
