package database

import (
	"database/sql/driver"
	"errors"
	"strings"

	"arena-indexer/internal/apperrors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	sqlstateUniqueViolation      = "23505"
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateAdminShutdown        = "57P01"
	sqlclassConnectionException  = "08"
)

// Classify turns a raw store failure into a Database error. Errors that
// already carry a kind pass through unchanged. Unique violations get the
// ALREADY_EXISTS code so inserters can treat them as benign.
func Classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	e := apperrors.Database(err, IsTransient(err), format, args...)
	if IsUniqueViolation(err) {
		e.Code = apperrors.CodeAlreadyExists
	}
	return e
}

// IsUniqueViolation reports whether err is a primary key or unique index
// conflict on any of the supported drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateUniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == sqlstateUniqueViolation
	}
	// sqlite drivers without error translation
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsTransient reports whether a store failure is connection-level or a
// concurrency abort, i.e. whether re-running the whole unit of work may help.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || apperrors.IsTransientCause(err) {
		return true
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLState(pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return retryableSQLState(string(pqErr.Code))
	}
	return false
}

func retryableSQLState(code string) bool {
	switch code {
	case sqlstateSerializationFailure, sqlstateDeadlockDetected, sqlstateAdminShutdown:
		return true
	}
	return strings.HasPrefix(code, sqlclassConnectionException)
}
