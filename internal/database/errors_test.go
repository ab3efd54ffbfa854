package database

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"arena-indexer/internal/apperrors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"gorm duplicate", gorm.ErrDuplicatedKey, apperrors.CodeAlreadyExists, false},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, apperrors.CodeAlreadyExists, false},
		{"lib/pq unique", &pq.Error{Code: "23505"}, apperrors.CodeAlreadyExists, false},
		{"sqlite unique", errors.New("UNIQUE constraint failed: participants.wallet"), apperrors.CodeAlreadyExists, false},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), apperrors.CodeDatabase, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, apperrors.CodeDatabase, true},
		{"connection exception", &pq.Error{Code: "08006"}, apperrors.CodeDatabase, true},
		{"syntax error", &pgconn.PgError{Code: "42601"}, apperrors.CodeDatabase, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err, "insert row")
			if apperrors.KindOf(err) != apperrors.KindDatabase {
				t.Fatalf("expected database kind, got %s", apperrors.KindOf(err))
			}
			if got := apperrors.CodeOf(err); got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
			if got := apperrors.Retryable(err); got != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestClassifyPassesThroughKindedErrors(t *testing.T) {
	nf := apperrors.NotFound("ARENA_NOT_FOUND", "arena %s not found", "X")
	if got := Classify(nf, "load arena"); got != error(nf) {
		t.Fatalf("expected the original error, got %v", got)
	}
	if Classify(nil, "noop") != nil {
		t.Fatal("nil should stay nil")
	}
}
