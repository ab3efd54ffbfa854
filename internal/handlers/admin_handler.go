package handlers

import (
	"context"
	"net/http"
	"strconv"

	"arena-indexer/internal/apperrors"
	"arena-indexer/internal/auth"
	"arena-indexer/internal/blockchain"
	"arena-indexer/internal/dedup"
	"arena-indexer/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ProcessedLookup reads processed-transaction markers
type ProcessedLookup interface {
	GetProcessed(ctx context.Context, signature string) (*models.ProcessedTransaction, error)
}

// LedgerClient reports a transaction's status on the ledger
type LedgerClient interface {
	GetTransactionStatus(ctx context.Context, signature string) (*blockchain.TransactionStatus, error)
}

// AdminHandler serves operator maintenance routes
type AdminHandler struct {
	processed  ProcessedLookup
	guard      *dedup.Guard
	ledger     LedgerClient
	production bool
	log        *logrus.Logger
}

func NewAdminHandler(processed ProcessedLookup, guard *dedup.Guard, ledger LedgerClient, production bool, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		processed:  processed,
		guard:      guard,
		ledger:     ledger,
		production: production,
		log:        log,
	}
}

func (h *AdminHandler) audit(c *gin.Context, action, signature string) *logrus.Entry {
	operator, _ := auth.GetOperator(c)
	return h.log.WithFields(logrus.Fields{
		"admin_action": action,
		"operator":     operator,
		"signature":    signature,
	})
}

// GetProcessed returns the processed marker of a transaction. With
// ?ledger=true the ledger's view of the signature is included.
func (h *AdminHandler) GetProcessed(c *gin.Context) {
	signature := c.Param("signature")
	ctx := c.Request.Context()

	record, err := h.processed.GetProcessed(ctx, signature)
	if err != nil {
		respondError(c, err, h.production)
		return
	}

	data := gin.H{
		"signature": signature,
		"processed": record != nil,
	}
	if record != nil {
		data["processedAt"] = record.ProcessedAt
	}

	if withLedger, _ := strconv.ParseBool(c.Query("ledger")); withLedger {
		if h.ledger == nil {
			respondError(c, apperrors.Validation("Ledger lookups are not configured"), h.production)
			return
		}
		status, err := h.ledger.GetTransactionStatus(ctx, signature)
		if err != nil {
			respondError(c, err, h.production)
			return
		}
		data["ledger"] = status
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// ClearProcessed forgets a processed marker so the next delivery of the
// transaction is applied again. Mutators are idempotent, so a replay of an
// already applied transaction changes nothing.
func (h *AdminHandler) ClearProcessed(c *gin.Context) {
	signature := c.Param("signature")

	existed, err := h.guard.Clear(c.Request.Context(), signature)
	if err != nil {
		respondError(c, err, h.production)
		return
	}
	if !existed {
		respondError(c, apperrors.NotFound("PROCESSED_NOT_FOUND", "Transaction %s is not marked processed", signature), h.production)
		return
	}

	h.audit(c, "clear_processed", signature).Info("Processed marker cleared")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Processed marker cleared",
	})
}
