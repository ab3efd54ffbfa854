package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"arena-indexer/internal/apperrors"
	"arena-indexer/internal/dedup"
	"arena-indexer/internal/events"
	"arena-indexer/internal/metrics"
	"arena-indexer/internal/retry"
	"arena-indexer/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Ingress limits applied when WebhookOptions leaves them unset. The signature
// limit matches the width of the signature columns.
const (
	DefaultMaxBodyBytes       = 10 << 20
	DefaultMaxSignatureLength = 128
)

// Dispatcher applies one parsed delivery to the store
type Dispatcher interface {
	Dispatch(ctx context.Context, d *events.Delivery) error
}

// WebhookOptions configures ingress authentication and retries
type WebhookOptions struct {
	Secret          string
	SignatureHeader string
	Retry           retry.Options
	Production      bool

	MaxBodyBytes       int64
	MaxSignatureLength int
}

type WebhookHandler struct {
	dispatcher Dispatcher
	guard      *dedup.Guard
	opts       WebhookOptions
	log        *logrus.Logger
}

func NewWebhookHandler(dispatcher Dispatcher, guard *dedup.Guard, opts WebhookOptions, log *logrus.Logger) *WebhookHandler {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = webhook.DefaultSignatureHeader
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.MaxSignatureLength <= 0 {
		opts.MaxSignatureLength = DefaultMaxSignatureLength
	}
	return &WebhookHandler{dispatcher: dispatcher, guard: guard, opts: opts, log: log}
}

// HandleTransaction ingests one transaction notification. Rate limiting runs
// as middleware in front of it. A 200 is only returned once the transaction
// is committed or known to be committed already.
func (h *WebhookHandler) HandleTransaction(c *gin.Context) {
	start := time.Now()
	eventType := events.KindUnknown.String()
	outcome := metrics.OutcomeRejected
	defer func() {
		metrics.ObserveDelivery(eventType, outcome, time.Since(start))
	}()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperrors.New(apperrors.KindPayloadTooLarge, "",
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit)), h.opts.Production)
			return
		}
		respondError(c, apperrors.Validation("Failed to read request body"), h.opts.Production)
		return
	}

	if h.opts.Secret != "" {
		sig, ok := webhook.ExtractSignature(c.Request.Header, h.opts.SignatureHeader)
		if !ok {
			h.log.WithField("ip", c.ClientIP()).Warn("Webhook rejected: missing signature")
			respondError(c, apperrors.Unauthorized("Missing webhook signature"), h.opts.Production)
			return
		}
		if !webhook.Verify(body, sig, h.opts.Secret) {
			h.log.WithField("ip", c.ClientIP()).Warn("Webhook rejected: invalid signature")
			respondError(c, apperrors.Unauthorized("Invalid webhook signature"), h.opts.Production)
			return
		}
	}

	delivery, err := events.ParseDelivery(body)
	if err != nil {
		respondError(c, err, h.opts.Production)
		return
	}
	if len(delivery.Signature) > h.opts.MaxSignatureLength {
		respondError(c, apperrors.Validation("Transaction signature exceeds %d characters", h.opts.MaxSignatureLength), h.opts.Production)
		return
	}
	eventType = delivery.Kind().String()

	entry := h.log.WithFields(logrus.Fields{
		"event":     delivery.Type,
		"signature": delivery.Signature,
	})
	ctx := c.Request.Context()

	processed, err := h.guard.IsProcessed(ctx, delivery.Signature)
	if err != nil {
		outcome = metrics.OutcomeFailed
		entry.WithError(err).Error("Dedup lookup failed")
		respondError(c, err, h.opts.Production)
		return
	}
	if processed {
		outcome = metrics.OutcomeDuplicate
		entry.Debug("Transaction already processed")
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"signature": delivery.Signature,
			"message":   "Already processed",
		})
		return
	}

	entry.Info("Processing webhook")

	opts := h.opts.Retry
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.IncRetry()
		entry.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("Dispatch failed, retrying")
	}
	err = retry.Do(ctx, opts, func(ctx context.Context) error {
		return h.dispatcher.Dispatch(ctx, delivery)
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindValidation || apperrors.KindOf(err) == apperrors.KindNotFound {
			entry.WithError(err).Warn("Webhook rejected")
		} else {
			outcome = metrics.OutcomeFailed
			entry.WithError(err).Error("Webhook processing failed")
		}
		respondError(c, err, h.opts.Production)
		return
	}

	// The effects are committed. A lost marker only costs an idempotent
	// reprocess on redelivery, so the delivery is still acknowledged.
	if err := h.guard.MarkProcessed(ctx, delivery.Signature); err != nil {
		entry.WithError(err).Warn("Failed to record processed transaction")
	}

	outcome = metrics.OutcomeCommitted
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"signature": delivery.Signature,
	})
}
