package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const probeTimeout = 3 * time.Second

// Pinger checks a dependency's reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// SlotReader is the ledger RPC probe
type SlotReader interface {
	GetSlot(ctx context.Context) (uint64, error)
}

type check struct {
	Status  string `json:"status"`
	Latency int64  `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthHandler reports database, RPC, cache and webhook configuration
// health. Only a database failure makes the service unhealthy.
type HealthHandler struct {
	database         Pinger
	rpc              SlotReader
	cache            Pinger
	secretConfigured bool
	started          time.Time
}

// NewHealthHandler builds the health routes. rpc and cache may be nil.
func NewHealthHandler(database Pinger, rpc SlotReader, cache Pinger, secretConfigured bool) *HealthHandler {
	return &HealthHandler{
		database:         database,
		rpc:              rpc,
		cache:            cache,
		secretConfigured: secretConfigured,
		started:          time.Now(),
	}
}

func probe(ctx context.Context, fn func(ctx context.Context) error) check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		return check{Status: StatusUnhealthy, Error: err.Error()}
	}
	return check{Status: StatusHealthy, Latency: time.Since(start).Milliseconds()}
}

// Health runs every check. Degraded still answers 200.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	status := StatusHealthy
	checks := gin.H{}

	db := probe(ctx, h.database.Ping)
	checks["database"] = db
	if db.Status != StatusHealthy {
		status = StatusUnhealthy
	}

	degrade := func() {
		if status == StatusHealthy {
			status = StatusDegraded
		}
	}

	if h.rpc != nil {
		rpc := probe(ctx, func(ctx context.Context) error {
			_, err := h.rpc.GetSlot(ctx)
			return err
		})
		checks["rpc"] = rpc
		if rpc.Status != StatusHealthy {
			degrade()
		}
	}

	if h.cache != nil {
		cache := probe(ctx, h.cache.Ping)
		checks["cache"] = cache
		if cache.Status != StatusHealthy {
			degrade()
		}
	}

	if h.secretConfigured {
		checks["webhooks"] = check{Status: "configured"}
	} else {
		checks["webhooks"] = check{Status: "not_configured", Error: "HELIUS_WEBHOOK_SECRET not set"}
		degrade()
	}

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
		"checks":    checks,
	})
}

// Ready reports whether the database answers
func (h *HealthHandler) Ready(c *gin.Context) {
	db := probe(c.Request.Context(), h.database.Ping)
	if db.Status != StatusHealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": db.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// Live always answers while the process serves requests
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alive": true, "uptime": time.Since(h.started).Seconds()})
}
