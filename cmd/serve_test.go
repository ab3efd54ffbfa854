package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arena-indexer/internal/auth"
	"arena-indexer/internal/blockchain"
	"arena-indexer/internal/config"
	"arena-indexer/internal/dedup"
	"arena-indexer/internal/handlers"
	"arena-indexer/internal/ratelimit"
	"arena-indexer/internal/repository"
	"arena-indexer/internal/services"
	"arena-indexer/internal/testutil"
	"arena-indexer/internal/webhook"

	"github.com/gin-gonic/gin"
)

const testSecret = "whsec_router"

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: "0", GinMode: gin.TestMode, AllowedOrigins: []string{"http://localhost:3000"}},
		Webhook: config.WebhookConfig{Secret: testSecret, SignatureHeader: webhook.DefaultSignatureHeader},
		RateLimit: config.RateLimitConfig{
			WebhookMax: 10, WebhookWindow: time.Minute,
			APIMax: 10, APIWindow: time.Minute,
		},
		Retry: config.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 2},
		Dedup: config.DedupConfig{TTL: time.Hour, SweepThreshold: 100},
		App:   config.AppConfig{Env: "test"},
	}
}

func testRouter(t *testing.T, jwtSecret string) (*gin.Engine, *repository.Repository) {
	t.Helper()
	auth.InitJWT(jwtSecret)
	t.Cleanup(func() { auth.InitJWT("") })

	cfg := testConfig()
	db := testutil.NewDB(t)
	log := testutil.Logger()
	repo := repository.NewRepository(db)

	dispatcher := services.NewDispatcher(
		services.NewArenaService(db, nil, log, 0),
		services.NewShareService(db, nil, log),
		services.NewAMMService(db, nil, log),
		services.NewOrderService(db, nil, log),
		log,
	)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}

	router := newRouter(cfg, log, routerDeps{
		dispatcher: dispatcher,
		guard:      dedup.NewGuard(dedup.NewMemoryCache(cfg.Dedup.SweepThreshold), repo, cfg.Dedup.TTL, log),
		repo:       repo,
		solana:     blockchain.NewSolanaClient("http://127.0.0.1:1"),
		database:   handlers.PingFunc(sqlDB.PingContext),
		limits:     ratelimit.NewMemoryStore(),
	})
	return router, repo
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterServesWebhookAndProbes(t *testing.T) {
	router, repo := testRouter(t, "")

	body, _ := json.Marshal(map[string]any{
		"type":      "CREATE_ARENA",
		"signature": "5xJuvQ3n",
		"transaction": map[string]any{
			"arenaAccount": "Arena1",
			"title":        "Who wins?",
			"question":     "Who wins the final?",
			"outcomes":     []string{"Red", "Blue"},
			"creator":      "Creator1",
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/webhook/transaction", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.DefaultSignatureHeader, webhook.Sign(body, testSecret))
	if w := serve(router, req); w.Code != http.StatusOK {
		t.Fatalf("expected 200 from webhook, got %d: %s", w.Code, w.Body.String())
	}
	if _, err := repo.GetMarketByAccount(req.Context(), "Arena1"); err != nil {
		t.Fatalf("expected arena to be indexed: %v", err)
	}

	if w := serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil)); w.Code != http.StatusOK {
		t.Fatalf("expected live probe 200, got %d", w.Code)
	}
	if w := serve(router, httptest.NewRequest(http.MethodGet, "/health/ready", nil)); w.Code != http.StatusOK {
		t.Fatalf("expected ready probe 200, got %d", w.Code)
	}

	w := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("indexer_webhook_deliveries_total")) {
		t.Fatalf("expected delivery metrics to be exposed, got %d", w.Code)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := testRouter(t, "")

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if resp.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %q", resp.Error.Code)
	}
}

func TestAdminRoutesRequireJWTSecret(t *testing.T) {
	path := "/api/admin/processed/5xJuvQ3n"

	router, _ := testRouter(t, "")
	if w := serve(router, httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusNotFound {
		t.Fatalf("expected admin routes to be absent without a secret, got %d", w.Code)
	}

	router, _ = testRouter(t, "jwt-secret")
	if w := serve(router, httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}

	token, err := auth.GenerateToken("ops", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if w := serve(router, req); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid token, got %d: %s", w.Code, w.Body.String())
	}
}
