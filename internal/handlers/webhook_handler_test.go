package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"arena-indexer/internal/apperrors"
	"arena-indexer/internal/dedup"
	"arena-indexer/internal/events"
	"arena-indexer/internal/models"
	"arena-indexer/internal/ratelimit"
	"arena-indexer/internal/repository"
	"arena-indexer/internal/retry"
	"arena-indexer/internal/services"
	"arena-indexer/internal/testutil"
	"arena-indexer/internal/webhook"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

func init() {
	gin.SetMode(gin.TestMode)
}

var fastRetry = retry.Options{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 2}

type ingress struct {
	t      *testing.T
	db     *gorm.DB
	repo   *repository.Repository
	router *gin.Engine
}

func newIngress(t *testing.T, secret string, dispatcher Dispatcher, limit int) *ingress {
	t.Helper()
	return newIngressWith(t, WebhookOptions{Secret: secret, Retry: fastRetry}, dispatcher, limit)
}

func newIngressWith(t *testing.T, opts WebhookOptions, dispatcher Dispatcher, limit int) *ingress {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.Logger()
	repo := repository.NewRepository(db)

	if dispatcher == nil {
		arena := services.NewArenaService(db, nil, log, 0)
		dispatcher = services.NewDispatcher(
			arena,
			services.NewShareService(db, nil, log),
			services.NewAMMService(db, nil, log),
			services.NewOrderService(db, nil, log),
			log,
		)
	}
	guard := dedup.NewGuard(dedup.NewMemoryCache(0), repo, time.Hour, log)
	h := NewWebhookHandler(dispatcher, guard, opts, log)

	r := gin.New()
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), limit, time.Minute)
	r.POST("/webhook/transaction", ratelimit.Middleware(limiter, "webhook", nil, log, nil), h.HandleTransaction)
	return &ingress{t: t, db: db, repo: repo, router: r}
}

func delivery(t *testing.T, kind, signature string, tx map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"type": kind, "signature": signature, "transaction": tx})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func (in *ingress) post(body []byte, signature string) *httptest.ResponseRecorder {
	in.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/transaction", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(webhook.DefaultSignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	in.router.ServeHTTP(w, req)
	return w
}

func (in *ingress) postSigned(body []byte) *httptest.ResponseRecorder {
	return in.post(body, webhook.Sign(body, testSecret))
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Stack   string `json:"stack"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body
}

func createArena() map[string]any {
	return map[string]any{
		"arenaAccount": "ArenaOne",
		"title":        "Derby",
		"question":     "Who wins?",
		"outcomes":     []string{"Home", "Away"},
		"creator":      "CreatorWallet",
	}
}

func TestWebhookCommitsAndDeduplicates(t *testing.T) {
	in := newIngress(t, testSecret, nil, 100)
	body := delivery(t, "CREATE_ARENA", "5xJuvQ3n", createArena())

	w := in.postSigned(body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var ok struct {
		Success   bool   `json:"success"`
		Signature string `json:"signature"`
		Message   string `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ok)
	if !ok.Success || ok.Signature != "5xJuvQ3n" || ok.Message != "" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if exists, _ := in.repo.ProcessedExists(context.Background(), "5xJuvQ3n"); !exists {
		t.Fatal("expected the transaction to be marked processed")
	}

	w = in.postSigned(body)
	_ = json.Unmarshal(w.Body.Bytes(), &ok)
	if w.Code != http.StatusOK || ok.Message != "Already processed" {
		t.Fatalf("duplicate: status=%d body=%s", w.Code, w.Body.String())
	}

	var n int64
	in.db.Model(&models.Market{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected 1 market, got %d", n)
	}
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	in := newIngress(t, testSecret, nil, 100)
	body := delivery(t, "CREATE_ARENA", "5xJuvQ3n", createArena())

	tests := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"wrong secret", webhook.Sign(body, "other")},
		{"tampered", webhook.Sign(append([]byte(" "), body...), testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := in.post(body, tt.signature)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if decodeError(t, w).Error.Code != apperrors.CodeUnauthorized {
				t.Errorf("unexpected body %s", w.Body.String())
			}
		})
	}

	if exists, _ := in.repo.ProcessedExists(context.Background(), "5xJuvQ3n"); exists {
		t.Fatal("rejected delivery must not be marked processed")
	}
}

func TestWebhookUnsignedModeSkipsVerification(t *testing.T) {
	in := newIngress(t, "", nil, 100)
	body := delivery(t, "CREATE_ARENA", "5xJuvQ3n", createArena())

	if w := in.post(body, ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestWebhookValidation(t *testing.T) {
	in := newIngress(t, testSecret, nil, 100)

	tests := []struct {
		name string
		body []byte
	}{
		{"invalid json", []byte(`{"type":`)},
		{"missing signature", []byte(`{"type":"CREATE_ARENA"}`)},
		{"over-long signature", delivery(t, "CREATE_ARENA", strings.Repeat("s", DefaultMaxSignatureLength+1), createArena())},
		{"missing payload fields", delivery(t, "JOIN_ARENA", "5xJuvQ3n", map[string]any{"arenaAccount": "ArenaOne"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := in.postSigned(tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			body := decodeError(t, w)
			if body.Error.Code != apperrors.CodeValidation {
				t.Errorf("code = %s", body.Error.Code)
			}
			if body.Error.Stack == "" {
				t.Error("expected a stack outside production")
			}
		})
	}
}

func TestWebhookAcceptsFreeFormSignatures(t *testing.T) {
	in := newIngress(t, testSecret, nil, 100)

	for _, sig := range []string{"sig-0001", "tx_abc", "0OIl"} {
		w := in.postSigned(delivery(t, "SOME_NEW_EVENT", sig, map[string]any{"arenaAccount": "ArenaOne"}))
		if w.Code != http.StatusOK {
			t.Fatalf("signature %q: status = %d, body %s", sig, w.Code, w.Body.String())
		}
		if exists, _ := in.repo.ProcessedExists(context.Background(), sig); !exists {
			t.Fatalf("signature %q should be marked processed", sig)
		}
	}

	w := in.postSigned(delivery(t, "CREATE_ARENA", "sig-0002", createArena()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestWebhookOversizedBody(t *testing.T) {
	in := newIngressWith(t, WebhookOptions{Secret: testSecret, Retry: fastRetry, MaxBodyBytes: 64}, nil, 100)
	body := delivery(t, "CREATE_ARENA", "5xJuvQ3n", createArena())

	w := in.postSigned(body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413, body %s", w.Code, w.Body.String())
	}
	if decodeError(t, w).Error.Code != apperrors.CodeTooLarge {
		t.Errorf("unexpected body %s", w.Body.String())
	}
	if exists, _ := in.repo.ProcessedExists(context.Background(), "5xJuvQ3n"); exists {
		t.Fatal("oversized delivery must not be processed")
	}
}

func TestWebhookUnknownArenaIsNotFoundAndNotMarked(t *testing.T) {
	in := newIngress(t, testSecret, nil, 100)
	body := delivery(t, "JOIN_ARENA", "5xJuvQ3n", map[string]any{
		"arenaAccount": "Missing", "wallet": "WalletA", "outcomeChosen": 0, "amount": 100,
	})

	w := in.postSigned(body)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if decodeError(t, w).Error.Code != repository.CodeArenaNotFound {
		t.Errorf("unexpected body %s", w.Body.String())
	}
	if exists, _ := in.repo.ProcessedExists(context.Background(), "5xJuvQ3n"); exists {
		t.Fatal("failed delivery must not be marked processed")
	}
}

func TestWebhookRateLimit(t *testing.T) {
	in := newIngress(t, testSecret, nil, 2)

	for i, sig := range []string{"5xA", "5xB"} {
		body := delivery(t, "CREATE_ARENA", sig, createArena())
		if w := in.postSigned(body); w.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i+1)
		}
	}

	w := in.postSigned(delivery(t, "CREATE_ARENA", "5xC", createArena()))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}

type flakyDispatcher struct {
	calls atomic.Int32
	err   error
}

func (d *flakyDispatcher) Dispatch(context.Context, *events.Delivery) error {
	d.calls.Add(1)
	return d.err
}

func TestWebhookTransientFailureIsRetriedThen500(t *testing.T) {
	d := &flakyDispatcher{err: apperrors.Database(syscall.ECONNRESET, true, "insert arena")}
	in := newIngress(t, testSecret, d, 100)

	w := in.postSigned(delivery(t, "CREATE_ARENA", "5xJuvQ3n", createArena()))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := d.calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if decodeError(t, w).Error.Code != apperrors.CodeDatabase {
		t.Errorf("unexpected body %s", w.Body.String())
	}
	if exists, _ := in.repo.ProcessedExists(context.Background(), "5xJuvQ3n"); exists {
		t.Fatal("failed delivery must not be marked processed")
	}
}

func TestWebhookPermanentFailureIsNotRetried(t *testing.T) {
	d := &flakyDispatcher{err: errors.New("boom")}
	in := newIngress(t, testSecret, d, 100)

	w := in.postSigned(delivery(t, "CREATE_ARENA", "5xJuvQ3n", createArena()))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := d.calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

type failingStore struct{}

func (failingStore) ProcessedExists(context.Context, string) (bool, error) { return false, nil }
func (failingStore) InsertProcessed(context.Context, string, time.Time) error {
	return apperrors.Database(errors.New("disk full"), false, "insert processed")
}
func (failingStore) DeleteProcessed(context.Context, string) (bool, error) { return false, nil }

func TestWebhookAcksWhenMarkerWriteFails(t *testing.T) {
	log := testutil.Logger()
	d := &flakyDispatcher{}
	guard := dedup.NewGuard(dedup.NewMemoryCache(0), failingStore{}, time.Hour, log)
	h := NewWebhookHandler(d, guard, WebhookOptions{Secret: testSecret, Retry: fastRetry}, log)

	r := gin.New()
	r.POST("/webhook/transaction", h.HandleTransaction)
	body := delivery(t, "CREATE_ARENA", "5xJuvQ3n", createArena())
	req := httptest.NewRequest(http.MethodPost, "/webhook/transaction", bytes.NewReader(body))
	req.Header.Set(webhook.DefaultSignatureHeader, webhook.Sign(body, testSecret))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestProductionMasksServerErrors(t *testing.T) {
	r := gin.New()
	r.GET("/db", func(c *gin.Context) {
		respondError(c, apperrors.Database(errors.New("password authentication failed"), false, "select"), true)
	})
	r.GET("/validation", func(c *gin.Context) {
		respondError(c, apperrors.Validation("Missing required fields: signature, type"), true)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/db", nil))
	body := decodeError(t, w)
	if w.Code != http.StatusInternalServerError || body.Error.Message != maskedMessage || body.Error.Stack != "" {
		t.Fatalf("unexpected production 500 %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/validation", nil))
	body = decodeError(t, w)
	if w.Code != http.StatusBadRequest || body.Error.Message != "Missing required fields: signature, type" {
		t.Fatalf("unexpected production 400 %s", w.Body.String())
	}
}
