package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeSlot struct{ err error }

func (f fakeSlot) GetSlot(context.Context) (uint64, error) { return 42, f.err }

func healthy(context.Context) error { return nil }

func TestHealth(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name   string
		db     PingFunc
		rpc    SlotReader
		cache  Pinger
		secret bool
		want   string
		code   int
	}{
		{"all healthy", healthy, fakeSlot{}, PingFunc(healthy), true, StatusHealthy, http.StatusOK},
		{"rpc down", healthy, fakeSlot{err: down}, nil, true, StatusDegraded, http.StatusOK},
		{"cache down", healthy, nil, PingFunc(func(context.Context) error { return down }), true, StatusDegraded, http.StatusOK},
		{"no secret", healthy, nil, nil, false, StatusDegraded, http.StatusOK},
		{"database down", func(context.Context) error { return down }, fakeSlot{}, nil, true, StatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.rpc, tt.cache, tt.secret)
			r := gin.New()
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			var body struct {
				Status string                     `json:"status"`
				Checks map[string]json.RawMessage `json:"checks"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.want {
				t.Errorf("status = %q, want %q", body.Status, tt.want)
			}
			if _, ok := body.Checks["database"]; !ok {
				t.Error("expected a database check")
			}
		})
	}
}

func TestReadyAndLive(t *testing.T) {
	h := NewHealthHandler(PingFunc(func(context.Context) error { return errors.New("down") }), nil, nil, true)
	r := gin.New()
	r.GET("/health/ready", h.Ready)
	r.GET("/health/live", h.Live)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("live status = %d, want 200", w.Code)
	}
}
