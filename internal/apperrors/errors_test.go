package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestRetryable(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient network", TransientNetwork(cause, "rpc"), true},
		{"transient database", Database(cause, true, "select"), true},
		{"permanent database", Database(cause, false, "insert"), false},
		{"validation", Validation("missing %s", "wallet"), false},
		{"not found", NotFound("ARENA_NOT_FOUND", "arena %s", "X"), false},
		{"unauthorized", Unauthorized("bad signature"), false},
		{"rate limit", RateLimited("slow down"), false},
		{"plain error", cause, false},
		{"wrapped transient", fmt.Errorf("dispatch: %w", TransientNetwork(cause, "rpc")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:       http.StatusBadRequest,
		KindUnauthorized:     http.StatusUnauthorized,
		KindNotFound:         http.StatusNotFound,
		KindRateLimit:        http.StatusTooManyRequests,
		KindPayloadTooLarge:  http.StatusRequestEntityTooLarge,
		KindDatabase:         http.StatusInternalServerError,
		KindTransientNetwork: http.StatusInternalServerError,
		KindInternal:         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := StatusFor(kind); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestKindAndCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("ARENA_NOT_FOUND", "arena %s not found", "abc"))

	if KindOf(err) != KindNotFound {
		t.Errorf("expected not_found kind, got %s", KindOf(err))
	}
	if CodeOf(err) != "ARENA_NOT_FOUND" {
		t.Errorf("expected ARENA_NOT_FOUND, got %s", CodeOf(err))
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("plain errors should classify as internal")
	}
}

func TestErrorMessageAndStack(t *testing.T) {
	err := Database(errors.New("connection reset"), true, "update arena")
	if err.Error() != "update arena: connection reset" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if err.Code != CodeDatabase {
		t.Errorf("expected default database code, got %s", err.Code)
	}
	if !strings.Contains(err.Stack(), "apperrors") {
		t.Errorf("expected stack to include the constructing package, got %q", err.Stack())
	}
}
