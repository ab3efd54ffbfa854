package webhook

import (
	"net/http"
	"strings"
	"testing"
)

const testSecret = "whsec_test"

func TestVerify(t *testing.T) {
	body := []byte(`{"type":"JOIN_ARENA","signature":"5xJuvQ3n"}`)
	good := Sign(body, testSecret)

	tests := []struct {
		name   string
		body   []byte
		sig    string
		secret string
		want   bool
	}{
		{"valid", body, good, testSecret, true},
		{"uppercase hex", body, strings.ToUpper(good), testSecret, true},
		{"wrong signature", body, Sign(body, "other"), testSecret, false},
		{"empty secret", body, Sign(body, ""), "", false},
		{"empty signature", body, "", testSecret, false},
		{"length mismatch", body, good[:10], testSecret, false},
		{"tampered body", []byte(`{"type":"JOIN_ARENA","signature":"5xJuvQ3o"}`), good, testSecret, false},
		{"trailing byte", append(append([]byte{}, body...), ' '), good, testSecret, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.body, tt.sig, tt.secret); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractSignature(t *testing.T) {
	t.Run("canonical", func(t *testing.T) {
		h := http.Header{}
		h.Set("x-helius-signature", "abc")
		got, ok := ExtractSignature(h, "X-Helius-Signature")
		if !ok || got != "abc" {
			t.Fatalf("got %q, %v", got, ok)
		}
	})

	t.Run("raw lowercase key", func(t *testing.T) {
		h := http.Header{"x-helius-signature": {"def"}}
		got, ok := ExtractSignature(h, "X-HELIUS-SIGNATURE")
		if !ok || got != "def" {
			t.Fatalf("got %q, %v", got, ok)
		}
	})

	t.Run("multi-valued uses first", func(t *testing.T) {
		h := http.Header{}
		h.Add("X-Helius-Signature", "first")
		h.Add("X-Helius-Signature", "second")
		got, _ := ExtractSignature(h, "")
		if got != "first" {
			t.Fatalf("got %q, want first", got)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, ok := ExtractSignature(http.Header{}, ""); ok {
			t.Fatal("expected no signature")
		}
	})
}
