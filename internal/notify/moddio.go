package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ModdioSink posts alerts to the game presentation service.
type ModdioSink struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

func NewModdioSink(baseURL, secretKey string, timeout time.Duration) *ModdioSink {
	return &ModdioSink{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		secretKey:  secretKey,
	}
}

func (s *ModdioSink) Name() string { return "moddio" }

func (s *ModdioSink) Accepts(t string) bool {
	return t == TypeBigBet || t == TypeWinnerAnnounced
}

func (s *ModdioSink) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("moddio returned status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
