package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event is the payload delivered to a client's webhook endpoint when a
// batch job finishes.
type Event struct {
	Type      string `json:"type"` // "batch.completed"
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// retryDelays spaces out redelivery attempts after the initial try.
var retryDelays = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}

// Deliver posts an event to url once. When secret is non-empty the body
// is signed with HMAC-SHA256 and the hex digest is sent as
// "X-Gather-Signature: sha256=<hex>" so receivers can verify origin.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Gather-Webhook/1.0")
	if secret != "" {
		req.Header.Set("X-Gather-Signature", "sha256="+sign(body, secret))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync delivers an event in the background, retrying on failure
// with increasing delays. Delivery is best-effort; exhausted retries are
// logged and dropped.
func DeliverAsync(url, secret string, event *Event) {
	go func() {
		attempts := len(retryDelays) + 1
		for attempt := 1; attempt <= attempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, url, secret, event)
			cancel()

			if err == nil {
				slog.Info("webhook delivered",
					"url", url, "event", event.Type, "job_id", event.JobID, "attempt", attempt)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url, "event", event.Type, "job_id", event.JobID, "attempt", attempt, "error", err)

			if attempt <= len(retryDelays) {
				time.Sleep(retryDelays[attempt-1])
			}
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url, "event", event.Type, "job_id", event.JobID)
	}()
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
