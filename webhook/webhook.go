// Package webhook posts signed run notifications to an external endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/use-agent/pricecheck/models"
)

// Event types.
const (
	EventSucceeded = "automation.succeeded"
	EventCompleted = "automation.completed"
	EventFailed    = "automation.failed"
	EventTimedOut  = "automation.timed_out"
)

// SignatureHeader carries the HMAC of the request body.
const SignatureHeader = "X-Pricecheck-Signature"

const deliveryTimeout = 10 * time.Second

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string                   `json:"type"`
	RunID     string                   `json:"run_id"`
	Timestamp int64                    `json:"timestamp"`
	Data      *models.AutomateResponse `json:"data"`
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, client *http.Client, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pricecheck-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

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

// Notifier delivers one event per finished run, asynchronously and without
// retries.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewNotifier creates a Notifier posting to url.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: deliveryTimeout},
		now:    time.Now,
	}
}

// Notify queues delivery of the run's outcome. err is the run's error, if any.
func (n *Notifier) Notify(resp *models.AutomateResponse, err error) {
	event := &Event{
		Type:      eventType(resp, err),
		RunID:     resp.RunID,
		Timestamp: n.now().Unix(),
		Data:      resp,
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		if err := Deliver(ctx, n.client, n.url, n.secret, event); err != nil {
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"run_id", event.RunID,
				"error", err,
			)
			return
		}
		slog.Info("webhook delivered",
			"url", n.url,
			"event", event.Type,
			"run_id", event.RunID,
		)
	}()
}

// Wait blocks until queued deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func eventType(resp *models.AutomateResponse, err error) string {
	var aerr *models.AutomationError
	switch {
	case errors.As(err, &aerr) && aerr.Code == models.ErrCodeTimeout:
		return EventTimedOut
	case err != nil:
		return EventFailed
	case resp.Status == models.StatusSuccess:
		return EventSucceeded
	default:
		return EventCompleted
	}
}
