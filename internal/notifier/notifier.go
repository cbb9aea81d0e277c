// Package notifier posts short text notifications to a webhook, used to
// announce connectivity transitions.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/julianstephens/filialwatch/internal/constants"
	"github.com/julianstephens/filialwatch/internal/logger"
)

type Notifier struct {
	url        string
	secret     string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

type WebhookPayload struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	DurationMs uint32 `json:"duration_ms"`
}

// permanentError marks a response that retrying will not fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// New returns a notifier for url. secret, when set, is sent in the
// X-Filialwatch-Secret header.
func New(url, secret string) *Notifier {
	return &Notifier{
		url:        url,
		secret:     secret,
		client:     &http.Client{Timeout: constants.RequestTimeout},
		maxRetries: constants.NotifyMaxRetries,
		retryDelay: constants.NotifyRetryDelay,
	}
}

// Enabled reports whether a webhook is configured. A nil notifier is disabled.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// Notify sends text, retrying transient failures.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if !n.Enabled() {
		return nil
	}

	payload := WebhookPayload{
		Text:       text,
		Source:     constants.AppName,
		DurationMs: constants.NotifyDurationMs,
	}

	var err error
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		err = n.send(ctx, payload)
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) || ctx.Err() != nil {
			return err
		}
		logger.Debug("Notification attempt failed", "attempt", attempt, "error", err)
		if attempt < n.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.retryDelay):
			}
		}
	}
	return fmt.Errorf("notification failed after %d attempts: %w", n.maxRetries, err)
}

func (n *Notifier) send(ctx context.Context, payload WebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return permanentError{err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return permanentError{err}
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(constants.NotifySecretHeader, n.secret)
	}

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	err = fmt.Errorf("notification failed with status %d: %s", res.StatusCode, string(body))
	if res.StatusCode < 500 {
		return permanentError{err}
	}
	return err
}
