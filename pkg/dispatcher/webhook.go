package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/docuflow/docuflow/pkg/events"
)

const (
	webhookTimeout  = 30 * time.Second
	webhookAttempts = 3
	webhookDelay    = 2 * time.Second
)

// WebhookClient delivers webhook_requested events over HTTP. Server errors
// are retried with a fixed delay; client errors are not.
type WebhookClient struct {
	logger *slog.Logger
	client *http.Client
}

func NewWebhookClient(logger *slog.Logger) *WebhookClient {
	return &WebhookClient{
		logger: logger,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

func (w *WebhookClient) Deliver(ctx context.Context, webhook *events.WebhookRequested) error {
	payload, err := json.Marshal(map[string]any{
		"instance_id": webhook.InstanceID,
		"workflow_id": webhook.WorkflowID,
		"step_id":     webhook.StepID,
		"params":      webhook.Params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= webhookAttempts; attempt++ {
		if attempt > 1 {
			w.logger.InfoContext(ctx, "Retrying webhook delivery",
				"url", webhook.URL, "attempt", attempt)

			select {
			case <-time.After(webhookDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create webhook request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("webhook request failed: %w", err)

			continue
		}

		_ = resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode)

			continue
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("webhook rejected with status %d", resp.StatusCode)
		}

		return nil
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", webhookAttempts, lastErr)
}
