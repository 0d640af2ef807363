package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ucsindex/engine/internal/domain"
)

// Origin identifies this service to the automation receiving the trigger.
const Origin = "painel_auditoria"

// DefaultTimeout bounds a trigger when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Payload is the JSON body sent to the recalculation webhook.
type Payload struct {
	TargetDate  string                 `json:"data_referencia"`
	ManualEdits map[string]json.Number `json:"ajustes_manuais"`
	SaveHistory bool                   `json:"salvar_historico"`
	Origin      string                 `json:"origem"`
}

// NewPayload builds the trigger body for a recalculation of targetDate.
func NewPayload(targetDate time.Time, edits map[string]decimal.Decimal) Payload {
	manual := make(map[string]json.Number, len(edits))
	for id, v := range edits {
		manual[id] = json.Number(v.String())
	}
	return Payload{
		TargetDate:  domain.FormatISODate(targetDate),
		ManualEdits: manual,
		SaveHistory: true,
		Origin:      Origin,
	}
}

// Client triggers the external recalculation pipeline.
type Client struct {
	url        string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
}

// NewClient creates a webhook client. Each Trigger call, retries included, is bounded by timeout.
func NewClient(url string, timeout time.Duration, delay time.Duration, maxRetries int) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		delay:      delay,
		maxRetries: maxRetries,
	}
}

// Trigger posts the edited values for targetDate. Any network failure or non-2xx
// response is returned as *domain.ExternalSyncError.
func (c *Client) Trigger(ctx context.Context, targetDate time.Time, edits map[string]decimal.Decimal) error {
	body, err := json.Marshal(NewPayload(targetDate, edits))
	if err != nil {
		return &domain.ExternalSyncError{Err: fmt.Errorf("encoding payload: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.httpClient.Timeout)
	defer cancel()

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			delay := c.delay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return &domain.ExternalSyncError{Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		status, err := c.post(ctx, body)
		if err != nil {
			return &domain.ExternalSyncError{Err: err}
		}
		if status >= 200 && status < 300 {
			return nil
		}

		lastErr = &domain.ExternalSyncError{
			StatusCode: status,
			Err:        fmt.Errorf("webhook responded %s", http.StatusText(status)),
		}
		if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
