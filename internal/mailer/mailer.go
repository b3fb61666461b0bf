// Package mailer delivers notification emails through the send-email
// HTTP endpoint.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sentinela-dev/sentinela/internal/notify"
)

// HTTP posts emails as JSON to the configured endpoint. Any 2xx status
// counts as delivered.
type HTTP struct {
	endpoint string
	client   *http.Client
}

// New creates a mailer for the given endpoint URL.
func New(endpoint string) *HTTP {
	return &HTTP{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Send delivers one email.
func (h *HTTP) Send(ctx context.Context, msg notify.Email) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send email: status %d", resp.StatusCode)
	}
	return nil
}
