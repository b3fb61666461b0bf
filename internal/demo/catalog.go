// Package demo fetches startup configuration and the demo catalog from
// the backing server.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sentinela-dev/sentinela/internal/watch"
)

// Dispatcher enqueues events for the session loop.
type Dispatcher interface {
	Dispatch(ev watch.Event) error
}

// Client loads the init config and demo catalog over HTTP.
type Client struct {
	baseURL  string
	client   *http.Client
	dispatch Dispatcher
}

// NewClient creates a catalog client against the server base URL.
func NewClient(baseURL string, d Dispatcher) *Client {
	return &Client{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		dispatch: d,
	}
}

// LoadInit fetches server-provided startup values. Missing init data is
// tolerated, the session keeps its defaults.
func (c *Client) LoadInit(ctx context.Context) error {
	var body struct {
		ToEmailAddress string `json:"to_email_address"`
	}
	if err := c.get(ctx, c.baseURL+"/init", &body); err != nil {
		return fmt.Errorf("load init: %w", err)
	}
	return c.dispatch.Dispatch(watch.InitLoad{ToEmailAddress: body.ToEmailAddress})
}

// LoadDemos fetches the demo catalog and installs it in the session.
func (c *Client) LoadDemos(ctx context.Context) error {
	var demos []watch.Demo
	if err := c.get(ctx, c.baseURL+"/static/demos/demos.json", &demos); err != nil {
		return fmt.Errorf("load demos: %w", err)
	}
	return c.dispatch.Dispatch(watch.DemosLoad{Demos: demos})
}

// Bootstrap runs both loads, logging rather than failing on errors so a
// partial backend still yields a usable session.
func (c *Client) Bootstrap(ctx context.Context) {
	if err := c.LoadInit(ctx); err != nil {
		log.Printf("demo: %v", err)
	}
	if err := c.LoadDemos(ctx); err != nil {
		log.Printf("demo: %v", err)
	}
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
