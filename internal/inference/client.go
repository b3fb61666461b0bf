// Package inference streams captured frames to the remote inference
// service over a persistent websocket and turns its responses into
// detection-update events. Reconnection is this transport's job: the
// session core only ever sees well-formed updates or silence.
package inference

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"

	"github.com/sentinela-dev/sentinela/internal/watch"
	"github.com/sentinela-dev/sentinela/pkg/observability"
)

// Reconnect policy.
const (
	DefaultReconnectInterval = 3 * time.Second
	DefaultMaxAttempts       = 10
	outboxSize               = 8
)

// frameRequest is the wire shape of one analyzed frame.
type frameRequest struct {
	Prompt   string `msgpack:"prompt"`
	Frame    []byte `msgpack:"frame"`
	Language string `msgpack:"language"`
}

// Result is the wire shape of one inference response.
type Result struct {
	Confidence float64 `msgpack:"confidence"`
	Reason     string  `msgpack:"reason"`
}

// Dispatcher enqueues events for the session loop.
type Dispatcher interface {
	Dispatch(ev watch.Event) error
}

// Client is the frame transport. It doubles as an engine reactor:
// fresh frames observed in the session state are encoded and queued
// for the writer, throttled to the configured capture rate.
type Client struct {
	url      string
	dispatch Dispatcher
	dialer   *websocket.Dialer
	limiter  *rate.Limiter

	reconnectInterval time.Duration
	maxAttempts       int

	mu   sync.Mutex
	conn *websocket.Conn

	outbox chan []byte
}

// NewClient creates a transport for the given websocket URL. fps seeds
// the frame rate limit and tracks later fps-change events.
func NewClient(url string, d Dispatcher, fps int) *Client {
	if fps <= 0 {
		fps = 3
	}
	return &Client{
		url:               url,
		dispatch:          d,
		dialer:            websocket.DefaultDialer,
		limiter:           rate.NewLimiter(rate.Limit(fps), 1),
		reconnectInterval: DefaultReconnectInterval,
		maxAttempts:       DefaultMaxAttempts,
		outbox:            make(chan []byte, outboxSize),
	}
}

func (c *Client) Name() string { return "inference-client" }

// React queues a freshly captured frame while a session is active.
// Frames above the rate limit or beyond the outbox capacity are
// dropped; the next frame supersedes them anyway.
func (c *Client) React(_ context.Context, prev, next watch.State) {
	if next.FPS != prev.FPS && next.FPS > 0 {
		c.limiter.SetLimit(rate.Limit(next.FPS))
	}

	if next.FrameSeq == prev.FrameSeq || !next.Watching() || len(next.LastFrame) == 0 {
		return
	}
	if !c.limiter.Allow() {
		observability.RecordFrameDropped()
		return
	}

	payload, err := msgpack.Marshal(frameRequest{
		Prompt:   next.Prompt,
		Frame:    next.LastFrame,
		Language: next.CurrentLanguage,
	})
	if err != nil {
		log.Printf("inference: encode frame: %v", err)
		return
	}

	select {
	case c.outbox <- payload:
		observability.RecordFrameSent()
	default:
		observability.RecordFrameDropped()
	}
}

// Run maintains the connection until the context ends, reconnecting
// with linear backoff up to the attempt limit. Exhausting the limit
// stalls frame analysis but is never fatal to the session: the
// transport logs the give-up and idles until shutdown.
func (c *Client) Run(ctx context.Context) error {
	go c.writeLoop(ctx)

	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			attempts++
			if c.maxAttempts > 0 && attempts >= c.maxAttempts {
				log.Printf("inference: giving up on %s after %d attempts: %v", c.url, attempts, err)
				<-ctx.Done()
				return nil
			}
			log.Printf("inference: dial %s: %v (attempt %d)", c.url, err, attempts)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.reconnectInterval):
			}
			continue
		}

		attempts = 0
		c.setConn(conn)
		c.readLoop(ctx, conn)
		c.setConn(nil)
		_ = conn.Close()
	}
}

// readLoop decodes responses until the connection breaks. A malformed
// payload discards that single frame's result; the session keeps
// watching.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("inference: read: %v", err)
			}
			return
		}

		var res Result
		if err := msgpack.Unmarshal(data, &res); err != nil {
			log.Printf("inference: decode response: %v", err)
			continue
		}
		if math.IsNaN(res.Confidence) || res.Confidence < 0 || res.Confidence > 100 {
			observability.RecordDetectionUpdate("invalid")
			log.Printf("inference: discarding out-of-range confidence %v", res.Confidence)
			continue
		}
		observability.RecordDetectionUpdate("ok")

		if err := c.dispatch.Dispatch(watch.DetectionUpdate{
			Confidence: res.Confidence,
			Reason:     res.Reason,
		}); err != nil {
			log.Printf("inference: dispatch: %v", err)
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-c.outbox:
			conn := c.getConn()
			if conn == nil {
				// Not connected; the frame is stale by the time we are.
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				log.Printf("inference: write frame: %v", err)
			}
		}
	}
}

// Connected reports whether a live connection is currently held.
// Health checks read it.
func (c *Client) Connected() bool {
	return c.getConn() != nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) getConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
