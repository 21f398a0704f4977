// Package feed maintains the live price-stream connection. It owns exactly
// one WebSocket connection, reflects its lifecycle through an explicit
// connection-state machine, and fans inbound quote batches out to the
// market-data stores.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradedesk/internal/domain"
)

// State is the connection status exposed to renderers.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Handlers receive connector events. All handlers are invoked from the
// connector's own goroutine, one event at a time, so they may touch
// single-writer state without further locking. Nil handlers are skipped.
type Handlers struct {
	// Batch delivers one normalized quote batch per inbound event.
	Batch func([]domain.Quote)
	// Status delivers one call per connection-state transition.
	Status func(State)
	// IngestError reports a malformed payload. The stream stays up.
	IngestError func(error)
}

// Connector owns the live streaming connection and its reconnection loop.
type Connector struct {
	url      string
	dialer   *websocket.Dialer
	handlers Handlers
	log      *slog.Logger

	mu    sync.Mutex
	state State
}

// NewConnector creates a connector for the given WebSocket URL. Run must be
// called to establish the connection.
func NewConnector(url string, handlers Handlers, log *slog.Logger) *Connector {
	return &Connector{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		handlers: handlers,
		log:      log,
		state:    StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects and processes inbound events until ctx is cancelled,
// redialing with capped exponential backoff after any transport error. A
// transport error while connected transitions straight to reconnecting; no
// intermediate disconnected state is observable. After ctx cancellation no
// further transitions are emitted.
func (c *Connector) Run(ctx context.Context) {
	backoff := initialBackoff

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.setState(StateReconnecting)
			c.log.Warn("feed dial failed", "url", c.url, "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = initialBackoff
		c.setState(StateConnected)
		c.log.Info("feed connected", "url", c.url)

		c.readLoop(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.setState(StateReconnecting)
		c.log.Warn("feed connection lost, reconnecting")
	}
}

// readLoop consumes messages until the connection drops or ctx is
// cancelled. A goroutine closes the connection on cancellation to unblock
// the pending read.
func (c *Connector) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		quotes, err := normalize(data)
		if err != nil {
			// A bad event must not stop later valid events.
			if c.handlers.IngestError != nil {
				c.handlers.IngestError(err)
			}
			c.log.Warn("dropping malformed feed event", "error", err)
			continue
		}
		if len(quotes) > 0 && c.handlers.Batch != nil {
			c.handlers.Batch(quotes)
		}
	}
}

// setState records a transition and notifies the status handler, once per
// distinct transition.
func (c *Connector) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	if c.handlers.Status != nil {
		c.handlers.Status(s)
	}
}

// normalize decodes a feed payload, which may be a single quote object or
// an array of them, into a slice.
func normalize(data []byte) ([]domain.Quote, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var quotes []domain.Quote
		if err := json.Unmarshal(trimmed, &quotes); err != nil {
			return nil, fmt.Errorf("decoding quote batch: %w", err)
		}
		return quotes, nil
	}

	var q domain.Quote
	if err := json.Unmarshal(trimmed, &q); err != nil {
		return nil, fmt.Errorf("decoding quote: %w", err)
	}
	return []domain.Quote{q}, nil
}
