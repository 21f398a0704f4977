// Package trade submits market orders and relays chat-assistant side
// effects back into the portfolio refresh cycle.
package trade

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"tradedesk/internal/domain"
)

// Submitter is the slice of the trading API the controller needs.
type Submitter interface {
	SubmitTrade(ctx context.Context, req domain.TradeRequest) (domain.Trade, error)
}

// Controller validates and submits trades. One submission is in flight at a
// time; a second Submit while one is pending is rejected without touching
// the network.
type Controller struct {
	backend Submitter
	refresh func()
	log     *slog.Logger

	mu       sync.Mutex
	inFlight bool
	status   string
	errMsg   string
}

// NewController creates a trade controller. refresh is invoked after every
// successful submission so the portfolio snapshot can be re-fetched.
func NewController(backend Submitter, refresh func(), log *slog.Logger) *Controller {
	return &Controller{backend: backend, refresh: refresh, log: log}
}

// ParseRequest validates raw user input and builds the outbound request.
// The symbol is trimmed and uppercased; the quantity must parse as a
// positive integer. ok is false when the input fails validation, in which
// case no request should be issued.
func ParseRequest(rawSymbol, rawQuantity string, side domain.Side) (req domain.TradeRequest, ok bool) {
	symbol := strings.ToUpper(strings.TrimSpace(rawSymbol))
	if symbol == "" {
		return domain.TradeRequest{}, false
	}
	qty, err := strconv.Atoi(strings.TrimSpace(rawQuantity))
	if err != nil || qty <= 0 {
		return domain.TradeRequest{}, false
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return domain.TradeRequest{}, false
	}
	return domain.TradeRequest{Symbol: symbol, Quantity: qty, Side: side}, true
}

// Submit validates the input and, if valid, submits the order. Invalid
// input is a silent no-op: no request, no state change. Returns the
// executed trade and whether a request was issued and succeeded.
//
// On success the transient status message is set and the refresh callback
// runs. On failure the server's error text is kept verbatim for display and
// no refresh happens.
func (c *Controller) Submit(ctx context.Context, rawSymbol, rawQuantity string, side domain.Side) (domain.Trade, bool) {
	req, ok := ParseRequest(rawSymbol, rawQuantity, side)
	if !ok {
		return domain.Trade{}, false
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return domain.Trade{}, false
	}
	c.inFlight = true
	c.mu.Unlock()

	executed, err := c.backend.SubmitTrade(ctx, req)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.status = ""
		c.errMsg = err.Error()
		c.mu.Unlock()
		c.log.Warn("trade rejected", "symbol", req.Symbol, "side", req.Side, "error", err)
		return domain.Trade{}, false
	}
	c.status = fmt.Sprintf("%s %d %s @ %.2f", strings.ToUpper(string(executed.Side)), req.Quantity, executed.Symbol, executed.Price)
	c.errMsg = ""
	c.mu.Unlock()

	c.log.Info("trade executed", "symbol", executed.Symbol, "side", executed.Side, "quantity", req.Quantity, "price", executed.Price)
	c.refresh()
	return executed, true
}

// Pending reports whether a submission is in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Status returns the transient success message from the last submission, or
// "" if the last submission failed or none has happened.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the server's error text from the last failed submission,
// verbatim, or "" after a success.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}
