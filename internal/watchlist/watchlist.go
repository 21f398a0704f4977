// Package watchlist manages watchlist membership with optimistic local
// mutations: entries appear or disappear immediately, and a rejected server
// call rolls the local change back.
package watchlist

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"tradedesk/internal/domain"
)

// Backend is the slice of the trading API the controller needs.
type Backend interface {
	GetWatchlist(ctx context.Context) ([]domain.WatchlistItem, error)
	AddTicker(ctx context.Context, symbol string) (domain.WatchlistItem, error)
	RemoveTicker(ctx context.Context, symbol string) error
}

// Controller owns the watchlist symbol set. Symbols are unique and kept in
// insertion order; a symbol restored by a failed remove is appended, not
// reinserted at its original index.
type Controller struct {
	backend Backend
	log     *slog.Logger

	mu      sync.RWMutex
	order   []string
	present map[string]bool
}

func NewController(backend Backend, log *slog.Logger) *Controller {
	return &Controller{
		backend: backend,
		log:     log,
		present: make(map[string]bool),
	}
}

// Normalize canonicalizes user symbol input: whitespace trimmed, uppercased.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Load replaces the local set with the server's watchlist. A fetch failure
// leaves the current set in place and reports an empty result to nobody;
// the view degrades to whatever was already shown.
func (c *Controller) Load(ctx context.Context) error {
	items, err := c.backend.GetWatchlist(ctx)
	if err != nil {
		c.log.Warn("watchlist load failed", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = c.order[:0]
	c.present = make(map[string]bool, len(items))
	for _, it := range items {
		sym := Normalize(it.Symbol)
		if sym == "" || c.present[sym] {
			continue
		}
		c.order = append(c.order, sym)
		c.present[sym] = true
	}
	return nil
}

// Symbols returns the watchlist in display order. The returned slice is a
// copy.
func (c *Controller) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Contains reports whether the normalized symbol is on the watchlist.
func (c *Controller) Contains(raw string) bool {
	sym := Normalize(raw)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.present[sym]
}

// Add inserts a symbol optimistically, then confirms it with the backend.
// Empty and duplicate symbols are rejected locally with no request. If the
// backend rejects the add, the symbol is removed again; the entry simply
// disappears, with no user-facing error.
//
// Reports whether the symbol is on the watchlist when the call returns.
func (c *Controller) Add(ctx context.Context, raw string) bool {
	sym := Normalize(raw)
	if sym == "" {
		return false
	}

	c.mu.Lock()
	if c.present[sym] {
		c.mu.Unlock()
		return false
	}
	c.order = append(c.order, sym)
	c.present[sym] = true
	c.mu.Unlock()

	if _, err := c.backend.AddTicker(ctx, sym); err != nil {
		c.log.Warn("watchlist add rejected, rolling back", "symbol", sym, "error", err)
		c.drop(sym)
		return false
	}
	return true
}

// Remove drops a symbol optimistically, then confirms with the backend. If
// the delete fails the symbol is appended back to the list.
//
// Reports whether the symbol is off the watchlist when the call returns.
func (c *Controller) Remove(ctx context.Context, raw string) bool {
	sym := Normalize(raw)

	c.mu.Lock()
	if !c.present[sym] {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()
	c.drop(sym)

	if err := c.backend.RemoveTicker(ctx, sym); err != nil {
		c.log.Warn("watchlist remove rejected, restoring", "symbol", sym, "error", err)
		c.mu.Lock()
		if !c.present[sym] {
			c.order = append(c.order, sym)
			c.present[sym] = true
		}
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *Controller) drop(sym string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.present[sym] {
		return
	}
	delete(c.present, sym)
	for i, s := range c.order {
		if s == sym {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
