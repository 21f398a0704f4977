// Package market holds the client's live market-data state: the
// latest-quote table and the bounded per-symbol price history. Both are
// written by a single producer (the feed connector's batch handler) and
// read by many consumers.
package market

import (
	"sync"

	"tradedesk/internal/domain"
)

// QuoteTable maps symbol → latest quote, last-write-wins per symbol. Memory
// is bounded by the number of distinct symbols ever observed.
type QuoteTable struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewQuoteTable creates an empty quote table.
func NewQuoteTable() *QuoteTable {
	return &QuoteTable{quotes: make(map[string]domain.Quote)}
}

// ApplyBatch upserts all quotes of one inbound event under a single lock,
// so a reader never observes a partially-applied batch.
func (t *QuoteTable) ApplyBatch(quotes []domain.Quote) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, q := range quotes {
		t.quotes[q.Symbol] = q
	}
}

// Get returns the latest quote for a symbol, or false if never seen.
func (t *QuoteTable) Get(symbol string) (domain.Quote, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q, ok := t.quotes[symbol]
	return q, ok
}

// Snapshot returns a copy of the current table for renderers.
func (t *QuoteTable) Snapshot() map[string]domain.Quote {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]domain.Quote, len(t.quotes))
	for sym, q := range t.quotes {
		out[sym] = q
	}
	return out
}

// Len returns the number of distinct symbols observed.
func (t *QuoteTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.quotes)
}
