// Package server is the development backend for the dashboard client: a
// simulated market feed, SQLite-backed portfolio and watchlist state, and
// the HTTP/WebSocket API the client consumes.
package server

import (
	"math"
	"sort"
	"sync"
	"time"

	"tradedesk/internal/domain"
)

// PriceCache holds the latest simulated price per ticker. The simulator is
// the only writer; the stream broadcaster, the REST handlers, and the chat
// assistant read it.
type PriceCache struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

func NewPriceCache() *PriceCache {
	return &PriceCache{quotes: make(map[string]domain.Quote)}
}

// Update records a new price for a ticker, deriving previous price and
// direction from the prior entry. Prices are rounded to cents on the way
// in, matching what goes over the wire.
func (c *PriceCache) Update(ticker string, price float64, ts time.Time) domain.Quote {
	price = round2(price)

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := price
	if q, ok := c.quotes[ticker]; ok {
		prev = q.Price
	}

	dir := domain.DirectionFlat
	switch {
	case price > prev:
		dir = domain.DirectionUp
	case price < prev:
		dir = domain.DirectionDown
	}

	q := domain.Quote{
		Symbol:        ticker,
		Price:         price,
		PreviousPrice: prev,
		Timestamp:     ts,
		Direction:     dir,
	}
	c.quotes[ticker] = q
	return q
}

// Get returns the latest quote for a ticker.
func (c *PriceCache) Get(ticker string) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[ticker]
	return q, ok
}

// Price returns the latest price for a ticker.
func (c *PriceCache) Price(ticker string) (float64, bool) {
	q, ok := c.Get(ticker)
	return q.Price, ok
}

// All returns every cached quote, ordered by ticker so stream batches are
// deterministic.
func (c *PriceCache) All() []domain.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Quote, 0, len(c.quotes))
	for _, q := range c.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
