// Package domain defines the core data types shared by the dashboard
// client, the API layer, and the simulator backend: quotes, positions,
// portfolio snapshots, trades, watchlist entries, and chat messages.
package domain

import "time"

// Direction classifies a price move relative to the previous price.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// Side is the side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Quote is the latest known price for one symbol as delivered by the
// streaming feed. The wire format uses "ticker" for the symbol field.
type Quote struct {
	Symbol        string    `json:"ticker"`
	Price         float64   `json:"price"`
	PreviousPrice float64   `json:"previous_price"`
	Timestamp     time.Time `json:"timestamp"`
	Direction     Direction `json:"direction"`
}

// HistoryPoint is a single price observation in a symbol's history buffer.
type HistoryPoint struct {
	Price     float64
	Timestamp time.Time
}

// Position is one holding inside a portfolio snapshot. CurrentPrice,
// UnrealizedPnL, and PnLPercent are the server's values at snapshot time;
// the client recomputes them from live quotes on every read.
type Position struct {
	Symbol        string  `json:"ticker"`
	Quantity      float64 `json:"quantity"`
	AvgCost       float64 `json:"avg_cost"`
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	PnLPercent    float64 `json:"pnl_percent"`
}

// PortfolioSnapshot is a full portfolio state fetched wholesale from the
// backend. It is the source of truth for quantity and cost basis and is
// never mutated locally except by a full re-fetch.
type PortfolioSnapshot struct {
	CashBalance float64    `json:"cash_balance"`
	TotalValue  float64    `json:"total_value"`
	Positions   []Position `json:"positions"`
}

// TradeRequest is an outbound market order.
type TradeRequest struct {
	Symbol   string `json:"ticker"`
	Quantity int    `json:"quantity"`
	Side     Side   `json:"side"`
}

// Trade is an executed trade as reported by the backend.
type Trade struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"ticker"`
	Side       Side    `json:"side"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	ExecutedAt string  `json:"executed_at"`
}

// WatchlistItem is one watchlist row. Price fields are populated when the
// backend has a live quote for the symbol.
type WatchlistItem struct {
	Symbol        string   `json:"ticker"`
	Price         *float64 `json:"price,omitempty"`
	PreviousPrice *float64 `json:"previous_price,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
}

// SnapshotPoint is one recorded total-value observation for the P&L chart.
type SnapshotPoint struct {
	TotalValue float64 `json:"total_value"`
	RecordedAt string  `json:"recorded_at"`
}

// ChatTradeAction is a trade the chat assistant reports as already executed.
type ChatTradeAction struct {
	Symbol   string  `json:"ticker"`
	Side     Side    `json:"side"`
	Quantity float64 `json:"quantity"`
}

// ChatWatchlistChange is a watchlist mutation the chat assistant reports as
// already applied. Action is "add" or "remove".
type ChatWatchlistChange struct {
	Symbol string `json:"ticker"`
	Action string `json:"action"`
}

// ChatResponse is the assistant's reply, optionally carrying side effects
// that already happened server-side.
type ChatResponse struct {
	Message          string                `json:"message"`
	Trades           []ChatTradeAction     `json:"trades,omitempty"`
	WatchlistChanges []ChatWatchlistChange `json:"watchlist_changes,omitempty"`
}

// HasSideEffects reports whether the reply carries any executed trades or
// watchlist changes.
func (r ChatResponse) HasSideEffects() bool {
	return len(r.Trades) > 0 || len(r.WatchlistChanges) > 0
}

// ChatMessage is one entry in the conversation transcript kept by the client.
type ChatMessage struct {
	Role             string // "user" or "assistant"
	Content          string
	Trades           []ChatTradeAction
	WatchlistChanges []ChatWatchlistChange
}
