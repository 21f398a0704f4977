package server

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradedesk/internal/domain"
)

// fixedPrices is a PriceSource/QuoteSource with static prices.
type fixedPrices map[string]float64

func (p fixedPrices) Price(ticker string) (float64, bool) {
	v, ok := p[ticker]
	return v, ok
}

func (p fixedPrices) Get(ticker string) (domain.Quote, bool) {
	v, ok := p[ticker]
	if !ok {
		return domain.Quote{}, false
	}
	return domain.Quote{Symbol: ticker, Price: v, PreviousPrice: v, Timestamp: time.Now(), Direction: domain.DirectionFlat}, true
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "test.db"), 0)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSeedsProfileAndWatchlist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, err := s.Portfolio(ctx, fixedPrices{})
	if err != nil {
		t.Fatalf("Portfolio: %v", err)
	}
	if snap.CashBalance != 10000 {
		t.Errorf("seed cash = %v, want 10000", snap.CashBalance)
	}
	if snap.TotalValue != 10000 {
		t.Errorf("seed total = %v, want 10000", snap.TotalValue)
	}
	if len(snap.Positions) != 0 {
		t.Errorf("seed positions = %+v, want none", snap.Positions)
	}

	items, err := s.Watchlist(ctx, fixedPrices{})
	if err != nil {
		t.Fatalf("Watchlist: %v", err)
	}
	if len(items) != len(seedWatchlist) {
		t.Errorf("seed watchlist has %d rows, want %d", len(items), len(seedWatchlist))
	}
}

func TestExecuteTradeBuyThenSell(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	prices := fixedPrices{"AAPL": 190}

	trade, err := s.ExecuteTrade(ctx, domain.TradeRequest{Symbol: "AAPL", Quantity: 10, Side: domain.SideBuy}, prices)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if trade.Price != 190 || trade.Quantity != 10 {
		t.Errorf("trade = %+v, want 10 @ 190", trade)
	}

	snap, _ := s.Portfolio(ctx, prices)
	if snap.CashBalance != 10000-1900 {
		t.Errorf("cash after buy = %v, want 8100", snap.CashBalance)
	}
	if len(snap.Positions) != 1 || snap.Positions[0].Quantity != 10 || snap.Positions[0].AvgCost != 190 {
		t.Errorf("position after buy = %+v, want 10 @ avg 190", snap.Positions)
	}
	// Total value is unchanged by a trade at the current price.
	if snap.TotalValue != 10000 {
		t.Errorf("total after buy = %v, want 10000", snap.TotalValue)
	}

	// Averaging in at a higher price.
	prices["AAPL"] = 200
	if _, err := s.ExecuteTrade(ctx, domain.TradeRequest{Symbol: "AAPL", Quantity: 10, Side: domain.SideBuy}, prices); err != nil {
		t.Fatalf("second buy: %v", err)
	}
	snap, _ = s.Portfolio(ctx, prices)
	if snap.Positions[0].AvgCost != 195 {
		t.Errorf("avg cost = %v, want 195 after averaging 190 and 200", snap.Positions[0].AvgCost)
	}

	// Sell everything; the position row disappears.
	if _, err := s.ExecuteTrade(ctx, domain.TradeRequest{Symbol: "AAPL", Quantity: 20, Side: domain.SideSell}, prices); err != nil {
		t.Fatalf("sell: %v", err)
	}
	snap, _ = s.Portfolio(ctx, prices)
	if len(snap.Positions) != 0 {
		t.Errorf("positions after full sell = %+v, want none", snap.Positions)
	}
	// 10000 - 1900 - 2000 + 4000.
	if snap.CashBalance != 10100 {
		t.Errorf("cash after round trip = %v, want 10100", snap.CashBalance)
	}
}

func TestExecuteTradeRejections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	prices := fixedPrices{"AAPL": 190, "NVDA": 880}

	tests := []struct {
		name    string
		req     domain.TradeRequest
		wantMsg string
	}{
		{"insufficient cash", domain.TradeRequest{Symbol: "NVDA", Quantity: 100, Side: domain.SideBuy}, "Insufficient cash"},
		{"insufficient shares", domain.TradeRequest{Symbol: "AAPL", Quantity: 5, Side: domain.SideSell}, "Insufficient shares"},
		{"unknown ticker", domain.TradeRequest{Symbol: "ZZZZ", Quantity: 1, Side: domain.SideBuy}, "No price available"},
		{"bad side", domain.TradeRequest{Symbol: "AAPL", Quantity: 1, Side: "hold"}, "side must be"},
		{"zero quantity", domain.TradeRequest{Symbol: "AAPL", Quantity: 0, Side: domain.SideBuy}, "quantity must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ExecuteTrade(ctx, tt.req, prices)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("error = %v, want *RequestError", err)
			}
			if reqErr.Status != 400 {
				t.Errorf("status = %d, want 400", reqErr.Status)
			}
			if !strings.Contains(reqErr.Msg, tt.wantMsg) {
				t.Errorf("msg = %q, want it to contain %q", reqErr.Msg, tt.wantMsg)
			}
		})
	}

	// A rejected trade leaves the portfolio untouched.
	snap, _ := s.Portfolio(ctx, prices)
	if snap.CashBalance != 10000 || len(snap.Positions) != 0 {
		t.Errorf("portfolio changed by rejected trades: %+v", snap)
	}
}

func TestTradeRecordsSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	prices := fixedPrices{"AAPL": 190}

	before, _ := s.History(ctx)
	if _, err := s.ExecuteTrade(ctx, domain.TradeRequest{Symbol: "AAPL", Quantity: 1, Side: domain.SideBuy}, prices); err != nil {
		t.Fatalf("buy: %v", err)
	}
	after, err := s.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Errorf("history grew from %d to %d, want one new snapshot per trade", len(before), len(after))
	}
	if after[len(after)-1].TotalValue != 10000 {
		t.Errorf("snapshot total = %v, want 10000", after[len(after)-1].TotalValue)
	}
}

func TestWatchlistAddRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddWatch(ctx, "PYPL"); err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	var reqErr *RequestError
	err := s.AddWatch(ctx, "PYPL")
	if !errors.As(err, &reqErr) || reqErr.Status != 409 {
		t.Errorf("duplicate add error = %v, want 409 RequestError", err)
	}

	if err := s.RemoveWatch(ctx, "PYPL"); err != nil {
		t.Fatalf("RemoveWatch: %v", err)
	}
	if err := s.RemoveWatch(ctx, "PYPL"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove error = %v, want ErrNotFound", err)
	}
}

func TestWatchlistRowsCarryPrices(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items, err := s.Watchlist(ctx, fixedPrices{"AAPL": 190.55})
	if err != nil {
		t.Fatalf("Watchlist: %v", err)
	}

	var aapl, googl *domain.WatchlistItem
	for i := range items {
		switch items[i].Symbol {
		case "AAPL":
			aapl = &items[i]
		case "GOOGL":
			googl = &items[i]
		}
	}
	if aapl == nil || aapl.Price == nil || *aapl.Price != 190.55 {
		t.Errorf("AAPL row = %+v, want price 190.55", aapl)
	}
	if googl == nil || googl.Price != nil {
		t.Errorf("GOOGL row = %+v, want nil price without a quote", googl)
	}
}

func TestTakeSnapshotFallsBackToAvgCost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	prices := fixedPrices{"AAPL": 200}

	if _, err := s.ExecuteTrade(ctx, domain.TradeRequest{Symbol: "AAPL", Quantity: 5, Side: domain.SideBuy}, prices); err != nil {
		t.Fatalf("buy: %v", err)
	}

	// No live price anymore: valuation uses the stored average cost.
	if err := s.TakeSnapshot(ctx, fixedPrices{}); err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}
	hist, _ := s.History(ctx)
	last := hist[len(hist)-1]
	if last.TotalValue != 10000 {
		t.Errorf("snapshot total = %v, want 10000 (cash 9000 + 5 @ avg 200)", last.TotalValue)
	}
}
