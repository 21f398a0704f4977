package server

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tradedesk/internal/domain"
)

// Assistant is a scripted stand-in for the conversational trading
// assistant. It pattern-matches a handful of commands, executes them
// against the store, and reports what it did as side effects so the client
// refreshes exactly as it would for the real thing.
type Assistant struct {
	store *Store
	cache *PriceCache
}

func NewAssistant(store *Store, cache *PriceCache) *Assistant {
	return &Assistant{store: store, cache: cache}
}

var (
	tradeRe   = regexp.MustCompile(`(?i)\b(buy|sell)\s+(\d+)\s+(?:shares?\s+(?:of\s+)?)?([A-Za-z]{1,6})\b`)
	watchRe   = regexp.MustCompile(`(?i)\b(?:add|watch)\s+([A-Za-z]{1,6})\b`)
	unwatchRe = regexp.MustCompile(`(?i)\b(?:remove|unwatch|drop)\s+([A-Za-z]{1,6})\b`)
	priceRe   = regexp.MustCompile(`(?i)\bprice\s+(?:of\s+)?([A-Za-z]{1,6})\b`)
)

// Reply handles one message. Executed trades and watchlist changes come
// back in the response so the client knows to refresh.
func (a *Assistant) Reply(ctx context.Context, message string) domain.ChatResponse {
	if m := tradeRe.FindStringSubmatch(message); m != nil {
		return a.trade(ctx, m)
	}
	if m := unwatchRe.FindStringSubmatch(message); m != nil {
		return a.unwatch(ctx, m[1])
	}
	if m := watchRe.FindStringSubmatch(message); m != nil {
		return a.watch(ctx, m[1])
	}
	if m := priceRe.FindStringSubmatch(message); m != nil {
		return a.price(m[1])
	}
	if strings.Contains(strings.ToLower(message), "portfolio") {
		return a.summary(ctx)
	}
	return domain.ChatResponse{
		Message: "I can execute trades (\"buy 10 AAPL\"), manage your watchlist (\"watch NVDA\", \"remove TSLA\"), quote prices (\"price of MSFT\"), or summarize your portfolio.",
	}
}

func (a *Assistant) trade(ctx context.Context, m []string) domain.ChatResponse {
	side := domain.Side(strings.ToLower(m[1]))
	qty, err := strconv.Atoi(m[2])
	if err != nil || qty <= 0 {
		return domain.ChatResponse{Message: "I couldn't read that quantity."}
	}
	ticker := strings.ToUpper(m[3])

	trade, err := a.store.ExecuteTrade(ctx, domain.TradeRequest{
		Symbol:   ticker,
		Quantity: qty,
		Side:     side,
	}, a.cache)
	if err != nil {
		return domain.ChatResponse{Message: fmt.Sprintf("I couldn't %s %s: %s", side, ticker, err)}
	}

	verb := "Bought"
	if side == domain.SideSell {
		verb = "Sold"
	}
	return domain.ChatResponse{
		Message: fmt.Sprintf("%s %d shares of %s at $%.2f.", verb, qty, ticker, trade.Price),
		Trades: []domain.ChatTradeAction{
			{Symbol: ticker, Side: side, Quantity: float64(qty)},
		},
	}
}

func (a *Assistant) watch(ctx context.Context, raw string) domain.ChatResponse {
	ticker := strings.ToUpper(raw)
	if err := a.store.AddWatch(ctx, ticker); err != nil {
		return domain.ChatResponse{Message: fmt.Sprintf("I couldn't add %s: %s", ticker, err)}
	}
	return domain.ChatResponse{
		Message:          fmt.Sprintf("Added %s to your watchlist.", ticker),
		WatchlistChanges: []domain.ChatWatchlistChange{{Symbol: ticker, Action: "add"}},
	}
}

func (a *Assistant) unwatch(ctx context.Context, raw string) domain.ChatResponse {
	ticker := strings.ToUpper(raw)
	if err := a.store.RemoveWatch(ctx, ticker); err != nil {
		return domain.ChatResponse{Message: fmt.Sprintf("%s isn't on your watchlist.", ticker)}
	}
	return domain.ChatResponse{
		Message:          fmt.Sprintf("Removed %s from your watchlist.", ticker),
		WatchlistChanges: []domain.ChatWatchlistChange{{Symbol: ticker, Action: "remove"}},
	}
}

func (a *Assistant) price(raw string) domain.ChatResponse {
	ticker := strings.ToUpper(raw)
	q, ok := a.cache.Get(ticker)
	if !ok {
		return domain.ChatResponse{Message: fmt.Sprintf("I don't have a price for %s.", ticker)}
	}
	return domain.ChatResponse{
		Message: fmt.Sprintf("%s is trading at $%.2f (%s).", ticker, q.Price, q.Direction),
	}
}

func (a *Assistant) summary(ctx context.Context) domain.ChatResponse {
	snap, err := a.store.Portfolio(ctx, a.cache)
	if err != nil {
		return domain.ChatResponse{Message: "I couldn't load your portfolio right now."}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cash $%.2f, total value $%.2f.", snap.CashBalance, snap.TotalValue)
	if len(snap.Positions) == 0 {
		b.WriteString(" No open positions.")
	}
	for _, p := range snap.Positions {
		fmt.Fprintf(&b, " %s: %g @ $%.2f (P&L $%.2f).", p.Symbol, p.Quantity, p.AvgCost, p.UnrealizedPnL)
	}
	return domain.ChatResponse{Message: b.String()}
}
