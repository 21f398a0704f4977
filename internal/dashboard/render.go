package dashboard

import (
	"fmt"
	"io"
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/feed"
	"tradedesk/internal/portfolio"
)

// WatchRow is one watchlist line ready to draw: the symbol, its latest
// quote if one has arrived, and a sparkline of its recent history.
type WatchRow struct {
	Symbol string
	Quote  domain.Quote
	Live   bool
	Spark  string
}

// Frame is everything one redraw needs, assembled by the caller from
// session state so rendering itself holds no locks.
type Frame struct {
	Now    time.Time
	Status feed.State

	Watchlist []WatchRow
	Positions []portfolio.PositionView

	CashBalance float64
	TotalValue  float64

	TradeStatus string
	TradeErr    string
	ChatTail    []domain.ChatMessage
}

// Render clears the terminal and draws one full frame.
func Render(w io.Writer, f Frame) {
	fmt.Fprint(w, "\033[H\033[2J")
	fmt.Fprintf(w, "tradedesk — %s    [%s]\n\n",
		f.Now.Format("2006-01-02 15:04:05"), statusLabel(f.Status))

	fmt.Fprintln(w, "WATCHLIST")
	fmt.Fprintf(w, "  %-8s %1s %10s %9s  %s\n", "SYMBOL", "", "PRICE", "CHANGE", "TREND")
	for _, row := range f.Watchlist {
		if !row.Live {
			fmt.Fprintf(w, "  %-8s %1s %10s %9s  %s\n", row.Symbol, "·", "-", "", row.Spark)
			continue
		}
		change := 0.0
		if row.Quote.PreviousPrice > 0 {
			change = (row.Quote.Price - row.Quote.PreviousPrice) / row.Quote.PreviousPrice * 100
		}
		fmt.Fprintf(w, "  %-8s %1s %10s %9s  %s\n",
			row.Symbol,
			DirectionMark(row.Quote.Direction),
			FormatPrice(row.Quote.Price),
			FormatPercent(change),
			row.Spark)
	}

	fmt.Fprintln(w, "\nPOSITIONS")
	fmt.Fprintf(w, "  %-8s %10s %10s %10s %12s %9s\n",
		"SYMBOL", "QTY", "AVG COST", "PRICE", "P&L", "P&L %")
	for _, p := range f.Positions {
		fmt.Fprintf(w, "  %-8s %10s %10s %10s %12s %9s\n",
			p.Symbol,
			FormatQuantity(p.Quantity),
			FormatPrice(p.AvgCost),
			FormatPrice(p.CurrentPrice),
			FormatSignedMoney(p.UnrealizedPnL),
			FormatPercent(p.PnLPercent))
	}

	fmt.Fprintf(w, "\n  cash %s    total %s\n",
		FormatMoney(f.CashBalance), FormatMoney(f.TotalValue))

	if f.TradeErr != "" {
		fmt.Fprintf(w, "\n  trade error: %s\n", f.TradeErr)
	} else if f.TradeStatus != "" {
		fmt.Fprintf(w, "\n  last trade: %s\n", f.TradeStatus)
	}

	if len(f.ChatTail) > 0 {
		fmt.Fprintln(w, "\nCHAT")
		for _, m := range f.ChatTail {
			fmt.Fprintf(w, "  %-9s %s\n", m.Role+":", m.Content)
		}
	}

	fmt.Fprintln(w, "\ncommands: buy SYM QTY | sell SYM QTY | watch SYM | unwatch SYM | chat MSG | q")
}

func statusLabel(s feed.State) string {
	switch s {
	case feed.StateConnected:
		return "LIVE"
	case feed.StateReconnecting:
		return "RECONNECTING"
	default:
		return "OFFLINE"
	}
}
