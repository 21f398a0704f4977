// Package dashboard renders the terminal dashboard: watchlist and position
// tables, sparklines from the price history, and the connection header.
package dashboard

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"

	"tradedesk/internal/domain"
)

// FormatMoney formats a dollar amount as "$7,500.00".
func FormatMoney(v float64) string {
	return money.NewFromFloat(v, money.USD).Display()
}

// FormatSignedMoney formats a P&L amount with an explicit sign,
// "+$200.00" / "-$13.50".
func FormatSignedMoney(v float64) string {
	if v < 0 {
		return "-" + money.NewFromFloat(-v, money.USD).Display()
	}
	return "+" + money.NewFromFloat(v, money.USD).Display()
}

// FormatPercent formats a signed percentage, "+1.23%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%+.2f%%", p)
}

// FormatPrice formats a raw price, or "-" when none is known.
func FormatPrice(p float64) string {
	if p == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatQuantity renders a share count without trailing zeros.
func FormatQuantity(q float64) string {
	s := fmt.Sprintf("%.4f", q)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// DirectionMark is the single-cell tick marker for a price move.
func DirectionMark(d domain.Direction) string {
	switch d {
	case domain.DirectionUp:
		return "▲"
	case domain.DirectionDown:
		return "▼"
	default:
		return "·"
	}
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the most recent points of a price series as a
// fixed-width block graph. Fewer points than width left-pads with spaces; a
// flat series renders at the lowest level.
func Sparkline(points []domain.HistoryPoint, width int) string {
	if width <= 0 || len(points) == 0 {
		return strings.Repeat(" ", max(width, 0))
	}
	if len(points) > width {
		points = points[len(points)-width:]
	}

	lo, hi := points[0].Price, points[0].Price
	for _, p := range points[1:] {
		if p.Price < lo {
			lo = p.Price
		}
		if p.Price > hi {
			hi = p.Price
		}
	}

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", width-len(points)))
	for _, p := range points {
		idx := 0
		if hi > lo {
			idx = int((p.Price - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}
