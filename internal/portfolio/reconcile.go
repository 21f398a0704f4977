// Package portfolio reconciles the polled portfolio snapshot with the live
// quote table and keeps the snapshot fresh.
package portfolio

import "tradedesk/internal/domain"

// QuoteSource is the read-only view of the latest-quote table the
// reconciler consumes.
type QuoteSource interface {
	Get(symbol string) (domain.Quote, bool)
}

// PositionView is one position with its valuation fields recomputed from
// live quotes. It is derived on every read and never persisted.
type PositionView struct {
	Symbol        string
	Quantity      float64
	AvgCost       float64
	CurrentPrice  float64
	CostBasis     float64
	MarketValue   float64
	UnrealizedPnL float64
	PnLPercent    float64
	Live          bool // a live quote overrode the snapshot price
}

// Reconcile joins a portfolio snapshot with the quote table and returns
// position view-models plus the live total value. It is a pure function of
// its inputs: idempotent, and order-independent over positions.
//
// The total is carried forward from the snapshot and adjusted by the price
// moves observed since: for each position with a live quote, the difference
// between its live and snapshot market value is applied. When the snapshot
// is internally consistent this equals cash plus the sum of live market
// values; when no live quote has arrived yet, the server's total passes
// through unchanged.
func Reconcile(snap domain.PortfolioSnapshot, quotes QuoteSource) ([]PositionView, float64) {
	views := make([]PositionView, 0, len(snap.Positions))
	total := snap.TotalValue

	for _, pos := range snap.Positions {
		price := pos.CurrentPrice
		live := false
		if q, ok := quotes.Get(pos.Symbol); ok {
			price = q.Price
			live = true
		}

		costBasis := pos.AvgCost * pos.Quantity
		marketValue := price * pos.Quantity
		pnl := marketValue - costBasis

		pnlPercent := 0.0
		if costBasis > 0 {
			pnlPercent = pnl / costBasis * 100
		}

		if live {
			total += marketValue - pos.CurrentPrice*pos.Quantity
		}

		views = append(views, PositionView{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AvgCost:       pos.AvgCost,
			CurrentPrice:  price,
			CostBasis:     costBasis,
			MarketValue:   marketValue,
			UnrealizedPnL: pnl,
			PnLPercent:    pnlPercent,
			Live:          live,
		})
	}

	return views, total
}
