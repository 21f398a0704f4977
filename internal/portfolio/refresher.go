package portfolio

import (
	"context"
	"log/slog"
	"time"

	"tradedesk/internal/domain"
)

// FetchFunc fetches a fresh portfolio snapshot from the backend.
type FetchFunc func(ctx context.Context) (domain.PortfolioSnapshot, error)

// Refresher keeps the portfolio snapshot fresh: it fetches on a fixed
// interval and on demand via Trigger. Fetches run one at a time; triggers
// arriving while a fetch is in flight coalesce into a single follow-up
// fetch. Fetch failures leave the previous snapshot in place.
type Refresher struct {
	fetch    FetchFunc
	onUpdate func(domain.PortfolioSnapshot)
	interval time.Duration
	log      *slog.Logger

	trigger chan struct{}
}

// NewRefresher creates a refresher that calls onUpdate with each
// successfully fetched snapshot.
func NewRefresher(fetch FetchFunc, onUpdate func(domain.PortfolioSnapshot), interval time.Duration, log *slog.Logger) *Refresher {
	return &Refresher{
		fetch:    fetch,
		onUpdate: onUpdate,
		interval: interval,
		log:      log,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate refresh. Safe to call from any goroutine;
// triggers during an in-flight fetch coalesce into one follow-up.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run fetches once immediately, then on every interval tick or trigger,
// until ctx is cancelled. Results that complete after cancellation are
// discarded rather than applied to a torn-down session.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		case <-r.trigger:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	snap, err := r.fetch(ctx)
	if err != nil {
		// Degrade to the last-known snapshot; no user-facing error.
		r.log.Warn("portfolio refresh failed", "error", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	r.onUpdate(snap)
}
