package server

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// tickerParams are the seed price and annualized GBM parameters for one
// simulated ticker.
type tickerParams struct {
	Seed   float64
	Drift  float64
	Vol    float64
	Sector string
}

// defaultTickers is the simulated universe. Tech names share one sector
// factor, finance names another, so moves within a sector correlate.
var defaultTickers = map[string]tickerParams{
	"AAPL":  {Seed: 190.0, Drift: 0.08, Vol: 0.25, Sector: "tech"},
	"GOOGL": {Seed: 175.0, Drift: 0.10, Vol: 0.28, Sector: "tech"},
	"MSFT":  {Seed: 420.0, Drift: 0.09, Vol: 0.24, Sector: "tech"},
	"AMZN":  {Seed: 185.0, Drift: 0.12, Vol: 0.30, Sector: "tech"},
	"TSLA":  {Seed: 250.0, Drift: 0.05, Vol: 0.50, Sector: "tech"},
	"NVDA":  {Seed: 880.0, Drift: 0.15, Vol: 0.40, Sector: "tech"},
	"META":  {Seed: 500.0, Drift: 0.10, Vol: 0.32, Sector: "tech"},
	"NFLX":  {Seed: 630.0, Drift: 0.11, Vol: 0.35, Sector: "tech"},
	"JPM":   {Seed: 195.0, Drift: 0.06, Vol: 0.20, Sector: "finance"},
	"V":     {Seed: 280.0, Drift: 0.07, Vol: 0.18, Sector: "finance"},
}

// sectorCorrelation is the weight of the shared sector shock in each
// ticker's random draw.
var sectorCorrelation = map[string]float64{
	"tech":    0.6,
	"finance": 0.5,
}

const (
	eventProbability = 0.005 // per ticker per step
	eventMinPct      = 0.02
	eventMaxPct      = 0.05
	priceFloor       = 0.01
)

// Simulator advances prices with geometric Brownian motion plus occasional
// jump events, writing every step into the price cache.
type Simulator struct {
	cache    *PriceCache
	journal  *TickJournal // optional
	interval time.Duration
	log      *slog.Logger

	tickers map[string]tickerParams
	prices  map[string]float64
	dt      float64
}

// NewSimulator creates a simulator over the default universe. journal may
// be nil to skip tick recording.
func NewSimulator(cache *PriceCache, journal *TickJournal, interval time.Duration, log *slog.Logger) *Simulator {
	prices := make(map[string]float64, len(defaultTickers))
	for t, p := range defaultTickers {
		prices[t] = p.Seed
	}
	return &Simulator{
		cache:    cache,
		journal:  journal,
		interval: interval,
		log:      log,
		tickers:  defaultTickers,
		prices:   prices,
		// Step size as a fraction of the trading year (252 days of 6.5h).
		dt: interval.Seconds() / (252 * 6.5 * 3600),
	}
}

// Seed writes every ticker's starting price into the cache so clients see a
// full board before the first step.
func (s *Simulator) Seed() {
	now := time.Now().UTC()
	for t, price := range s.prices {
		q := s.cache.Update(t, price, now)
		if s.journal != nil {
			s.journal.Append(q)
		}
	}
}

// Run steps the simulation until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("simulator started", "tickers", len(s.tickers), "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step(time.Now().UTC())
		}
	}
}

// Step advances every ticker by one GBM increment. Tickers in the same
// sector share one random shock, blended per sectorCorrelation, so they
// move together the way real sector baskets do.
func (s *Simulator) Step(now time.Time) {
	sectorShock := map[string]float64{}
	for sector := range sectorCorrelation {
		sectorShock[sector] = rand.NormFloat64()
	}

	for t, p := range s.tickers {
		rho := sectorCorrelation[p.Sector]
		z := rho*sectorShock[p.Sector] + math.Sqrt(1-rho*rho)*rand.NormFloat64()

		price := s.prices[t]
		price += price * (p.Drift*s.dt + p.Vol*math.Sqrt(s.dt)*z)

		// Occasional news-style jump of 2-5% in either direction.
		if rand.Float64() < eventProbability {
			pct := eventMinPct + rand.Float64()*(eventMaxPct-eventMinPct)
			if rand.IntN(2) == 0 {
				pct = -pct
			}
			price *= 1 + pct
		}

		price = max(price, priceFloor)
		s.prices[t] = price

		q := s.cache.Update(t, price, now)
		if s.journal != nil {
			s.journal.Append(q)
		}
	}
}
