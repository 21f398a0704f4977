// Package session wires the dashboard client together: the feed connector,
// the market-data stores, the snapshot refresher, and the mutation
// controllers share one lifecycle that Start opens and Close tears down.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradedesk/internal/api"
	"tradedesk/internal/config"
	"tradedesk/internal/domain"
	"tradedesk/internal/feed"
	"tradedesk/internal/market"
	"tradedesk/internal/portfolio"
	"tradedesk/internal/trade"
	"tradedesk/internal/util"
	"tradedesk/internal/watchlist"
)

// Session is one dashboard session. It owns the streaming connection and
// all client-side state; there is exactly one per running client.
type Session struct {
	log *slog.Logger

	API       *api.Client
	Quotes    *market.QuoteTable
	History   *market.History
	Watchlist *watchlist.Controller
	Trades    *trade.Controller
	Chat      *trade.ChatController

	connector *feed.Connector
	refresher *portfolio.Refresher

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	snapshot domain.PortfolioSnapshot
	status   feed.State
}

// New builds a session from config. Nothing connects until Start.
func New(cfg *config.Config, log *slog.Logger) *Session {
	s := &Session{
		log:     log,
		API:     api.NewClient(cfg.Client.BaseURL),
		Quotes:  market.NewQuoteTable(),
		History: market.NewHistory(cfg.Market.HistoryCapacity),
		status:  feed.StateDisconnected,
	}

	s.connector = feed.NewConnector(cfg.Client.FeedURL, feed.Handlers{
		Batch: func(quotes []domain.Quote) {
			s.Quotes.ApplyBatch(quotes)
			s.History.RecordBatch(quotes)
		},
		Status: func(st feed.State) {
			s.mu.Lock()
			s.status = st
			s.mu.Unlock()
		},
		IngestError: func(err error) {
			log.Warn("feed event dropped", "error", err)
		},
	}, log)

	interval := time.Duration(cfg.Market.RefreshIntervalSec) * time.Second
	s.refresher = portfolio.NewRefresher(
		s.API.GetPortfolio,
		func(snap domain.PortfolioSnapshot) {
			s.mu.Lock()
			s.snapshot = snap
			s.mu.Unlock()
		},
		interval,
		log,
	)

	s.Watchlist = watchlist.NewController(s.API, log)
	s.Trades = trade.NewController(s.API, s.refresher.Trigger, log)
	s.Chat = trade.NewChatController(s.API, s.refresher.Trigger, log)

	return s
}

// Start opens the streaming connection, begins the snapshot refresh cycle,
// and loads the watchlist. It returns immediately; all work runs in
// session-owned goroutines until Close.
func (s *Session) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.connector.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.refresher.Run(ctx)
	}()

	// The backend may still be starting; retry the initial watchlist load
	// a few times before degrading to an empty list.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := util.Retry(ctx, 3, time.Second, func() error {
			return s.Watchlist.Load(ctx)
		})
		if err != nil {
			s.log.Warn("initial watchlist load failed", "error", err)
		}
	}()
}

// Close tears the session down: the transport closes, timers stop, and any
// fetch still in flight resolves without touching session state. Safe to
// call once after Start.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Refresh requests an immediate portfolio re-fetch, coalesced with any
// fetch already in flight.
func (s *Session) Refresh() {
	s.refresher.Trigger()
}

// Status returns the current connection state.
func (s *Session) Status() feed.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Portfolio reconciles the latest snapshot against live quotes and returns
// the position view-models, the live total value, and the cash balance.
func (s *Session) Portfolio() ([]portfolio.PositionView, float64, float64) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	views, total := portfolio.Reconcile(snap, s.Quotes)
	return views, total, snap.CashBalance
}
