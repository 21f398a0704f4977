package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tradedesk/internal/domain"
)

// Server serves the trading API and the price stream.
type Server struct {
	store     *Store
	cache     *PriceCache
	assistant *Assistant
	log       *slog.Logger

	streamInterval time.Duration
	upgrader       websocket.Upgrader
}

// New creates a server over the given store and price cache. The stream
// endpoint broadcasts the full quote board every streamInterval.
func New(store *Store, cache *PriceCache, streamInterval time.Duration, log *slog.Logger) *Server {
	return &Server{
		store:          store,
		cache:          cache,
		assistant:      NewAssistant(store, cache),
		log:            log,
		streamInterval: streamInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the full API handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("POST /api/portfolio/trade", s.handleTrade)
	mux.HandleFunc("GET /api/portfolio/history", s.handleHistory)
	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("POST /api/watchlist", s.handleAddWatchlist)
	mux.HandleFunc("DELETE /api/watchlist/{ticker}", s.handleRemoveWatchlist)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/stream/prices", s.handleStream)
	return corsMiddleware(mux)
}

// RunSnapshots records a portfolio snapshot on every interval until ctx is
// cancelled, giving the history chart data even when no trades happen.
func (s *Server) RunSnapshots(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.TakeSnapshot(ctx, s.cache); err != nil && ctx.Err() == nil {
				s.log.Warn("snapshot failed", "error", err)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Portfolio(r.Context(), s.cache)
	if err != nil {
		s.serverError(w, "loading portfolio", err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req domain.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	req.Side = domain.Side(strings.ToLower(string(req.Side)))

	trade, err := s.store.ExecuteTrade(r.Context(), req, s.cache)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			writeError(w, reqErr.Status, reqErr.Msg)
			return
		}
		s.serverError(w, "executing trade", err)
		return
	}
	s.log.Info("trade executed", "ticker", trade.Symbol, "side", trade.Side, "quantity", trade.Quantity, "price", trade.Price)
	writeJSON(w, trade)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	points, err := s.store.History(r.Context())
	if err != nil {
		s.serverError(w, "loading history", err)
		return
	}
	writeJSON(w, points)
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Watchlist(r.Context(), s.cache)
	if err != nil {
		s.serverError(w, "loading watchlist", err)
		return
	}
	writeJSON(w, items)
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ticker string `json:"ticker"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(body.Ticker))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "Ticker is required")
		return
	}

	if err := s.store.AddWatch(r.Context(), ticker); err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			writeError(w, reqErr.Status, reqErr.Msg)
			return
		}
		s.serverError(w, "adding watchlist row", err)
		return
	}

	item := domain.WatchlistItem{Symbol: ticker}
	if q, ok := s.cache.Get(ticker); ok {
		item.Price = &q.Price
	}
	writeJSON(w, item)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(r.PathValue("ticker")))
	err := s.store.RemoveWatch(r.Context(), ticker)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, ticker+" not in watchlist")
		return
	}
	if err != nil {
		s.serverError(w, "removing watchlist row", err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, s.assistant.Reply(r.Context(), body.Message))
}

// handleStream upgrades to WebSocket and pushes the full quote board on
// every stream interval. One goroutine per client; a dead client is
// detected by the failed write.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.log.Info("stream client connected", "remote", r.RemoteAddr)

	// Discard inbound frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		quotes := s.cache.All()
		if len(quotes) > 0 {
			if err := conn.WriteJSON(quotes); err != nil {
				s.log.Info("stream client disconnected", "remote", r.RemoteAddr)
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
