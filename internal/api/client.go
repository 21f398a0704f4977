// Package api provides the typed HTTP client for the trading backend:
// portfolio, trades, watchlist, and chat.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tradedesk/internal/domain"
)

// Error is a failed API call. Status is the HTTP status code and Body the
// raw response text, so callers can surface the server's message verbatim.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("API %d: %s", e.Status, e.Body)
}

// Client calls the trading backend's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do issues one request. A non-nil body is JSON-encoded; a non-nil out is
// JSON-decoded from the response. Non-2xx responses become *Error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(resp.Body)
		return &Error{Status: resp.StatusCode, Body: errorText(text)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return nil
}

// errorText extracts the server's error message from a failure body. The
// backend wraps messages as {"error": "..."}; anything else passes through
// as raw text so the message is never lost.
func errorText(body []byte) string {
	var wrapped struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != "" {
		return wrapped.Error
	}
	return string(bytes.TrimSpace(body))
}

// GetPortfolio fetches the full portfolio snapshot.
func (c *Client) GetPortfolio(ctx context.Context) (domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	err := c.do(ctx, http.MethodGet, "/api/portfolio", nil, &snap)
	return snap, err
}

// SubmitTrade submits a market order and returns the executed trade.
func (c *Client) SubmitTrade(ctx context.Context, req domain.TradeRequest) (domain.Trade, error) {
	var trade domain.Trade
	err := c.do(ctx, http.MethodPost, "/api/portfolio/trade", req, &trade)
	return trade, err
}

// GetPortfolioHistory fetches the recorded total-value series for the P&L chart.
func (c *Client) GetPortfolioHistory(ctx context.Context) ([]domain.SnapshotPoint, error) {
	var points []domain.SnapshotPoint
	err := c.do(ctx, http.MethodGet, "/api/portfolio/history", nil, &points)
	return points, err
}

// GetWatchlist fetches all watchlist rows.
func (c *Client) GetWatchlist(ctx context.Context) ([]domain.WatchlistItem, error) {
	var items []domain.WatchlistItem
	err := c.do(ctx, http.MethodGet, "/api/watchlist", nil, &items)
	return items, err
}

// AddTicker adds a symbol to the watchlist.
func (c *Client) AddTicker(ctx context.Context, symbol string) (domain.WatchlistItem, error) {
	var item domain.WatchlistItem
	err := c.do(ctx, http.MethodPost, "/api/watchlist", map[string]string{"ticker": symbol}, &item)
	return item, err
}

// RemoveTicker removes a symbol from the watchlist.
func (c *Client) RemoveTicker(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodDelete, "/api/watchlist/"+url.PathEscape(symbol), nil, nil)
}

// Chat sends one message to the assistant and returns its reply, including
// any trade or watchlist side effects it executed.
func (c *Client) Chat(ctx context.Context, message string) (domain.ChatResponse, error) {
	var resp domain.ChatResponse
	err := c.do(ctx, http.MethodPost, "/api/chat", map[string]string{"message": message}, &resp)
	return resp, err
}
