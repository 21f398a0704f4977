package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users_profile (
    id TEXT PRIMARY KEY DEFAULT 'default',
    cash_balance REAL DEFAULT 10000.0,
    created_at TEXT
);

CREATE TABLE IF NOT EXISTS watchlist (
    id TEXT PRIMARY KEY,
    user_id TEXT DEFAULT 'default',
    ticker TEXT,
    added_at TEXT,
    UNIQUE(user_id, ticker)
);

CREATE TABLE IF NOT EXISTS positions (
    id TEXT PRIMARY KEY,
    user_id TEXT DEFAULT 'default',
    ticker TEXT,
    quantity REAL,
    avg_cost REAL,
    updated_at TEXT,
    UNIQUE(user_id, ticker)
);

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    user_id TEXT DEFAULT 'default',
    ticker TEXT,
    side TEXT,
    quantity REAL,
    price REAL,
    executed_at TEXT
);

CREATE TABLE IF NOT EXISTS portfolio_snapshots (
    id TEXT PRIMARY KEY,
    user_id TEXT DEFAULT 'default',
    total_value REAL,
    recorded_at TEXT
);
`

const (
	defaultUser     = "default"
	defaultSeedCash = 10000.0
)

// seedWatchlist is the default ticker set a fresh database starts with.
var seedWatchlist = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "NVDA", "META", "JPM", "V", "NFLX"}

// RequestError is a client-caused failure. Handlers map it to an HTTP 4xx
// with the message as the body, which the dashboard shows verbatim.
type RequestError struct {
	Status int
	Msg    string
}

func (e *RequestError) Error() string { return e.Msg }

// ErrNotFound marks a delete of a row that does not exist.
var ErrNotFound = errors.New("not found")

// PriceSource supplies the current price per ticker, typically the
// simulator's cache.
type PriceSource interface {
	Price(ticker string) (float64, bool)
}

// QuoteSource supplies the full latest quote per ticker.
type QuoteSource interface {
	Get(ticker string) (domain.Quote, bool)
}

// Store is the SQLite-backed portfolio, trade, watchlist, and snapshot
// state.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the database at path, applies the schema,
// and seeds the default profile and watchlist on first run. A non-positive
// seedCash falls back to the default starting balance.
func OpenStore(path string, seedCash float64) (*Store, error) {
	if seedCash <= 0 {
		seedCash = defaultSeedCash
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// modernc.org/sqlite connections do not share in-memory state; one
	// writer connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.seed(seedCash); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) seed(seedCash float64) error {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users_profile").Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.Exec(
		"INSERT INTO users_profile (id, cash_balance, created_at) VALUES (?, ?, ?)",
		defaultUser, seedCash, now,
	); err != nil {
		return err
	}
	for _, ticker := range seedWatchlist {
		if _, err := s.db.Exec(
			"INSERT INTO watchlist (id, user_id, ticker, added_at) VALUES (?, ?, ?, ?)",
			uuid.NewString(), defaultUser, ticker, now,
		); err != nil {
			return err
		}
	}
	return nil
}

// Portfolio assembles the full snapshot: cash, positions valued at current
// prices (falling back to average cost when no price is cached), and the
// derived total.
func (s *Store) Portfolio(ctx context.Context, prices PriceSource) (domain.PortfolioSnapshot, error) {
	var cash float64
	err := s.db.QueryRowContext(ctx,
		"SELECT cash_balance FROM users_profile WHERE id = ?", defaultUser,
	).Scan(&cash)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("loading profile: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT ticker, quantity, avg_cost FROM positions WHERE user_id = ? ORDER BY ticker", defaultUser)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("loading positions: %w", err)
	}
	defer rows.Close()

	snap := domain.PortfolioSnapshot{CashBalance: round2(cash)}
	total := cash
	for rows.Next() {
		var ticker string
		var qty, avgCost float64
		if err := rows.Scan(&ticker, &qty, &avgCost); err != nil {
			return domain.PortfolioSnapshot{}, err
		}

		price, ok := prices.Price(ticker)
		if !ok {
			price = avgCost
		}
		pnl := (price - avgCost) * qty
		pnlPct := 0.0
		if avgCost != 0 {
			pnlPct = (price - avgCost) / avgCost * 100
		}
		total += price * qty

		snap.Positions = append(snap.Positions, domain.Position{
			Symbol:        ticker,
			Quantity:      qty,
			AvgCost:       round2(avgCost),
			CurrentPrice:  round2(price),
			UnrealizedPnL: round2(pnl),
			PnLPercent:    round2(pnlPct),
		})
	}
	if err := rows.Err(); err != nil {
		return domain.PortfolioSnapshot{}, err
	}
	snap.TotalValue = round2(total)
	return snap, nil
}

// ExecuteTrade fills a market order at the current cached price. Buys
// average into the position and debit cash; sells require sufficient
// shares, credit cash, and delete emptied positions. Every fill logs a
// trade row and records a snapshot. Money math runs on decimals so repeated
// fills do not drift the cash balance.
func (s *Store) ExecuteTrade(ctx context.Context, req domain.TradeRequest, prices PriceSource) (domain.Trade, error) {
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return domain.Trade{}, &RequestError{Status: 400, Msg: "side must be 'buy' or 'sell'"}
	}
	if req.Quantity <= 0 {
		return domain.Trade{}, &RequestError{Status: 400, Msg: "quantity must be positive"}
	}
	price, ok := prices.Price(req.Symbol)
	if !ok {
		return domain.Trade{}, &RequestError{Status: 400, Msg: fmt.Sprintf("No price available for %s", req.Symbol)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("beginning trade tx: %w", err)
	}
	defer tx.Rollback()

	var cash float64
	if err := tx.QueryRowContext(ctx,
		"SELECT cash_balance FROM users_profile WHERE id = ?", defaultUser,
	).Scan(&cash); err != nil {
		return domain.Trade{}, fmt.Errorf("loading profile: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	qty := decimal.NewFromInt(int64(req.Quantity))
	px := decimal.NewFromFloat(price)
	notional := qty.Mul(px)
	cashDec := decimal.NewFromFloat(cash)

	switch req.Side {
	case domain.SideBuy:
		if cashDec.LessThan(notional) {
			return domain.Trade{}, &RequestError{
				Status: 400,
				Msg: fmt.Sprintf("Insufficient cash: need $%s, have $%s",
					notional.StringFixed(2), cashDec.StringFixed(2)),
			}
		}

		var heldQty, heldAvg float64
		err := tx.QueryRowContext(ctx,
			"SELECT quantity, avg_cost FROM positions WHERE user_id = ? AND ticker = ?",
			defaultUser, req.Symbol,
		).Scan(&heldQty, &heldAvg)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				"INSERT INTO positions (id, user_id, ticker, quantity, avg_cost, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
				uuid.NewString(), defaultUser, req.Symbol, req.Quantity, price, now)
			if err != nil {
				return domain.Trade{}, fmt.Errorf("creating position: %w", err)
			}
		case err != nil:
			return domain.Trade{}, fmt.Errorf("loading position: %w", err)
		default:
			oldQty := decimal.NewFromFloat(heldQty)
			newQty := oldQty.Add(qty)
			newAvg := oldQty.Mul(decimal.NewFromFloat(heldAvg)).Add(notional).Div(newQty)
			newQtyF, _ := newQty.Float64()
			newAvgF, _ := newAvg.Float64()
			_, err = tx.ExecContext(ctx,
				"UPDATE positions SET quantity = ?, avg_cost = ?, updated_at = ? WHERE user_id = ? AND ticker = ?",
				newQtyF, newAvgF, now, defaultUser, req.Symbol)
			if err != nil {
				return domain.Trade{}, fmt.Errorf("updating position: %w", err)
			}
		}

		newCash, _ := cashDec.Sub(notional).Float64()
		if _, err := tx.ExecContext(ctx,
			"UPDATE users_profile SET cash_balance = ? WHERE id = ?", newCash, defaultUser); err != nil {
			return domain.Trade{}, fmt.Errorf("debiting cash: %w", err)
		}

	case domain.SideSell:
		var heldQty float64
		err := tx.QueryRowContext(ctx,
			"SELECT quantity FROM positions WHERE user_id = ? AND ticker = ?",
			defaultUser, req.Symbol,
		).Scan(&heldQty)
		if errors.Is(err, sql.ErrNoRows) {
			heldQty = 0
			err = nil
		}
		if err != nil {
			return domain.Trade{}, fmt.Errorf("loading position: %w", err)
		}
		if heldQty < float64(req.Quantity) {
			return domain.Trade{}, &RequestError{
				Status: 400,
				Msg:    fmt.Sprintf("Insufficient shares: want to sell %d, hold %g", req.Quantity, heldQty),
			}
		}

		remaining := decimal.NewFromFloat(heldQty).Sub(qty)
		if remaining.IsZero() {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM positions WHERE user_id = ? AND ticker = ?", defaultUser, req.Symbol); err != nil {
				return domain.Trade{}, fmt.Errorf("closing position: %w", err)
			}
		} else {
			remF, _ := remaining.Float64()
			if _, err := tx.ExecContext(ctx,
				"UPDATE positions SET quantity = ?, updated_at = ? WHERE user_id = ? AND ticker = ?",
				remF, now, defaultUser, req.Symbol); err != nil {
				return domain.Trade{}, fmt.Errorf("reducing position: %w", err)
			}
		}

		newCash, _ := cashDec.Add(notional).Float64()
		if _, err := tx.ExecContext(ctx,
			"UPDATE users_profile SET cash_balance = ? WHERE id = ?", newCash, defaultUser); err != nil {
			return domain.Trade{}, fmt.Errorf("crediting cash: %w", err)
		}
	}

	tradeID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO trades (id, user_id, ticker, side, quantity, price, executed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		tradeID, defaultUser, req.Symbol, string(req.Side), req.Quantity, price, now); err != nil {
		return domain.Trade{}, fmt.Errorf("logging trade: %w", err)
	}

	if err := s.recordSnapshot(ctx, tx, prices); err != nil {
		return domain.Trade{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Trade{}, fmt.Errorf("committing trade: %w", err)
	}
	return domain.Trade{
		ID:         tradeID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   float64(req.Quantity),
		Price:      price,
		ExecutedAt: now,
	}, nil
}

// Watchlist returns all watchlist rows in insertion order, decorated with
// live prices where available.
func (s *Store) Watchlist(ctx context.Context, prices QuoteSource) ([]domain.WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ticker FROM watchlist WHERE user_id = ? ORDER BY added_at", defaultUser)
	if err != nil {
		return nil, fmt.Errorf("loading watchlist: %w", err)
	}
	defer rows.Close()

	items := []domain.WatchlistItem{}
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, err
		}
		item := domain.WatchlistItem{Symbol: ticker}
		if q, ok := prices.Get(ticker); ok {
			price, prev := q.Price, q.PreviousPrice
			item.Price = &price
			item.PreviousPrice = &prev
			if prev != 0 {
				pct := round2((price - prev) / prev * 100)
				item.ChangePercent = &pct
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AddWatch inserts a ticker. Duplicates are a 409 the client rolls back on.
func (s *Store) AddWatch(ctx context.Context, ticker string) error {
	var existing string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM watchlist WHERE user_id = ? AND ticker = ?", defaultUser, ticker,
	).Scan(&existing)
	if err == nil {
		return &RequestError{Status: 409, Msg: fmt.Sprintf("%s already in watchlist", ticker)}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking watchlist: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO watchlist (id, user_id, ticker, added_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), defaultUser, ticker, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting watchlist row: %w", err)
	}
	return nil
}

// RemoveWatch deletes a ticker, reporting ErrNotFound if it was absent.
func (s *Store) RemoveWatch(ctx context.Context, ticker string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM watchlist WHERE user_id = ? AND ticker = ?", defaultUser, ticker)
	if err != nil {
		return fmt.Errorf("deleting watchlist row: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// History returns all recorded snapshots, oldest first.
func (s *Store) History(ctx context.Context) ([]domain.SnapshotPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT total_value, recorded_at FROM portfolio_snapshots WHERE user_id = ? ORDER BY recorded_at", defaultUser)
	if err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}
	defer rows.Close()

	points := []domain.SnapshotPoint{}
	for rows.Next() {
		var p domain.SnapshotPoint
		if err := rows.Scan(&p.TotalValue, &p.RecordedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// TakeSnapshot values the portfolio at current prices and inserts one
// snapshot row.
func (s *Store) TakeSnapshot(ctx context.Context, prices PriceSource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.recordSnapshot(ctx, tx, prices); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) recordSnapshot(ctx context.Context, tx *sql.Tx, prices PriceSource) error {
	var cash float64
	if err := tx.QueryRowContext(ctx,
		"SELECT cash_balance FROM users_profile WHERE id = ?", defaultUser,
	).Scan(&cash); err != nil {
		return fmt.Errorf("loading profile for snapshot: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT ticker, quantity, avg_cost FROM positions WHERE user_id = ?", defaultUser)
	if err != nil {
		return fmt.Errorf("loading positions for snapshot: %w", err)
	}
	defer rows.Close()

	total := cash
	for rows.Next() {
		var ticker string
		var qty, avgCost float64
		if err := rows.Scan(&ticker, &qty, &avgCost); err != nil {
			return err
		}
		price, ok := prices.Price(ticker)
		if !ok {
			price = avgCost
		}
		total += qty * price
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO portfolio_snapshots (id, user_id, total_value, recorded_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), defaultUser, round2(total), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}
