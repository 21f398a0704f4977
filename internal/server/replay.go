package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradedesk/internal/domain"
)

// TickRecord is the Parquet schema for one journaled price tick.
type TickRecord struct {
	Ticker        string  `parquet:"ticker"`
	Timestamp     int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price         float64 `parquet:"price"`
	PreviousPrice float64 `parquet:"previous_price"`
}

// TickJournal buffers simulated ticks and writes them to one Parquet file,
// so a session can later be replayed deterministically.
type TickJournal struct {
	path string

	mu      sync.Mutex
	records []TickRecord
}

func NewTickJournal(path string) *TickJournal {
	return &TickJournal{path: path}
}

// Append buffers one tick.
func (j *TickJournal) Append(q domain.Quote) {
	j.mu.Lock()
	j.records = append(j.records, TickRecord{
		Ticker:        q.Symbol,
		Timestamp:     q.Timestamp.UnixMilli(),
		Price:         q.Price,
		PreviousPrice: q.PreviousPrice,
	})
	j.mu.Unlock()
}

// Len returns the number of buffered ticks.
func (j *TickJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.records)
}

// Flush writes all buffered ticks to the journal file, replacing its
// previous contents. Called on shutdown.
func (j *TickJournal) Flush() error {
	j.mu.Lock()
	records := make([]TickRecord, len(j.records))
	copy(records, j.records)
	j.mu.Unlock()

	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}
	if err := parquet.WriteFile(j.path, records); err != nil {
		return fmt.Errorf("writing tick journal: %w", err)
	}
	return nil
}

// ReadTicks loads a journal file, in recorded order.
func ReadTicks(path string) ([]TickRecord, error) {
	records, err := parquet.ReadFile[TickRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading tick journal: %w", err)
	}
	return records, nil
}

// Replayer feeds a recorded tick journal back through the price cache in
// place of the simulator, one timestamp group per interval. It loops when
// it reaches the end, so a short recording drives a long session.
type Replayer struct {
	cache    *PriceCache
	records  []TickRecord
	interval time.Duration
	log      *slog.Logger
}

// NewReplayer loads the journal at path.
func NewReplayer(cache *PriceCache, path string, interval time.Duration, log *slog.Logger) (*Replayer, error) {
	records, err := ReadTicks(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("tick journal %s is empty", path)
	}
	return &Replayer{cache: cache, records: records, interval: interval, log: log}, nil
}

// Run replays the journal until ctx is cancelled. Ticks sharing one
// recorded timestamp are applied together, like one simulator step.
func (r *Replayer) Run(ctx context.Context) {
	r.log.Info("replaying tick journal", "ticks", len(r.records), "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	i := 0
	for {
		// Apply one timestamp group.
		ts := r.records[i].Timestamp
		now := time.Now().UTC()
		for i < len(r.records) && r.records[i].Timestamp == ts {
			r.cache.Update(r.records[i].Ticker, r.records[i].Price, now)
			i++
		}
		if i >= len(r.records) {
			i = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
