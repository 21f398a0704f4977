package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"tradedesk/internal/domain"
)

func TestTickJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.parquet")
	j := NewTickJournal(path)

	base := time.Now().UTC().Truncate(time.Millisecond)
	j.Append(domain.Quote{Symbol: "AAPL", Price: 190, PreviousPrice: 189.5, Timestamp: base})
	j.Append(domain.Quote{Symbol: "NVDA", Price: 880, PreviousPrice: 881, Timestamp: base})
	j.Append(domain.Quote{Symbol: "AAPL", Price: 190.5, PreviousPrice: 190, Timestamp: base.Add(500 * time.Millisecond)})

	if err := j.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ticks, err := ReadTicks(path)
	if err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(ticks) != 3 {
		t.Fatalf("read %d ticks, want 3", len(ticks))
	}
	if ticks[0].Ticker != "AAPL" || ticks[0].Price != 190 {
		t.Errorf("first tick = %+v, want AAPL @ 190", ticks[0])
	}
	if ticks[2].Timestamp != base.Add(500*time.Millisecond).UnixMilli() {
		t.Errorf("third tick timestamp = %d, want %d", ticks[2].Timestamp, base.Add(500*time.Millisecond).UnixMilli())
	}
}

func TestFlushEmptyJournalWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.parquet")
	if err := NewTickJournal(path).Flush(); err != nil {
		t.Fatalf("Flush of empty journal: %v", err)
	}
	if _, err := ReadTicks(path); err == nil {
		t.Error("expected no journal file for an empty flush")
	}
}

func TestReplayerFeedsCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.parquet")
	j := NewTickJournal(path)
	base := time.Now().UTC().Truncate(time.Millisecond)
	j.Append(domain.Quote{Symbol: "AAPL", Price: 190, Timestamp: base})
	j.Append(domain.Quote{Symbol: "NVDA", Price: 880, Timestamp: base})
	j.Append(domain.Quote{Symbol: "AAPL", Price: 195, Timestamp: base.Add(500 * time.Millisecond)})
	if err := j.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	cache := NewPriceCache()
	r, err := NewReplayer(cache, path, 10*time.Millisecond, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewReplayer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if q, ok := cache.Get("AAPL"); ok && q.Price == 195 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	q, ok := cache.Get("AAPL")
	if !ok || q.Price != 195 {
		t.Errorf("AAPL after replay = %+v, want 195", q)
	}
	if q.Direction != domain.DirectionUp {
		t.Errorf("direction = %s, want up (190 -> 195)", q.Direction)
	}
	if _, ok := cache.Get("NVDA"); !ok {
		t.Error("NVDA never replayed into the cache")
	}
}

func TestReplayerRejectsMissingJournal(t *testing.T) {
	_, err := NewReplayer(NewPriceCache(), filepath.Join(t.TempDir(), "absent.parquet"), time.Second, slog.New(slog.DiscardHandler))
	if err == nil {
		t.Error("NewReplayer succeeded on a missing file")
	}
}
