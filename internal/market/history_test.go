package market

import (
	"fmt"
	"testing"
	"time"

	"tradedesk/internal/domain"
)

func TestHistoryCapacityBound(t *testing.T) {
	const capacity = 5
	h := NewHistory(capacity)
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		h.Record("AAPL", float64(i), base.Add(time.Duration(i)*time.Second))
		if got := h.Len("AAPL"); got > capacity {
			t.Fatalf("after %d inserts: Len = %d, exceeds capacity %d", i+1, got, capacity)
		}
	}

	points := h.HistoryFor("AAPL")
	if len(points) != capacity {
		t.Fatalf("HistoryFor returned %d points, want %d", len(points), capacity)
	}
	// FIFO eviction: the oldest surviving point is insert #15.
	if points[0].Price != 15 {
		t.Errorf("oldest point price = %v, want 15 (FIFO eviction)", points[0].Price)
	}
	if points[capacity-1].Price != 19 {
		t.Errorf("newest point price = %v, want 19", points[capacity-1].Price)
	}
}

func TestHistoryPerSymbolIndependence(t *testing.T) {
	h := NewHistory(3)
	now := time.Now()

	for i := 0; i < 10; i++ {
		h.Record("AAPL", float64(i), now)
	}
	h.Record("MSFT", 420, now)

	if got := h.Len("AAPL"); got != 3 {
		t.Errorf("AAPL Len = %d, want 3", got)
	}
	// One symbol's overflow must not evict another's history.
	if got := h.Len("MSFT"); got != 1 {
		t.Errorf("MSFT Len = %d, want 1", got)
	}
}

func TestHistoryDirection(t *testing.T) {
	h := NewHistory(10)
	now := time.Now()

	steps := []struct {
		price float64
		want  domain.Direction
	}{
		{100, domain.DirectionFlat}, // first point is always flat
		{101, domain.DirectionUp},
		{101, domain.DirectionFlat},
		{99.5, domain.DirectionDown},
		{99.5, domain.DirectionFlat},
		{200, domain.DirectionUp},
	}

	for i, step := range steps {
		got := h.Record("NVDA", step.price, now)
		if got != step.want {
			t.Errorf("point %d (price %v): Record direction = %q, want %q", i, step.price, got, step.want)
		}
		if dir := h.Direction("NVDA"); dir != step.want {
			t.Errorf("point %d: Direction() = %q, want %q", i, dir, step.want)
		}
	}
}

func TestHistoryTimestampsNonDecreasing(t *testing.T) {
	h := NewHistory(50)
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	var batch []domain.Quote
	for i := 0; i < 30; i++ {
		batch = append(batch, domain.Quote{
			Symbol:    "AAPL",
			Price:     100 + float64(i%7),
			Timestamp: base.Add(time.Duration(i) * 500 * time.Millisecond),
		})
	}
	h.RecordBatch(batch)

	points := h.HistoryFor("AAPL")
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp.Before(points[i-1].Timestamp) {
			t.Fatalf("point %d timestamp %v precedes point %d timestamp %v",
				i, points[i].Timestamp, i-1, points[i-1].Timestamp)
		}
	}
}

func TestRevisionAdvancesOncePerBatch(t *testing.T) {
	h := NewHistory(100)
	now := time.Now()

	if rev := h.Revision(); rev != 0 {
		t.Fatalf("initial Revision = %d, want 0", rev)
	}

	batch := []domain.Quote{
		{Symbol: "AAPL", Price: 190, Timestamp: now},
		{Symbol: "MSFT", Price: 420, Timestamp: now},
		{Symbol: "NVDA", Price: 880, Timestamp: now},
	}
	h.RecordBatch(batch)

	// Three points, one revision.
	if rev := h.Revision(); rev != 1 {
		t.Errorf("Revision after 3-quote batch = %d, want 1", rev)
	}

	h.RecordBatch(nil)
	if rev := h.Revision(); rev != 1 {
		t.Errorf("Revision after empty batch = %d, want 1 (unchanged)", rev)
	}

	h.RecordBatch(batch)
	if rev := h.Revision(); rev != 2 {
		t.Errorf("Revision after second batch = %d, want 2", rev)
	}
}

func TestHistoryForReturnsCopy(t *testing.T) {
	h := NewHistory(10)
	now := time.Now()
	h.Record("AAPL", 190, now)

	points := h.HistoryFor("AAPL")
	points[0].Price = -1

	if got := h.HistoryFor("AAPL")[0].Price; got != 190 {
		t.Errorf("stored price = %v after caller mutation, want 190", got)
	}
}

func TestHistoryForUnknownSymbol(t *testing.T) {
	h := NewHistory(10)
	if points := h.HistoryFor("ZZZZ"); len(points) != 0 {
		t.Errorf("HistoryFor(unknown) returned %d points, want 0", len(points))
	}
	if dir := h.Direction("ZZZZ"); dir != domain.DirectionFlat {
		t.Errorf("Direction(unknown) = %q, want flat", dir)
	}
}

func BenchmarkRecordBatch(b *testing.B) {
	h := NewHistory(DefaultHistoryCapacity)
	now := time.Now()
	batch := make([]domain.Quote, 10)
	for i := range batch {
		batch[i] = domain.Quote{Symbol: fmt.Sprintf("SYM%d", i), Price: float64(i), Timestamp: now}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.RecordBatch(batch)
	}
}
