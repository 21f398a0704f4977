package market

import (
	"sync"
	"time"

	"tradedesk/internal/domain"
)

// DefaultHistoryCapacity is the per-symbol history bound used when no
// explicit capacity is configured.
const DefaultHistoryCapacity = 500

// ring is a fixed-capacity circular buffer of history points. When full,
// a push evicts the oldest point.
type ring struct {
	buf   []domain.HistoryPoint
	start int
	size  int
}

func (r *ring) push(p domain.HistoryPoint) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = p
		r.size++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

// last returns the most recent point, or false if empty.
func (r *ring) last() (domain.HistoryPoint, bool) {
	if r.size == 0 {
		return domain.HistoryPoint{}, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}

// points returns a copy in insertion order, oldest first.
func (r *ring) points() []domain.HistoryPoint {
	out := make([]domain.HistoryPoint, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// History accumulates a bounded price series per symbol. Points are
// appended in arrival order only; the capacity bound applies to each symbol
// independently. A revision counter advances exactly once per recorded
// batch so renderers can cheaply detect "new data arrived" without
// re-reading on every unrelated state change.
type History struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*ring
	revision uint64
}

// NewHistory creates a history accumulator with the given per-symbol
// capacity. Non-positive capacities fall back to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity, series: make(map[string]*ring)}
}

// Record appends a single point and advances the revision once. It returns
// the derived direction of the new point relative to the previous stored
// price: flat when there is no prior point.
func (h *History) Record(symbol string, price float64, ts time.Time) domain.Direction {
	h.mu.Lock()
	defer h.mu.Unlock()
	dir := h.append(symbol, price, ts)
	h.revision++
	return dir
}

// RecordBatch appends every quote of one inbound event and advances the
// revision exactly once, not once per point, to avoid render storms under
// high-frequency feeds.
func (h *History) RecordBatch(quotes []domain.Quote) {
	if len(quotes) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, q := range quotes {
		h.append(q.Symbol, q.Price, q.Timestamp)
	}
	h.revision++
}

func (h *History) append(symbol string, price float64, ts time.Time) domain.Direction {
	r, ok := h.series[symbol]
	if !ok {
		r = &ring{buf: make([]domain.HistoryPoint, h.capacity)}
		h.series[symbol] = r
	}

	dir := domain.DirectionFlat
	if prev, ok := r.last(); ok {
		switch {
		case price > prev.Price:
			dir = domain.DirectionUp
		case price < prev.Price:
			dir = domain.DirectionDown
		}
	}

	r.push(domain.HistoryPoint{Price: price, Timestamp: ts})
	return dir
}

// HistoryFor returns the stored series for a symbol, oldest first. The
// returned slice is a copy; callers must not assume it aliases internal
// state.
func (h *History) HistoryFor(symbol string) []domain.HistoryPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.series[symbol]
	if !ok {
		return nil
	}
	return r.points()
}

// Direction reports the move of a symbol's most recent point relative to
// the one before it. Symbols with fewer than two points are flat.
func (h *History) Direction(symbol string) domain.Direction {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.series[symbol]
	if !ok || r.size < 2 {
		return domain.DirectionFlat
	}
	latest := r.buf[(r.start+r.size-1)%len(r.buf)]
	prev := r.buf[(r.start+r.size-2)%len(r.buf)]
	switch {
	case latest.Price > prev.Price:
		return domain.DirectionUp
	case latest.Price < prev.Price:
		return domain.DirectionDown
	default:
		return domain.DirectionFlat
	}
}

// Revision returns the batch counter. Consumers compare revisions to decide
// whether to re-read.
func (h *History) Revision() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.revision
}

// Len returns the number of stored points for a symbol.
func (h *History) Len(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.series[symbol]
	if !ok {
		return 0
	}
	return r.size
}
