package watchlist

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"tradedesk/internal/domain"
)

// fakeBackend records calls and fails on demand.
type fakeBackend struct {
	items      []domain.WatchlistItem
	loadErr    error
	addErr     error
	removeErr  error
	addCalls   []string
	delCalls   []string
	loadCalled int
}

func (f *fakeBackend) GetWatchlist(ctx context.Context) ([]domain.WatchlistItem, error) {
	f.loadCalled++
	return f.items, f.loadErr
}

func (f *fakeBackend) AddTicker(ctx context.Context, symbol string) (domain.WatchlistItem, error) {
	f.addCalls = append(f.addCalls, symbol)
	return domain.WatchlistItem{Symbol: symbol}, f.addErr
}

func (f *fakeBackend) RemoveTicker(ctx context.Context, symbol string) error {
	f.delCalls = append(f.delCalls, symbol)
	return f.removeErr
}

func newTestController(b *fakeBackend) *Controller {
	return NewController(b, slog.New(slog.DiscardHandler))
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  googl  ", "GOOGL"},
		{"tsla", "TSLA"},
		{"AAPL", "AAPL"},
		{"   ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddNormalizesAndConfirms(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)

	if !c.Add(context.Background(), "  googl  ") {
		t.Fatal("Add returned false, want true")
	}
	if got := c.Symbols(); !reflect.DeepEqual(got, []string{"GOOGL"}) {
		t.Errorf("Symbols = %v, want [GOOGL]", got)
	}
	if !reflect.DeepEqual(b.addCalls, []string{"GOOGL"}) {
		t.Errorf("backend saw %v, want [GOOGL]", b.addCalls)
	}
}

func TestAddRejectsEmptyAndDuplicate(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)

	if c.Add(context.Background(), "   ") {
		t.Error("Add(blank) = true, want rejected")
	}
	c.Add(context.Background(), "AAPL")
	if c.Add(context.Background(), "aapl") {
		t.Error("Add(duplicate) = true, want rejected")
	}

	// Rejections must not reach the network.
	if len(b.addCalls) != 1 {
		t.Errorf("backend add calls = %v, want exactly one", b.addCalls)
	}
	if got := c.Symbols(); !reflect.DeepEqual(got, []string{"AAPL"}) {
		t.Errorf("Symbols = %v, want [AAPL]", got)
	}
}

func TestAddRollsBackOnServerRejection(t *testing.T) {
	b := &fakeBackend{addErr: errors.New("ticker not tradable")}
	c := newTestController(b)

	if c.Add(context.Background(), "TSLA") {
		t.Error("Add = true despite server rejection")
	}
	// The optimistic entry must be gone: it disappears silently.
	if c.Contains("TSLA") {
		t.Error("TSLA still present after rejected add")
	}
	if got := c.Symbols(); len(got) != 0 {
		t.Errorf("Symbols = %v, want empty after rollback", got)
	}
}

func TestRemoveRestoresOnServerRejection(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)
	c.Add(context.Background(), "AAPL")
	c.Add(context.Background(), "MSFT")
	c.Add(context.Background(), "NVDA")

	b.removeErr = errors.New("backend down")
	if c.Remove(context.Background(), "MSFT") {
		t.Error("Remove = true despite server rejection")
	}

	// Restored by appending; original index is not preserved.
	if got := c.Symbols(); !reflect.DeepEqual(got, []string{"AAPL", "NVDA", "MSFT"}) {
		t.Errorf("Symbols = %v, want [AAPL NVDA MSFT]", got)
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)

	if !c.Remove(context.Background(), "ZZZZ") {
		t.Error("Remove(missing) = false, want true")
	}
	if len(b.delCalls) != 0 {
		t.Errorf("backend delete calls = %v, want none", b.delCalls)
	}
}

func TestRemoveSuccess(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)
	c.Add(context.Background(), "AAPL")
	c.Add(context.Background(), "MSFT")

	if !c.Remove(context.Background(), "aapl") {
		t.Fatal("Remove = false, want true")
	}
	if got := c.Symbols(); !reflect.DeepEqual(got, []string{"MSFT"}) {
		t.Errorf("Symbols = %v, want [MSFT]", got)
	}
	if !reflect.DeepEqual(b.delCalls, []string{"AAPL"}) {
		t.Errorf("backend saw deletes %v, want [AAPL]", b.delCalls)
	}
}

func TestLoadReplacesSetAndDedupes(t *testing.T) {
	b := &fakeBackend{items: []domain.WatchlistItem{
		{Symbol: "aapl"}, {Symbol: "MSFT"}, {Symbol: "AAPL"},
	}}
	c := newTestController(b)
	c.Add(context.Background(), "OLD")

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Symbols(); !reflect.DeepEqual(got, []string{"AAPL", "MSFT"}) {
		t.Errorf("Symbols = %v, want [AAPL MSFT]", got)
	}
}

func TestLoadFailureKeepsCurrentSet(t *testing.T) {
	b := &fakeBackend{loadErr: errors.New("503")}
	c := newTestController(b)
	c.Add(context.Background(), "AAPL")

	if err := c.Load(context.Background()); err == nil {
		t.Fatal("Load = nil error, want failure")
	}
	if got := c.Symbols(); !reflect.DeepEqual(got, []string{"AAPL"}) {
		t.Errorf("Symbols = %v after failed load, want [AAPL]", got)
	}
}
