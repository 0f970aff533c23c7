package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"papertrade/internal/market/memorystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu     sync.Mutex
	fn     func(symbols []string) map[string]*memorystore.Quote
	calls  atomic.Int32
	active atomic.Int32
	peak   atomic.Int32
	delay  time.Duration
}

func (f *fakeFetcher) FetchQuotes(ctx context.Context, symbols []string) map[string]*memorystore.Quote {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	if n > f.peak.Load() {
		f.peak.Store(n)
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn(symbols)
}

type recorder struct {
	mu     sync.Mutex
	events []string
	bulks  [][]memorystore.Quote
}

func (r *recorder) EmitDelta(q memorystore.Quote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "delta:"+q.Symbol)
}

func (r *recorder) EmitBulk(quotes []memorystore.Quote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("bulk:%d", len(quotes)))
	r.bulks = append(r.bulks, quotes)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func priced(price float64) func([]string) map[string]*memorystore.Quote {
	return func(symbols []string) map[string]*memorystore.Quote {
		out := make(map[string]*memorystore.Quote, len(symbols))
		for _, s := range symbols {
			out[s] = &memorystore.Quote{Symbol: s, LastPrice: price, PreviousClose: 100}
		}
		return out
	}
}

func allFail(symbols []string) map[string]*memorystore.Quote {
	out := make(map[string]*memorystore.Quote, len(symbols))
	for _, s := range symbols {
		out[s] = nil
	}
	return out
}

// go test -v --run TestTickEmitsDeltasThenBulk
func TestTickEmitsDeltasThenBulk(t *testing.T) {
	rec := &recorder{}
	store := memorystore.NewQuoteStore()
	s := New(&fakeFetcher{fn: priced(101)}, store, rec, []string{"A", "B"}, time.Second, zap.NewNop())

	s.Tick(context.Background())
	assert.Equal(t, []string{"delta:A", "delta:B", "bulk:2"}, rec.snapshot())

	// same prices again: bulk only
	s.Tick(context.Background())
	assert.Equal(t, []string{"delta:A", "delta:B", "bulk:2", "bulk:2"}, rec.snapshot())
}

func TestTickFullOutageRebroadcastsSnapshot(t *testing.T) {
	rec := &recorder{}
	store := memorystore.NewQuoteStore()
	f := &fakeFetcher{fn: priced(101)}
	s := New(f, store, rec, []string{"A", "B", "C"}, time.Second, zap.NewNop())

	s.Tick(context.Background())

	f.mu.Lock()
	f.fn = allFail
	f.mu.Unlock()
	s.Tick(context.Background())

	events := rec.snapshot()
	require.Len(t, events, 5)
	assert.Equal(t, "bulk:3", events[4])
	assert.Equal(t, 101.0, rec.bulks[1][0].LastPrice)
}

func TestTickFullOutageWithEmptyStoreEmitsNothing(t *testing.T) {
	rec := &recorder{}
	s := New(&fakeFetcher{fn: allFail}, memorystore.NewQuoteStore(), rec, []string{"A"}, time.Second, zap.NewNop())

	s.Tick(context.Background())
	assert.Empty(t, rec.snapshot())
}

func TestTickPartialFailureBulkHasOnlySuccesses(t *testing.T) {
	rec := &recorder{}
	store := memorystore.NewQuoteStore()
	symbols := make([]string, 50)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%02d", i)
	}
	f := &fakeFetcher{fn: func(syms []string) map[string]*memorystore.Quote {
		out := priced(120)(syms)
		out["S01"], out["S02"], out["S03"] = nil, nil, nil
		return out
	}}
	s := New(f, store, rec, symbols, time.Second, zap.NewNop())

	s.Tick(context.Background())

	require.Len(t, rec.bulks, 1)
	assert.Len(t, rec.bulks[0], 47)
	assert.Equal(t, 47, store.Len())
}

func TestTickRecoversFromPanic(t *testing.T) {
	rec := &recorder{}
	calls := 0
	f := &fakeFetcher{fn: func(syms []string) map[string]*memorystore.Quote {
		calls++
		if calls == 1 {
			panic("provider adapter bug")
		}
		return priced(99)(syms)
	}}
	s := New(f, memorystore.NewQuoteStore(), rec, []string{"A"}, time.Second, zap.NewNop())

	assert.NotPanics(t, func() { s.Tick(context.Background()) })
	s.Tick(context.Background())
	assert.Equal(t, []string{"delta:A", "bulk:1"}, rec.snapshot())
}

func TestRunNeverOverlapsTicks(t *testing.T) {
	rec := &recorder{}
	f := &fakeFetcher{fn: priced(1), delay: 30 * time.Millisecond}
	s := New(f, memorystore.NewQuoteStore(), rec, []string{"A"}, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	assert.Equal(t, int32(1), f.peak.Load())
	assert.GreaterOrEqual(t, f.calls.Load(), int32(2))
}

type panicky struct{}

func (panicky) EmitDelta(memorystore.Quote)   { panic("delta") }
func (panicky) EmitBulk([]memorystore.Quote) { panic("bulk") }

func TestMultiEmitterIsolatesEmitters(t *testing.T) {
	rec := &recorder{}
	m := NewMultiEmitter(zap.NewNop(), panicky{}, rec)

	m.EmitDelta(memorystore.Quote{Symbol: "A"})
	m.EmitBulk([]memorystore.Quote{{Symbol: "A"}})

	assert.Equal(t, []string{"delta:A", "bulk:1"}, rec.snapshot())
}
