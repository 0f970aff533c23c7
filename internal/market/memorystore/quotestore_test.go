package memorystore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 16, 9, 15, 0, 0, time.UTC)

func fetched(sym string, last, prevClose float64) *Quote {
	return &Quote{Symbol: sym, Name: sym, LastPrice: last, PreviousClose: prevClose, Volume: 100}
}

// go test -v --run TestMergeDerivesFields
func TestMergeDerivesFields(t *testing.T) {
	s := NewQuoteStore()

	res := s.Merge(map[string]*Quote{"INFY.NS": fetched("INFY.NS", 105, 100)}, t0)
	require.Len(t, res.Updated, 1)
	require.Len(t, res.Changed, 1)

	q, ok := s.Get("INFY.NS")
	require.True(t, ok)
	assert.Equal(t, 5.0, q.Change)
	assert.Equal(t, 5.0, q.ChangePercent)
	require.NotNil(t, q.LowerCircuit)
	require.NotNil(t, q.UpperCircuit)
	assert.Equal(t, 95.0, *q.LowerCircuit)
	assert.Equal(t, 105.0, *q.UpperCircuit)
	assert.Equal(t, t0, q.UpdatedAt)
}

func TestMergeKeepsStoredPreviousClose(t *testing.T) {
	s := NewQuoteStore()
	s.Merge(map[string]*Quote{"TCS.NS": fetched("TCS.NS", 100, 100)}, t0)

	// provider sends a different previous close later the same day
	s.Merge(map[string]*Quote{"TCS.NS": fetched("TCS.NS", 110, 90)}, t0.Add(10*time.Second))

	q, _ := s.Get("TCS.NS")
	assert.Equal(t, 100.0, q.PreviousClose)
	assert.Equal(t, 10.0, q.Change)
	assert.Equal(t, 10.0, q.ChangePercent)

	// next session re-seeds
	s.Merge(map[string]*Quote{"TCS.NS": fetched("TCS.NS", 121, 110)}, t0.Add(24*time.Hour))
	q, _ = s.Get("TCS.NS")
	assert.Equal(t, 110.0, q.PreviousClose)
	assert.Equal(t, 10.0, q.ChangePercent)
}

func TestMergeWithoutPreviousClose(t *testing.T) {
	s := NewQuoteStore()
	in := fetched("ITC.NS", 410, 0)
	in.ChangePercent = 1.25

	s.Merge(map[string]*Quote{"ITC.NS": in}, t0)

	q, _ := s.Get("ITC.NS")
	assert.Nil(t, q.LowerCircuit)
	assert.Nil(t, q.UpperCircuit)
	assert.Equal(t, 0.0, q.Change)
	assert.Equal(t, 1.25, q.ChangePercent)
}

// 50 requested, 47 succeed: the 3 failures keep their previous entries.
func TestMergePartialTick(t *testing.T) {
	s := NewQuoteStore()

	first := make(map[string]*Quote, 50)
	for i := 0; i < 50; i++ {
		sym := fmt.Sprintf("S%02d", i)
		first[sym] = fetched(sym, 100, 100)
	}
	s.Merge(first, t0)

	second := make(map[string]*Quote, 50)
	for i := 0; i < 50; i++ {
		sym := fmt.Sprintf("S%02d", i)
		if i < 3 {
			second[sym] = nil
			continue
		}
		second[sym] = fetched(sym, 101, 100)
	}
	res := s.Merge(second, t0.Add(10*time.Second))

	assert.Len(t, res.Updated, 47)
	assert.Len(t, res.Changed, 47)
	assert.Equal(t, 50, s.Len())

	stale, _ := s.Get("S00")
	assert.Equal(t, 100.0, stale.LastPrice)
	assert.Equal(t, t0, stale.UpdatedAt)

	fresh, _ := s.Get("S10")
	assert.Equal(t, 101.0, fresh.LastPrice)
}

func TestMergeUnchangedPriceIsNotADelta(t *testing.T) {
	s := NewQuoteStore()
	s.Merge(map[string]*Quote{"SBIN.NS": fetched("SBIN.NS", 800, 790)}, t0)

	res := s.Merge(map[string]*Quote{"SBIN.NS": fetched("SBIN.NS", 800, 790)}, t0.Add(time.Second))
	assert.Len(t, res.Updated, 1)
	assert.Empty(t, res.Changed)
}

func TestAllReturnsCopies(t *testing.T) {
	s := NewQuoteStore()
	s.Merge(map[string]*Quote{
		"B": fetched("B", 10, 10),
		"A": fetched("A", 20, 20),
	}, t0)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Symbol)

	all[0].LastPrice = -1
	*all[0].UpperCircuit = -1

	again, _ := s.Get("A")
	assert.Equal(t, 20.0, again.LastPrice)
	assert.Equal(t, 21.0, *again.UpperCircuit)

	// Merge must not keep a reference to the caller's quote either
	in := fetched("C", 5, 5)
	s.Merge(map[string]*Quote{"C": in}, t0)
	in.LastPrice = 99
	c, _ := s.Get("C")
	assert.Equal(t, 5.0, c.LastPrice)
}

func TestPrice(t *testing.T) {
	s := NewQuoteStore()
	_, ok := s.Price("X")
	assert.False(t, ok)

	s.Merge(map[string]*Quote{"X": fetched("X", 12.5, 12)}, t0)
	p, ok := s.Price("X")
	assert.True(t, ok)
	assert.Equal(t, 12.5, p)
}

// go test -race -v --run TestConcurrentReadersAndWriter
func TestConcurrentReadersAndWriter(t *testing.T) {
	s := NewQuoteStore()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Merge(map[string]*Quote{"X": fetched("X", float64(100+i), 100)}, t0)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = s.All()
				_, _ = s.Price("X")
			}
		}()
	}
	wg.Wait()

	p, _ := s.Price("X")
	assert.Equal(t, 299.0, p)
}
