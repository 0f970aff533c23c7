package memorystore

import (
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryQuoteStore is the snapshot of the instrument universe. Merge is the
// only writer; readers always get copies.
type MemoryQuoteStore struct {
	mu   sync.RWMutex
	data map[string]Quote
}

func NewQuoteStore() *MemoryQuoteStore {
	return &MemoryQuoteStore{
		data: make(map[string]Quote),
	}
}

// Merge overwrites the stored quote for every non-nil result. Nil results
// (failed fetches) leave the stored entry untouched.
//
// The previous close is seeded by the first successful fetch of a session and
// kept from then on; a fetch on a later calendar day than the stored quote
// starts a new session and re-seeds it.
func (s *MemoryQuoteStore) Merge(results map[string]*Quote, now time.Time) MergeResult {
	symbols := make([]string, 0, len(results))
	for sym, q := range results {
		if q != nil {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	for _, sym := range symbols {
		next := results[sym].clone()
		next.Symbol = sym

		prev, ok := s.data[sym]
		if ok && prev.PreviousClose > 0 && sameDay(prev.UpdatedAt, now) {
			next.PreviousClose = prev.PreviousClose
		}
		derive(&next)
		next.UpdatedAt = now

		s.data[sym] = next
		res.Updated = append(res.Updated, next.clone())
		if !ok || prev.LastPrice != next.LastPrice {
			res.Changed = append(res.Changed, next.clone())
		}
	}
	return res
}

// All returns a point-in-time copy of every quote, sorted by symbol.
func (s *MemoryQuoteStore) All() []Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Quote, 0, len(s.data))
	for _, q := range s.data {
		out = append(out, q.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (s *MemoryQuoteStore) Get(symbol string) (Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.data[symbol]
	if !ok {
		return Quote{}, false
	}
	return q.clone(), true
}

// Price returns the last price of symbol if it has ever been fetched.
func (s *MemoryQuoteStore) Price(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.data[symbol]
	return q.LastPrice, ok
}

func (s *MemoryQuoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// derive recomputes change, change percent and circuit bounds from the last
// price and previous close.
func derive(q *Quote) {
	if q.PreviousClose <= 0 {
		// keep the provider's change percent, nothing to derive from
		q.PreviousClose = 0
		q.Change = 0
		q.LowerCircuit = nil
		q.UpperCircuit = nil
		return
	}

	q.Change = round2(q.LastPrice - q.PreviousClose)
	q.ChangePercent = round2((q.LastPrice - q.PreviousClose) / q.PreviousClose * 100)

	lower := round2(q.PreviousClose * (1 - CircuitBand))
	upper := round2(q.PreviousClose * (1 + CircuitBand))
	q.LowerCircuit = &lower
	q.UpperCircuit = &upper
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
