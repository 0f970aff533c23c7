package ledger

import (
	"context"
	"sync"
)

// Store persists holdings and orders. Apply must run fn and persist its
// Mutation as one atomic step with respect to other Apply calls on the same
// (userID, symbol). If fn returns an error nothing is written.
type Store interface {
	Apply(ctx context.Context, userID, symbol string, fn func(current *Holding) (Mutation, error)) error
	ListHoldings(ctx context.Context, userID string) ([]Holding, error)
	ListOrders(ctx context.Context, userID string) ([]Order, error)
}

type positionKey struct {
	userID string
	symbol string
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	holdings map[positionKey]Holding
	orders   map[string][]Order // per user, oldest first
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		holdings: make(map[positionKey]Holding),
		orders:   make(map[string][]Order),
	}
}

func (s *MemoryStore) Apply(ctx context.Context, userID, symbol string, fn func(current *Holding) (Mutation, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey{userID, symbol}
	var current *Holding
	if h, ok := s.holdings[key]; ok {
		current = h.clone()
	}

	m, err := fn(current)
	if err != nil {
		return err
	}

	if m.Holding == nil {
		delete(s.holdings, key)
	} else {
		s.holdings[key] = *m.Holding
	}
	s.orders[userID] = append(s.orders[userID], m.Order)
	return nil
}

func (s *MemoryStore) ListHoldings(_ context.Context, userID string) ([]Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Holding, 0)
	for key, h := range s.holdings {
		if key.userID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

// ListOrders returns newest first.
func (s *MemoryStore) ListOrders(_ context.Context, userID string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.orders[userID]
	out := make([]Order, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out, nil
}
