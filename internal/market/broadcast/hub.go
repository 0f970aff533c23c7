package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"papertrade/internal/market/memorystore"
	"papertrade/internal/metrics"

	"go.uber.org/zap"
)

// Subscriber is one connected viewer. Enqueue must not block.
type Subscriber interface {
	ID() string
	Enqueue(msg []byte) bool
	Close()
}

type SnapshotSource interface {
	All() []memorystore.Quote
}

// Hub fans market data out to subscribers. Sends are fire-and-forget: the hub
// keeps no per-subscriber state beyond membership.
type Hub struct {
	mu     sync.RWMutex
	subs   map[Subscriber]struct{}
	store  SnapshotSource
	logger *zap.Logger
	now    func() time.Time
}

func NewHub(store SnapshotSource, logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[Subscriber]struct{}),
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Register adds sub and sends it the current snapshot first. The snapshot is
// queued under the write lock so no delta can overtake it.
func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		return
	}
	h.sendSnapshot(sub)
	h.subs[sub] = struct{}{}
	metrics.BroadcastSubscribers.Inc()

	h.logger.Debug("subscriber joined", zap.String("id", sub.ID()), zap.Int("subscribers", len(h.subs)))
}

// Unregister removes and closes sub. Safe to call more than once.
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}
	metrics.BroadcastSubscribers.Dec()
	sub.Close()

	h.logger.Debug("subscriber left", zap.String("id", sub.ID()), zap.Int("subscribers", n))
}

// Resync sends sub a fresh full snapshot. Like Register it holds the write
// lock so no delta is queued between reading the store and enqueueing.
func (h *Hub) Resync(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	h.sendSnapshot(sub)
}

func (h *Hub) EmitDelta(q memorystore.Quote) {
	h.broadcast(Event{Type: EventDelta, Data: q})
}

func (h *Hub) EmitBulk(quotes []memorystore.Quote) {
	if len(quotes) == 0 {
		return
	}
	h.broadcast(Event{Type: EventBulk, Data: quotes})
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) broadcast(ev Event) {
	msg, ok := h.encode(ev)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		sub.Enqueue(msg)
	}
}

func (h *Hub) sendSnapshot(sub Subscriber) {
	quotes := h.store.All()
	if len(quotes) == 0 {
		return
	}
	if msg, ok := h.encode(Event{Type: EventSnapshot, Data: quotes}); ok {
		sub.Enqueue(msg)
	}
}

func (h *Hub) encode(ev Event) ([]byte, bool) {
	ev.Timestamp = h.now().UTC()
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return nil, false
	}
	return msg, true
}
