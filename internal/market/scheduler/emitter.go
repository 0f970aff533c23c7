package scheduler

import (
	"fmt"

	"papertrade/internal/market/memorystore"

	"go.uber.org/zap"
)

// MultiEmitter forwards every event to each emitter in order. A panicking
// emitter is logged and does not stop the others.
type MultiEmitter struct {
	emitters []Emitter
	logger   *zap.Logger
}

func NewMultiEmitter(logger *zap.Logger, emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters, logger: logger}
}

func (m *MultiEmitter) EmitDelta(q memorystore.Quote) {
	for _, e := range m.emitters {
		m.safe(func() { e.EmitDelta(q) })
	}
}

func (m *MultiEmitter) EmitBulk(quotes []memorystore.Quote) {
	for _, e := range m.emitters {
		m.safe(func() { e.EmitBulk(quotes) })
	}
}

func (m *MultiEmitter) safe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("emitter failed", zap.Error(fmt.Errorf("panic: %v", r)))
		}
	}()
	fn()
}
