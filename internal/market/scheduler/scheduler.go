package scheduler

import (
	"context"
	"fmt"
	"time"

	"papertrade/internal/market/memorystore"
	"papertrade/internal/metrics"

	"go.uber.org/zap"
)

type Fetcher interface {
	FetchQuotes(ctx context.Context, symbols []string) map[string]*memorystore.Quote
}

type Store interface {
	Merge(results map[string]*memorystore.Quote, now time.Time) memorystore.MergeResult
	All() []memorystore.Quote
	Len() int
}

// Emitter receives the events produced by a tick.
type Emitter interface {
	EmitDelta(q memorystore.Quote)
	EmitBulk(quotes []memorystore.Quote)
}

// Scheduler refreshes the snapshot store on a fixed interval. Ticks run on a
// single goroutine and never overlap.
type Scheduler struct {
	fetcher  Fetcher
	store    Store
	emitter  Emitter
	symbols  []string
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(fetcher Fetcher, store Store, emitter Emitter, symbols []string, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		fetcher:  fetcher,
		store:    store,
		emitter:  emitter,
		symbols:  append([]string(nil), symbols...),
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run ticks once immediately and then every interval until ctx is done.
// A tick that outlasts the interval delays the next one; time.Ticker drops
// the missed beats.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		zap.Int("symbols", len(s.symbols)),
		zap.Duration("interval", s.interval))

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one fetch-merge-emit cycle. Panics are logged and swallowed.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			metrics.SchedulerTicks.WithLabelValues("panic").Inc()
			s.logger.Error("scheduler tick failed", zap.Error(fmt.Errorf("panic: %v", r)))
		}
	}()

	results := s.fetcher.FetchQuotes(ctx, s.symbols)
	merged := s.store.Merge(results, s.now())

	for _, q := range merged.Changed {
		s.emitter.EmitDelta(q)
	}

	switch {
	case len(merged.Updated) > 0:
		s.emitter.EmitBulk(merged.Updated)
		metrics.SchedulerTicks.WithLabelValues("ok").Inc()
	case s.store.Len() > 0:
		// provider outage: resend what we have so idle viewers stay in sync
		s.emitter.EmitBulk(s.store.All())
		metrics.SchedulerTicks.WithLabelValues("empty").Inc()
	default:
		metrics.SchedulerTicks.WithLabelValues("empty").Inc()
	}

	s.logger.Debug("tick done",
		zap.Int("requested", len(s.symbols)),
		zap.Int("updated", len(merged.Updated)),
		zap.Int("changed", len(merged.Changed)),
		zap.Duration("took", time.Since(start)))
}
