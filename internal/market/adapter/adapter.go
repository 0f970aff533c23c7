// Package adapter fetches quotes for the instrument universe, isolating
// failures per symbol.
package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"papertrade/internal/market/memorystore"
	"papertrade/internal/metrics"
	"papertrade/pkg/quote"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// QuoteClient is the provider capability the adapter needs.
// *quote.RESTClient satisfies it.
type QuoteClient interface {
	GetQuote(ctx context.Context, symbol string) (*quote.Quote, error)
}

type Adapter struct {
	client      QuoteClient
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

func New(client QuoteClient, concurrency int, timeout time.Duration, logger *zap.Logger) *Adapter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Adapter{
		client:      client,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

// FetchQuotes returns an entry for every requested symbol. A nil value means
// the quote was unavailable this time (timeout, bad payload, missing price).
func (a *Adapter) FetchQuotes(ctx context.Context, symbols []string) map[string]*memorystore.Quote {
	results := make(map[string]*memorystore.Quote, len(symbols))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for _, symbol := range symbols {
		symbol := symbol // per-iteration copy; go.mod targets go1.21 loop semantics
		g.Go(func() error {
			q, err := a.fetchOne(ctx, symbol)
			if err != nil {
				metrics.QuoteFetchFailures.Inc()
				a.logger.Warn("quote unavailable", zap.String("symbol", symbol), zap.Error(err))
			}

			mu.Lock()
			results[symbol] = q
			mu.Unlock()
			return nil // one symbol never cancels the others
		})
	}
	_ = g.Wait()

	return results
}

func (a *Adapter) fetchOne(ctx context.Context, symbol string) (q *memorystore.Quote, err error) {
	defer func() {
		if r := recover(); r != nil {
			q, err = nil, fmt.Errorf("panic fetching quote: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("empty quote")
	}

	return &memorystore.Quote{
		Symbol:        symbol,
		Name:          raw.DisplayName,
		LastPrice:     raw.LastPrice,
		PreviousClose: raw.PreviousClose,
		ChangePercent: raw.ChangePercent,
		Volume:        raw.Volume,
		MarketCap:     raw.MarketCap,
	}, nil
}
