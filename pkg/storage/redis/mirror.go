// Package redis mirrors the live quote snapshot into Redis so that processes
// without a websocket connection can read the latest prices.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"papertrade/config"
	"papertrade/internal/market/memorystore"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ChannelBulk  = "quotes.bulk"
	ChannelDelta = "quotes.delta"

	keyPrefix    = "quote:"
	writeTimeout = 2 * time.Second
)

func QuoteKey(symbol string) string {
	return keyPrefix + symbol
}

// NewClient creates a Redis client and checks the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Mirror writes every bulk update as per-symbol keys and republishes both
// event kinds on pub/sub channels. Failures are logged and swallowed.
type Mirror struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewMirror(client goredis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Mirror {
	return &Mirror{client: client, ttl: ttl, logger: logger}
}

func (m *Mirror) EmitDelta(q memorystore.Quote) {
	payload, err := json.Marshal(q)
	if err != nil {
		m.logger.Error("failed to encode delta", zap.String("symbol", q.Symbol), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := m.client.Publish(ctx, ChannelDelta, payload).Err(); err != nil {
		m.logger.Warn("redis publish failed", zap.String("channel", ChannelDelta), zap.Error(err))
	}
}

func (m *Mirror) EmitBulk(quotes []memorystore.Quote) {
	if len(quotes) == 0 {
		return
	}
	bulk, err := json.Marshal(quotes)
	if err != nil {
		m.logger.Error("failed to encode bulk", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	pipe := m.client.Pipeline()
	for _, q := range quotes {
		payload, err := json.Marshal(q)
		if err != nil {
			continue
		}
		pipe.Set(ctx, QuoteKey(q.Symbol), payload, m.ttl)
	}
	pipe.Publish(ctx, ChannelBulk, bulk)

	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("redis mirror write failed", zap.Int("quotes", len(quotes)), zap.Error(err))
	}
}

// Quote reads one mirrored quote back.
func (m *Mirror) Quote(ctx context.Context, symbol string) (memorystore.Quote, error) {
	var q memorystore.Quote
	raw, err := m.client.Get(ctx, QuoteKey(symbol)).Bytes()
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal(raw, &q); err != nil {
		return q, fmt.Errorf("decode mirrored quote %s: %w", symbol, err)
	}
	return q, nil
}
