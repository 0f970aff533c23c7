package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"papertrade/config"
	"papertrade/internal/ledger"

	"github.com/segmentio/kafka-go"
)

const EventOrderExecuted = "order.executed"

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEvent is the payload published for each committed trade.
type OrderEvent struct {
	Event       string          `json:"event"`
	Order       ledger.Order    `json:"order"`
	Holding     *ledger.Holding `json:"holding"`
	Removed     bool            `json:"removed"`
	RealizedPnL *string         `json:"realizedPnl,omitempty"`
}

// KafkaNotifier publishes executed orders, keyed by user id so one user's
// orders land on one partition in order.
type KafkaNotifier struct {
	writer Writer
}

func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaNotifier(writer Writer) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

var _ ledger.Notifier = (*KafkaNotifier)(nil)

func (n *KafkaNotifier) OrderExecuted(ctx context.Context, trade ledger.Trade) error {
	ev := OrderEvent{
		Event:   EventOrderExecuted,
		Order:   trade.Order,
		Holding: trade.Holding,
		Removed: trade.Removed,
	}
	if trade.RealizedPnL != nil {
		pnl := trade.RealizedPnL.String()
		ev.RealizedPnL = &pnl
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(trade.Order.UserID),
		Value: payload,
		Time:  trade.Order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("publish order %s: %w", trade.Order.ID, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
