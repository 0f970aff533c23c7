package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"papertrade/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceSource supplies the live price used by square-off.
type PriceSource interface {
	Price(symbol string) (float64, bool)
}

// Notifier is told about every committed trade.
type Notifier interface {
	OrderExecuted(ctx context.Context, trade Trade) error
}

// Service runs ledger transitions. Transitions on the same (user, symbol)
// are serialized; different keys proceed in parallel.
type Service struct {
	store    Store
	prices   PriceSource
	notifier Notifier
	universe map[string]struct{}
	locks    *keyedMutex
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService builds a ledger. prices and notifier may be nil. An empty
// universe accepts any symbol.
func NewService(store Store, prices PriceSource, notifier Notifier, universe []string, logger *zap.Logger) *Service {
	s := &Service{
		store:    store,
		prices:   prices,
		notifier: notifier,
		locks:    newKeyedMutex(),
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	if len(universe) > 0 {
		s.universe = make(map[string]struct{}, len(universe))
		for _, sym := range universe {
			s.universe[NormalizeSymbol(sym)] = struct{}{}
		}
	}
	return s
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (s *Service) Buy(ctx context.Context, userID, symbol string, qty int64, price decimal.Decimal) (Trade, error) {
	symbol = NormalizeSymbol(symbol)
	trade, err := s.buy(ctx, userID, symbol, qty, price)
	s.finish(ctx, SideBuy, trade, err)
	return trade, err
}

func (s *Service) buy(ctx context.Context, userID, symbol string, qty int64, price decimal.Decimal) (Trade, error) {
	if qty <= 0 {
		return Trade{}, ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return Trade{}, ErrInvalidPrice
	}
	if !s.tradable(symbol) {
		return Trade{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}

	var trade Trade
	err := s.transition(ctx, userID, symbol, func(current *Holding) (Mutation, error) {
		if current != nil && qty > math.MaxInt64-current.Quantity {
			return Mutation{}, fmt.Errorf("%w: holding of %d cannot grow by %d", ErrInvalidQuantity, current.Quantity, qty)
		}

		now := s.now().UTC()
		next := &Holding{
			UserID:    userID,
			Symbol:    symbol,
			Quantity:  qty,
			AvgPrice:  price,
			LastPrice: price,
			UpdatedAt: now,
		}
		if current != nil {
			oldQty := decimal.NewFromInt(current.Quantity)
			addQty := decimal.NewFromInt(qty)
			next.Quantity = current.Quantity + qty
			next.AvgPrice = current.AvgPrice.Mul(oldQty).
				Add(price.Mul(addQty)).
				Div(oldQty.Add(addQty))
		}

		order := s.order(userID, symbol, SideBuy, qty, price, now)
		trade = Trade{Order: order, Holding: next.clone()}
		return Mutation{Holding: next, Order: order}, nil
	})
	if err != nil {
		return Trade{}, err
	}
	return trade, nil
}

func (s *Service) Sell(ctx context.Context, userID, symbol string, qty int64, price decimal.Decimal) (Trade, error) {
	symbol = NormalizeSymbol(symbol)
	trade, err := s.sell(ctx, userID, symbol, qty, price)
	s.finish(ctx, SideSell, trade, err)
	return trade, err
}

func (s *Service) sell(ctx context.Context, userID, symbol string, qty int64, price decimal.Decimal) (Trade, error) {
	if qty <= 0 {
		return Trade{}, ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return Trade{}, ErrInvalidPrice
	}

	var trade Trade
	err := s.transition(ctx, userID, symbol, func(current *Holding) (Mutation, error) {
		return s.reduce(current, userID, symbol, qty, price, &trade)
	})
	if err != nil {
		return Trade{}, err
	}
	return trade, nil
}

// SquareOff sells the whole position at the live price, or at the holding's
// last price when no quote is available.
func (s *Service) SquareOff(ctx context.Context, userID, symbol string) (Trade, error) {
	symbol = NormalizeSymbol(symbol)

	var trade Trade
	err := s.transition(ctx, userID, symbol, func(current *Holding) (Mutation, error) {
		if current == nil {
			return Mutation{}, ErrNoPosition
		}
		price := current.LastPrice
		if s.prices != nil {
			if live, ok := s.prices.Price(symbol); ok && live > 0 {
				price = decimal.NewFromFloat(live)
			}
		}
		if !price.IsPositive() {
			return Mutation{}, ErrInvalidPrice
		}
		return s.reduce(current, userID, symbol, current.Quantity, price, &trade)
	})
	if err != nil {
		trade = Trade{}
	}
	s.finish(ctx, SideSell, trade, err)
	return trade, err
}

func (s *Service) reduce(current *Holding, userID, symbol string, qty int64, price decimal.Decimal, trade *Trade) (Mutation, error) {
	if current == nil {
		return Mutation{}, ErrNoPosition
	}
	if qty > current.Quantity {
		return Mutation{}, fmt.Errorf("%w: have %d, selling %d", ErrInsufficientQuantity, current.Quantity, qty)
	}

	now := s.now().UTC()
	order := s.order(userID, symbol, SideSell, qty, price, now)
	pnl := price.Sub(current.AvgPrice).Mul(decimal.NewFromInt(qty))

	var next *Holding
	if remaining := current.Quantity - qty; remaining > 0 {
		next = current.clone()
		next.Quantity = remaining
		next.LastPrice = price
		next.UpdatedAt = now
	}

	*trade = Trade{Order: order, Removed: next == nil, RealizedPnL: &pnl}
	if next != nil {
		trade.Holding = next.clone()
	}
	return Mutation{Holding: next, Order: order}, nil
}

// Holdings returns the user's open positions sorted by symbol.
func (s *Service) Holdings(ctx context.Context, userID string) ([]Holding, error) {
	holdings, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings, nil
}

// Orders returns the user's orders, newest first.
func (s *Service) Orders(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.store.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) transition(ctx context.Context, userID, symbol string, fn func(current *Holding) (Mutation, error)) error {
	unlock := s.locks.Lock(userID + "\x00" + symbol)
	defer unlock()
	return s.store.Apply(ctx, userID, symbol, fn)
}

func (s *Service) order(userID, symbol string, side Side, qty int64, price decimal.Decimal, at time.Time) Order {
	return Order{
		ID:        s.newID(),
		UserID:    userID,
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		CreatedAt: at,
	}
}

func (s *Service) tradable(symbol string) bool {
	if s.universe == nil {
		return true
	}
	_, ok := s.universe[symbol]
	return ok
}

// finish records the outcome and notifies on success.
func (s *Service) finish(ctx context.Context, side Side, trade Trade, err error) {
	metrics.LedgerTrades.WithLabelValues(string(side), Code(err)).Inc()

	if err != nil {
		if Code(err) == "internal" {
			s.logger.Error("ledger transition failed", zap.String("side", string(side)), zap.Error(err))
		}
		return
	}

	s.logger.Info("order executed",
		zap.String("order_id", trade.Order.ID),
		zap.String("user_id", trade.Order.UserID),
		zap.String("symbol", trade.Order.Symbol),
		zap.String("side", string(side)),
		zap.Int64("quantity", trade.Order.Quantity),
		zap.String("price", trade.Order.Price.String()),
	)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.OrderExecuted(ctx, trade); err != nil {
		s.logger.Warn("order notification failed", zap.String("order_id", trade.Order.ID), zap.Error(err))
	}
}
