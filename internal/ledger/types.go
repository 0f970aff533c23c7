package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Holding is a user's open position in one instrument. Quantity is always
// positive; a position that reaches zero is removed.
type Holding struct {
	UserID    string          `json:"userId"`
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	AvgPrice  decimal.Decimal `json:"avgPrice"`
	LastPrice decimal.Decimal `json:"lastPrice"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Order is an executed trade. Orders are never modified once written.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Trade is the outcome of one accepted transition.
type Trade struct {
	Order   Order    `json:"order"`
	Holding *Holding `json:"holding"`
	Removed bool     `json:"removed"`

	// set for sells only: (price - avgPrice) * quantity
	RealizedPnL *decimal.Decimal `json:"realizedPnl,omitempty"`
}

// Mutation is what a transition asks the store to persist atomically.
// Holding nil means the position is deleted.
type Mutation struct {
	Holding *Holding
	Order   Order
}

func (h Holding) clone() *Holding {
	return &h
}
