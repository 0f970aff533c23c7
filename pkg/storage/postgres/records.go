package postgres

import (
	"time"

	"papertrade/internal/ledger"

	"github.com/shopspring/decimal"
)

// HoldingRecord is one open position. Zero-quantity rows are never written.
type HoldingRecord struct {
	ID uint `gorm:"primaryKey"`

	UserID string `gorm:"type:text;not null;index:idx_holding_user_symbol,unique"`
	Symbol string `gorm:"type:text;not null;index:idx_holding_user_symbol,unique"`

	Quantity  int64           `gorm:"not null"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric;not null"`
	LastPrice decimal.Decimal `gorm:"type:numeric;not null"`

	UpdatedAt time.Time `gorm:"not null"`
}

func (HoldingRecord) TableName() string {
	return "holding"
}

// OrderRecord is append-only. Seq breaks ties between orders with equal timestamps.
type OrderRecord struct {
	Seq     uint   `gorm:"primaryKey;autoIncrement"`
	OrderID string `gorm:"type:varchar(36);not null;uniqueIndex"`

	UserID   string          `gorm:"type:text;not null;index:idx_order_user_created"`
	Symbol   string          `gorm:"type:text;not null"`
	Side     string          `gorm:"type:varchar(4);not null"`
	Quantity int64           `gorm:"not null"`
	Price    decimal.Decimal `gorm:"type:numeric;not null"`

	CreatedAt time.Time `gorm:"not null;index:idx_order_user_created"`
}

func (OrderRecord) TableName() string {
	return "order_record"
}

func toHoldingRecord(h ledger.Holding) *HoldingRecord {
	return &HoldingRecord{
		UserID:    h.UserID,
		Symbol:    h.Symbol,
		Quantity:  h.Quantity,
		AvgPrice:  h.AvgPrice,
		LastPrice: h.LastPrice,
		UpdatedAt: h.UpdatedAt,
	}
}

func (r HoldingRecord) toHolding() ledger.Holding {
	return ledger.Holding{
		UserID:    r.UserID,
		Symbol:    r.Symbol,
		Quantity:  r.Quantity,
		AvgPrice:  r.AvgPrice,
		LastPrice: r.LastPrice,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toOrderRecord(o ledger.Order) *OrderRecord {
	return &OrderRecord{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Quantity:  o.Quantity,
		Price:     o.Price,
		CreatedAt: o.CreatedAt,
	}
}

func (r OrderRecord) toOrder() ledger.Order {
	return ledger.Order{
		ID:        r.OrderID,
		UserID:    r.UserID,
		Symbol:    r.Symbol,
		Side:      ledger.Side(r.Side),
		Quantity:  r.Quantity,
		Price:     r.Price,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
