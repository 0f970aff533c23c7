package postgres

import (
	"context"
	"errors"
	"fmt"

	"papertrade/internal/ledger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ ledger.Store = (*PostgresClient)(nil)

// Apply locks the holding row, runs fn and writes its mutation in one transaction.
func (p *PostgresClient) Apply(ctx context.Context, userID, symbol string, fn func(current *ledger.Holding) (ledger.Mutation, error)) error {
	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current *ledger.Holding

		var rec HoldingRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND symbol = ?", userID, symbol).
			Take(&rec).Error
		switch {
		case err == nil:
			h := rec.toHolding()
			current = &h
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("load holding: %w", err)
		}

		m, err := fn(current)
		if err != nil {
			return err
		}

		if m.Holding == nil {
			if current != nil {
				if err := tx.Where("user_id = ? AND symbol = ?", userID, symbol).
					Delete(&HoldingRecord{}).Error; err != nil {
					return fmt.Errorf("delete holding: %w", err)
				}
			}
		} else {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "user_id"},
					{Name: "symbol"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"quantity", "avg_price", "last_price", "updated_at"}),
			}).Create(toHoldingRecord(*m.Holding)).Error
			if err != nil {
				return fmt.Errorf("upsert holding: %w", err)
			}
		}

		if err := tx.Create(toOrderRecord(m.Order)).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
}

func (p *PostgresClient) ListHoldings(ctx context.Context, userID string) ([]ledger.Holding, error) {
	var records []HoldingRecord
	err := p.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("symbol").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]ledger.Holding, 0, len(records))
	for _, r := range records {
		out = append(out, r.toHolding())
	}
	return out, nil
}

// ListOrders returns newest first.
func (p *PostgresClient) ListOrders(ctx context.Context, userID string) ([]ledger.Order, error) {
	var records []OrderRecord
	err := p.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("seq DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]ledger.Order, 0, len(records))
	for _, r := range records {
		out = append(out, r.toOrder())
	}
	return out, nil
}
