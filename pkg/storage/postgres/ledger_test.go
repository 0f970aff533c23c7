package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"papertrade/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// go test -v --run TestLedgerOnGorm
func TestLedgerOnGorm(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)
	svc := ledger.NewService(client, nil, nil, nil, zap.NewNop())

	_, err := svc.Buy(ctx, "u1", "X", 10, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = svc.Buy(ctx, "u1", "X", 5, decimal.NewFromInt(130))
	require.NoError(t, err)

	holdings, err := svc.Holdings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(15), holdings[0].Quantity)
	assert.True(t, decimal.NewFromInt(110).Equal(holdings[0].AvgPrice), holdings[0].AvgPrice.String())

	trade, err := svc.Sell(ctx, "u1", "X", 15, decimal.NewFromInt(120))
	require.NoError(t, err)
	assert.True(t, trade.Removed)
	assert.True(t, decimal.NewFromInt(150).Equal(*trade.RealizedPnL))

	holdings, err = svc.Holdings(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, holdings)

	var rows int64
	require.NoError(t, client.DB.Table("holding").Count(&rows).Error)
	assert.Zero(t, rows)

	orders, err := svc.Orders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, ledger.SideSell, orders[0].Side)
	assert.Equal(t, ledger.SideBuy, orders[2].Side)
	assert.Equal(t, trade.Order.ID, orders[0].ID)
}

func TestApplyRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)
	svc := ledger.NewService(client, nil, nil, nil, zap.NewNop())

	_, err := svc.Sell(ctx, "u1", "X", 5, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ledger.ErrNoPosition)

	_, err = svc.Buy(ctx, "u1", "X", 5, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = svc.Sell(ctx, "u1", "X", 6, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ledger.ErrInsufficientQuantity)

	orders, err := client.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	boom := errors.New("boom")
	err = client.Apply(ctx, "u1", "X", func(current *ledger.Holding) (ledger.Mutation, error) {
		require.NotNil(t, current)
		return ledger.Mutation{}, boom
	})
	assert.ErrorIs(t, err, boom)

	holdings, err := client.ListHoldings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(5), holdings[0].Quantity)
}

func TestListOrdersTieBreak(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)
	at := time.Date(2026, 10, 16, 9, 15, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		qty := int64(i + 1)
		err := client.Apply(ctx, "u1", "X", func(current *ledger.Holding) (ledger.Mutation, error) {
			h := ledger.Holding{UserID: "u1", Symbol: "X", Quantity: qty, AvgPrice: decimal.NewFromInt(1), LastPrice: decimal.NewFromInt(1), UpdatedAt: at}
			if current != nil {
				h.Quantity += current.Quantity
			}
			return ledger.Mutation{
				Holding: &h,
				Order:   ledger.Order{ID: id, UserID: "u1", Symbol: "X", Side: ledger.SideBuy, Quantity: qty, Price: decimal.NewFromInt(1), CreatedAt: at},
			}, nil
		})
		require.NoError(t, err)
	}

	orders, err := client.ListOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{orders[0].ID, orders[1].ID, orders[2].ID})

	holdings, err := client.ListHoldings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(6), holdings[0].Quantity)
}
