package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforge/internal/core/types"
	"stockforge/internal/domain/catalogs/item"
	"stockforge/internal/domain/ledger"
)

func TestRun_CleanWhenAggregatesMatchLedger(t *testing.T) {
	ctx := context.Background()
	items := item.NewMemoryRepository()
	ledgerSvc := ledger.NewService(ledger.NewMemoryRepository())

	flour := item.NewStockItem(item.KindMaterial, "flour", "kg")
	require.NoError(t, items.Create(ctx, flour))

	flour.CurrentStock = types.NewQuantityFromFloat64(10)
	_, err := ledgerSvc.Append(ctx, ledger.AppendParams{
		Item:          flour,
		Type:          ledger.TypePurchase,
		Quantity:      types.NewQuantityFromFloat64(10),
		PreviousStock: 0,
		UnitCost:      types.MustMoney("2"),
		ActorID:       "buyer-1",
	})
	require.NoError(t, err)
	require.NoError(t, items.UpdateStock(ctx, flour))

	report, err := NewService(items, ledgerSvc).Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.ItemsChecked)
}

func TestRun_ReportsDriftWithoutHealing(t *testing.T) {
	ctx := context.Background()
	items := item.NewMemoryRepository()
	ledgerSvc := ledger.NewService(ledger.NewMemoryRepository())

	flour := item.NewStockItem(item.KindMaterial, "flour", "kg")
	flour.CurrentStock = types.NewQuantityFromFloat64(7)
	require.NoError(t, items.Create(ctx, flour))
	// No ledger entries: the aggregate claims 7 the ledger cannot account for.

	report, err := NewService(items, ledgerSvc).Run(ctx)
	require.NoError(t, err)

	require.Len(t, report.Drifts, 1)
	drift := report.Drifts[0]
	assert.Equal(t, flour.ID, drift.ItemID)
	assert.Equal(t, types.NewQuantityFromFloat64(7), drift.CurrentStock)
	assert.True(t, drift.LedgerStock.IsZero())
	assert.Equal(t, types.NewQuantityFromFloat64(7), drift.Delta)

	// The aggregate is left untouched.
	stored, err := items.GetByID(ctx, flour.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(7), stored.CurrentStock)
}
