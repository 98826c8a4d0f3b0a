package production

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/tx"
	"stockforge/internal/core/types"
	"stockforge/internal/domain/catalogs/item"
	"stockforge/internal/domain/ledger"
)

type fixture struct {
	svc     *Service
	items   *item.MemoryRepository
	ledger  *ledger.Service
	product *item.StockItem
	flour   *item.StockItem
	sugar   *item.StockItem
}

// newFixture seeds a product whose recipe takes 2 flour and 1 sugar per
// unit, with 100 flour at avg cost 2 and 50 sugar at avg cost 4 in stock.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	items := item.NewMemoryRepository()
	ledgerSvc := ledger.NewService(ledger.NewMemoryRepository())

	product := item.NewStockItem(item.KindProduct, "bread", "pcs")
	flour := item.NewStockItem(item.KindMaterial, "flour", "kg")
	flour.CurrentStock = types.NewQuantityFromFloat64(100)
	flour.AverageCost = types.MustMoney("2")
	sugar := item.NewStockItem(item.KindMaterial, "sugar", "kg")
	sugar.CurrentStock = types.NewQuantityFromFloat64(50)
	sugar.AverageCost = types.MustMoney("4")

	for _, it := range []*item.StockItem{product, flour, sugar} {
		require.NoError(t, items.Create(ctx, it))
	}
	require.NoError(t, items.SaveRecipe(ctx, product.ID, []item.RecipeLine{
		{ProductID: product.ID, LineNo: 1, MaterialID: flour.ID, QuantityPerUnit: types.NewQuantityFromFloat64(2), Unit: "kg"},
		{ProductID: product.ID, LineNo: 2, MaterialID: sugar.ID, QuantityPerUnit: types.NewQuantityFromFloat64(1), Unit: "kg"},
	}))

	return &fixture{
		svc:     NewService(NewMemoryRepository(), items, ledgerSvc, &tx.MockManager{}),
		items:   items,
		ledger:  ledgerSvc,
		product: product,
		flour:   flour,
		sugar:   sugar,
	}
}

func (f *fixture) stock(t *testing.T, itemID id.ID) *item.StockItem {
	t.Helper()
	it, err := f.items.GetByID(context.Background(), itemID)
	require.NoError(t, err)
	return it
}

func TestCreateBatch_ConsumesMaterialsAndCostsProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 10 units: 20 flour @ 2 = 40, 10 sugar @ 4 = 40, total 80, unit 8.
	batch, err := f.svc.CreateBatch(ctx, f.product.ID, types.NewQuantityFromFloat64(10), "run 1", "operator-1")
	require.NoError(t, err)

	assert.Equal(t, StatusActive, batch.Status())
	assert.True(t, batch.TotalCost.Equal(types.MustMoney("80")), "total = %s", batch.TotalCost)
	assert.True(t, batch.UnitCost.Equal(types.MustMoney("8")), "unit = %s", batch.UnitCost)
	require.Len(t, batch.MaterialCosts, 2)
	assert.True(t, batch.MaterialCosts[0].UnitCost.Equal(types.MustMoney("2")))
	assert.True(t, batch.MaterialCosts[1].UnitCost.Equal(types.MustMoney("4")))

	assert.Equal(t, types.NewQuantityFromFloat64(80), f.stock(t, f.flour.ID).CurrentStock)
	assert.Equal(t, types.NewQuantityFromFloat64(40), f.stock(t, f.sugar.ID).CurrentStock)

	product := f.stock(t, f.product.ID)
	assert.Equal(t, types.NewQuantityFromFloat64(10), product.CurrentStock)
	assert.True(t, product.AverageCost.Equal(types.MustMoney("8")), "avg = %s", product.AverageCost)

	entries, err := f.ledger.ListByBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, ledger.TypeProduction, e.Type)
	}
}

func TestCreateBatch_ShortageFailsWholeBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 60 units need 120 flour and 60 sugar; both lines are short.
	_, err := f.svc.CreateBatch(ctx, f.product.ID, types.NewQuantityFromFloat64(60), "", "operator-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientMaterial))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	shortages, ok := appErr.Details["shortages"].([]apperror.Shortage)
	require.True(t, ok)
	assert.Len(t, shortages, 2)

	// Nothing moved.
	assert.Equal(t, types.NewQuantityFromFloat64(100), f.stock(t, f.flour.ID).CurrentStock)
	assert.Equal(t, types.NewQuantityFromFloat64(50), f.stock(t, f.sugar.ID).CurrentStock)
	assert.True(t, f.stock(t, f.product.ID).CurrentStock.IsZero())
}

func TestCreateBatch_RejectsMaterialAsOutput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBatch(context.Background(), f.flour.ID, types.NewQuantityFromFloat64(1), "", "operator-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestReverseBatch_RestoresProportionallyAtFrozenCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.product.ID, types.NewQuantityFromFloat64(10), "", "operator-1")
	require.NoError(t, err)

	// Material cost drifts after production; reversal must ignore it.
	flour := f.stock(t, f.flour.ID)
	flour.AverageCost = types.MustMoney("3")
	require.NoError(t, f.items.UpdateStock(ctx, flour))

	res, err := f.svc.ReverseBatch(ctx, batch.ID, types.NewQuantityFromFloat64(4), "defect", "operator-2")
	require.NoError(t, err)

	assert.Equal(t, StatusPartiallyClosed, res.Batch.Status())
	assert.Equal(t, types.NewQuantityFromFloat64(4), res.Batch.ReversedQuantity)

	// 40% of 20 flour and 10 sugar come back.
	restoredFlour := f.stock(t, f.flour.ID)
	assert.Equal(t, types.NewQuantityFromFloat64(88), restoredFlour.CurrentStock)
	// 80 kg at 3 plus 8 kg at frozen 2: (240+16)/88.
	assert.True(t, restoredFlour.AverageCost.Round(4).Equal(types.MustMoney("2.9091")),
		"avg = %s", restoredFlour.AverageCost)

	assert.Equal(t, types.NewQuantityFromFloat64(44), f.stock(t, f.sugar.ID).CurrentStock)
	assert.Equal(t, types.NewQuantityFromFloat64(6), f.stock(t, f.product.ID).CurrentStock)
}

func TestReverseAndWaste_ShareBudgetUntilClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.product.ID, types.NewQuantityFromFloat64(10), "", "operator-1")
	require.NoError(t, err)

	_, err = f.svc.ReverseBatch(ctx, batch.ID, types.NewQuantityFromFloat64(4), "", "operator-1")
	require.NoError(t, err)

	res, err := f.svc.WasteBatch(ctx, batch.ID, types.NewQuantityFromFloat64(3), "spoiled", "operator-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyClosed, res.Batch.Status())

	// Waste removes finished goods but restores no material.
	assert.Equal(t, types.NewQuantityFromFloat64(3), f.stock(t, f.product.ID).CurrentStock)
	assert.Equal(t, types.NewQuantityFromFloat64(88), f.stock(t, f.flour.ID).CurrentStock)

	res, err = f.svc.ReverseBatch(ctx, batch.ID, types.NewQuantityFromFloat64(3), "", "operator-1")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, res.Batch.Status())
	assert.Equal(t, types.NewQuantityFromFloat64(7), res.Batch.ReversedQuantity)
	assert.Equal(t, types.NewQuantityFromFloat64(3), res.Batch.WastedQuantity)

	_, err = f.svc.ReverseBatch(ctx, batch.ID, types.NewQuantityFromFloat64(1), "", "operator-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeAlreadyClosed))
}

func TestReverseBatch_OverBudgetRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.product.ID, types.NewQuantityFromFloat64(10), "", "operator-1")
	require.NoError(t, err)

	_, err = f.svc.WasteBatch(ctx, batch.ID, types.NewQuantityFromFloat64(6), "", "operator-1")
	require.NoError(t, err)

	_, err = f.svc.ReverseBatch(ctx, batch.ID, types.NewQuantityFromFloat64(5), "", "operator-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeOverReversal))
}

func TestReverseBatch_BlockedWhenFinishedGoodsGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.product.ID, types.NewQuantityFromFloat64(10), "", "operator-1")
	require.NoError(t, err)

	// Finished goods leave stock outside the batch's control.
	product := f.stock(t, f.product.ID)
	product.CurrentStock = types.NewQuantityFromFloat64(2)
	require.NoError(t, f.items.UpdateStock(ctx, product))

	_, err = f.svc.ReverseBatch(ctx, batch.ID, types.NewQuantityFromFloat64(5), "", "operator-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeCannotReverse))

	adv, err := f.svc.CanReverse(ctx, batch.ID)
	require.NoError(t, err)
	assert.True(t, adv.CanReverse)

	product = f.stock(t, f.product.ID)
	product.CurrentStock = 0
	require.NoError(t, f.items.UpdateStock(ctx, product))

	adv, err = f.svc.CanReverse(ctx, batch.ID)
	require.NoError(t, err)
	assert.False(t, adv.CanReverse)
	assert.NotEmpty(t, adv.Reason)
}

func TestWasteBatch_MarksProductEntryReversedAtClosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batch, err := f.svc.CreateBatch(ctx, f.product.ID, types.NewQuantityFromFloat64(10), "", "operator-1")
	require.NoError(t, err)

	_, err = f.svc.WasteBatch(ctx, batch.ID, types.NewQuantityFromFloat64(10), "flood", "operator-1")
	require.NoError(t, err)

	entries, err := f.ledger.ListByBatch(ctx, batch.ID)
	require.NoError(t, err)

	var productOriginal *ledger.Adjustment
	for _, e := range entries {
		if e.Type == ledger.TypeProduction && e.ItemID == f.product.ID {
			productOriginal = e
		}
	}
	require.NotNil(t, productOriginal)
	assert.True(t, productOriginal.IsReversed)
	require.NotNil(t, productOriginal.ReversalAdjustmentID)
}

// A recipe listing the same material twice would collapse the per-material
// reversal accounting: both lines resolve to one production entry, so a full
// reversal restores only one line's share. The catalog refuses such recipes
// on write; a stored one is corrupt data and the batch must not consume it.
func TestCreateBatch_RejectsDuplicateRecipeLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.items.SaveRecipe(ctx, f.product.ID, []item.RecipeLine{
		{ProductID: f.product.ID, LineNo: 1, MaterialID: f.flour.ID, QuantityPerUnit: types.NewQuantityFromFloat64(2), Unit: "kg"},
		{ProductID: f.product.ID, LineNo: 2, MaterialID: f.flour.ID, QuantityPerUnit: types.NewQuantityFromFloat64(3), Unit: "kg"},
	}))

	_, err := f.svc.CreateBatch(ctx, f.product.ID, types.NewQuantityFromFloat64(10), "", "operator-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConsistency))

	// Nothing moved.
	assert.Equal(t, types.NewQuantityFromFloat64(100), f.stock(t, f.flour.ID).CurrentStock)
	assert.Equal(t, types.NewQuantityFromFloat64(0), f.stock(t, f.product.ID).CurrentStock)
}
