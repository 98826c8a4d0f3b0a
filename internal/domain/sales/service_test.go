package sales

import (
	"context"
	"sync"
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

func TestCreateSale_ConsumesRecipeMaterials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sale, err := f.svc.CreateSale(ctx, CreateParams{
		ProductID:  f.product.ID,
		Quantity:   types.NewQuantityFromFloat64(5),
		TotalPrice: types.MustMoney("125"),
		ActorID:    "cashier-1",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, sale.Status)
	require.Len(t, sale.AdjustmentIDs, 2)

	// 5 units consume 10 flour and 5 sugar; the product itself is untouched.
	assert.Equal(t, types.NewQuantityFromFloat64(90), f.stock(t, f.flour.ID).CurrentStock)
	assert.Equal(t, types.NewQuantityFromFloat64(45), f.stock(t, f.sugar.ID).CurrentStock)
	assert.True(t, f.stock(t, f.product.ID).CurrentStock.IsZero())

	entries, err := f.ledger.ListBySale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, ledger.TypeSale, e.Type)
		assert.True(t, e.Quantity.IsNegative())
	}
}

func TestCreateSale_ShortageFailsWholeSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 60 units need 120 flour (short) and 60 sugar (short).
	_, err := f.svc.CreateSale(ctx, CreateParams{
		ProductID:  f.product.ID,
		Quantity:   types.NewQuantityFromFloat64(60),
		TotalPrice: types.MustMoney("1500"),
		ActorID:    "cashier-1",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientMaterial))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	shortages, ok := appErr.Details["shortages"].([]apperror.Shortage)
	require.True(t, ok)
	assert.Len(t, shortages, 2)
	assert.InDelta(t, 20.0, shortages[0].Shortage, 1e-9)

	assert.Equal(t, types.NewQuantityFromFloat64(100), f.stock(t, f.flour.ID).CurrentStock)
	assert.Equal(t, types.NewQuantityFromFloat64(50), f.stock(t, f.sugar.ID).CurrentStock)
}

func TestVoidSale_RestoresExactPreSaleStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sale, err := f.svc.CreateSale(ctx, CreateParams{
		ProductID:  f.product.ID,
		Quantity:   types.NewQuantityFromFloat64(5),
		TotalPrice: types.MustMoney("125"),
		ActorID:    "cashier-1",
	})
	require.NoError(t, err)

	voided, err := f.svc.VoidSale(ctx, sale.ID, "customer return", "manager-1")
	require.NoError(t, err)

	assert.Equal(t, StatusVoided, voided.Status)
	assert.Equal(t, "customer return", voided.VoidReason)
	assert.Equal(t, "manager-1", voided.VoidedBy)
	require.NotNil(t, voided.VoidedAt)

	flour := f.stock(t, f.flour.ID)
	sugar := f.stock(t, f.sugar.ID)
	assert.Equal(t, types.NewQuantityFromFloat64(100), flour.CurrentStock)
	assert.Equal(t, types.NewQuantityFromFloat64(50), sugar.CurrentStock)
	// Restoring at the frozen sale cost leaves averages unchanged.
	assert.True(t, flour.AverageCost.Equal(types.MustMoney("2")), "avg = %s", flour.AverageCost)
	assert.True(t, sugar.AverageCost.Equal(types.MustMoney("4")), "avg = %s", sugar.AverageCost)

	// Each consumption entry is fully reversed with a return back-link.
	entries, err := f.ledger.ListBySale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, e := range entries {
		if e.Type == ledger.TypeSale {
			assert.True(t, e.IsReversed)
			assert.NotNil(t, e.ReversalAdjustmentID)
		} else {
			assert.Equal(t, ledger.TypeReturn, e.Type)
			assert.True(t, e.Quantity.IsPositive())
		}
	}
}

func TestVoidSale_SecondVoidRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sale, err := f.svc.CreateSale(ctx, CreateParams{
		ProductID:  f.product.ID,
		Quantity:   types.NewQuantityFromFloat64(2),
		TotalPrice: types.MustMoney("50"),
		ActorID:    "cashier-1",
	})
	require.NoError(t, err)

	_, err = f.svc.VoidSale(ctx, sale.ID, "first", "manager-1")
	require.NoError(t, err)

	_, err = f.svc.VoidSale(ctx, sale.ID, "second", "manager-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeAlreadyClosed))

	assert.Equal(t, types.NewQuantityFromFloat64(100), f.stock(t, f.flour.ID).CurrentStock)
}

func TestCreateSale_RejectsMaterial(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSale(context.Background(), CreateParams{
		ProductID:  f.flour.ID,
		Quantity:   types.NewQuantityFromFloat64(1),
		TotalPrice: types.MustMoney("10"),
		ActorID:    "cashier-1",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestCreateSale_RejectsDuplicateRecipeLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Corrupt recipe stored behind the catalog's back; the combined demand
	// of the two lines would slip past the per-line availability check.
	require.NoError(t, f.items.SaveRecipe(ctx, f.product.ID, []item.RecipeLine{
		{ProductID: f.product.ID, LineNo: 1, MaterialID: f.flour.ID, QuantityPerUnit: types.NewQuantityFromFloat64(2), Unit: "kg"},
		{ProductID: f.product.ID, LineNo: 2, MaterialID: f.flour.ID, QuantityPerUnit: types.NewQuantityFromFloat64(3), Unit: "kg"},
	}))

	_, err := f.svc.CreateSale(ctx, CreateParams{
		ProductID:  f.product.ID,
		Quantity:   types.NewQuantityFromFloat64(1),
		TotalPrice: types.MustMoney("10"),
		ActorID:    "cashier-1",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConsistency))
	assert.Equal(t, types.NewQuantityFromFloat64(100), f.stock(t, f.flour.ID).CurrentStock)
}

// Two sales racing for the last units: the engine serializes them, exactly
// one wins and stock lands at zero, never below.
func TestCreateSale_ExhaustedStockRejectsSecondSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 5 units consume the whole store: 10 flour, 5 sugar.
	f.flour.CurrentStock = types.NewQuantityFromFloat64(10)
	f.sugar.CurrentStock = types.NewQuantityFromFloat64(5)
	require.NoError(t, f.items.Create(ctx, f.flour))
	require.NoError(t, f.items.Create(ctx, f.sugar))

	sell := func() error {
		_, err := f.svc.CreateSale(ctx, CreateParams{
			ProductID:  f.product.ID,
			Quantity:   types.NewQuantityFromFloat64(5),
			TotalPrice: types.MustMoney("50"),
			ActorID:    "cashier-1",
		})
		return err
	}

	require.NoError(t, sell())
	assert.True(t, f.stock(t, f.flour.ID).CurrentStock.IsZero())
	assert.True(t, f.stock(t, f.sugar.ID).CurrentStock.IsZero())

	err := sell()
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientMaterial))
	assert.True(t, f.stock(t, f.flour.ID).CurrentStock.IsZero())
}

// contendedItems simulates a competing writer that commits against the same
// row between this transaction's read and its write, so the version
// compare-and-swap in UpdateStock misses.
type contendedItems struct {
	*item.MemoryRepository
	target id.ID
	once   sync.Once
}

func (r *contendedItems) GetForUpdate(ctx context.Context, itemID id.ID) (*item.StockItem, error) {
	it, err := r.MemoryRepository.GetForUpdate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if itemID == r.target {
		r.once.Do(func() {
			rival, rivalErr := r.MemoryRepository.GetForUpdate(ctx, itemID)
			if rivalErr == nil {
				_ = r.MemoryRepository.UpdateStock(ctx, rival)
			}
		})
	}
	return it, nil
}

func TestCreateSale_ConcurrentWriterSurfacesConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items := &contendedItems{MemoryRepository: f.items, target: f.flour.ID}
	svc := NewService(NewMemoryRepository(), items, f.ledger, &tx.MockManager{})

	_, err := svc.CreateSale(ctx, CreateParams{
		ProductID:  f.product.ID,
		Quantity:   types.NewQuantityFromFloat64(1),
		TotalPrice: types.MustMoney("10"),
		ActorID:    "cashier-1",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConcurrentModification))
}
