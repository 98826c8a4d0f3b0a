package purchasing

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
	svc    *Service
	items  *item.MemoryRepository
	ledger *ledger.Service
	flour  *item.StockItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	items := item.NewMemoryRepository()
	ledgerSvc := ledger.NewService(ledger.NewMemoryRepository())

	flour := item.NewStockItem(item.KindMaterial, "flour", "kg")
	require.NoError(t, items.Create(context.Background(), flour))

	return &fixture{
		svc:    NewService(items, ledgerSvc, &tx.MockManager{}),
		items:  items,
		ledger: ledgerSvc,
		flour:  flour,
	}
}

func (f *fixture) stock(t *testing.T) *item.StockItem {
	t.Helper()
	it, err := f.items.GetByID(context.Background(), f.flour.ID)
	require.NoError(t, err)
	return it
}

func TestCreatePurchase_RollsWeightedAverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adj, err := f.svc.CreatePurchase(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), types.MustMoney("100"), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.TypePurchase, adj.Type)
	assert.True(t, adj.UnitCost.Equal(types.MustMoney("10")), "unit = %s", adj.UnitCost)

	_, err = f.svc.CreatePurchase(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), types.MustMoney("50"), "buyer-1")
	require.NoError(t, err)

	it := f.stock(t)
	assert.Equal(t, types.NewQuantityFromFloat64(20), it.CurrentStock)
	assert.True(t, it.AverageCost.Equal(types.MustMoney("7.5")), "avg = %s", it.AverageCost)
}

func TestCreatePurchase_RejectsProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product := item.NewStockItem(item.KindProduct, "bread", "pcs")
	require.NoError(t, f.items.Create(ctx, product))

	_, err := f.svc.CreatePurchase(ctx, product.ID, types.NewQuantityFromFloat64(1), types.MustMoney("10"), "buyer-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestDeletePurchase_RemovesHistoricalValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 10 @ 10 then 10 @ 5; deleting the second purchase restores avg 10.
	_, err := f.svc.CreatePurchase(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), types.MustMoney("100"), "buyer-1")
	require.NoError(t, err)
	second, err := f.svc.CreatePurchase(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), types.MustMoney("50"), "buyer-1")
	require.NoError(t, err)

	entry, err := f.svc.DeletePurchase(ctx, second.ID, "entered twice", "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeReversal, entry.Type)
	assert.Equal(t, types.NewQuantityFromFloat64(10).Neg(), entry.Quantity)

	it := f.stock(t)
	assert.Equal(t, types.NewQuantityFromFloat64(10), it.CurrentStock)
	assert.True(t, it.AverageCost.Equal(types.MustMoney("10")), "avg = %s", it.AverageCost)

	original, err := f.ledger.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, original.IsReversed)
}

func TestDeletePurchase_SecondDeleteRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adj, err := f.svc.CreatePurchase(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), types.MustMoney("100"), "buyer-1")
	require.NoError(t, err)

	_, err = f.svc.DeletePurchase(ctx, adj.ID, "first", "buyer-1")
	require.NoError(t, err)

	_, err = f.svc.DeletePurchase(ctx, adj.ID, "second", "buyer-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeAlreadyClosed))
}

func TestDeletePurchase_BlockedWhenConsumed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adj, err := f.svc.CreatePurchase(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), types.MustMoney("100"), "buyer-1")
	require.NoError(t, err)

	// Most of the stock is already gone.
	_, err = f.svc.CreateCorrection(ctx, f.flour.ID, types.NewQuantityFromFloat64(8).Neg(), nil, "count", "buyer-1")
	require.NoError(t, err)

	_, err = f.svc.DeletePurchase(ctx, adj.ID, "oops", "buyer-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	assert.Equal(t, types.NewQuantityFromFloat64(2), f.stock(t).CurrentStock)
}

func TestCreateCorrection_SignedDeltas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePurchase(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), types.MustMoney("100"), "buyer-1")
	require.NoError(t, err)

	// Positive correction at current average keeps avg stable.
	adj, err := f.svc.CreateCorrection(ctx, f.flour.ID, types.NewQuantityFromFloat64(2), nil, "found on shelf", "auditor-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeCorrection, adj.Type)

	it := f.stock(t)
	assert.Equal(t, types.NewQuantityFromFloat64(12), it.CurrentStock)
	assert.True(t, it.AverageCost.Equal(types.MustMoney("10")), "avg = %s", it.AverageCost)

	_, err = f.svc.CreateCorrection(ctx, f.flour.ID, types.NewQuantityFromFloat64(5).Neg(), nil, "damaged", "auditor-1")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(7), f.stock(t).CurrentStock)
}

func TestCreateCorrection_RequiresReason(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCorrection(context.Background(), f.flour.ID, types.NewQuantityFromFloat64(1), nil, "", "auditor-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestCreateCorrection_ValuedIncrease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePurchase(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), types.MustMoney("100"), "buyer-1")
	require.NoError(t, err)

	// Valued correction rolls the average like a purchase:
	// (10*10 + 10*4) / 20 = 7.
	cost := types.MustMoney("4")
	adj, err := f.svc.CreateCorrection(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), &cost, "recount", "auditor-1")
	require.NoError(t, err)
	assert.True(t, adj.UnitCost.Equal(cost))

	it := f.stock(t)
	assert.Equal(t, types.NewQuantityFromFloat64(20), it.CurrentStock)
	assert.True(t, it.AverageCost.Equal(types.MustMoney("7")), "avg = %s", it.AverageCost)

	// Valuation makes no sense on a removal.
	_, err = f.svc.CreateCorrection(ctx, f.flour.ID, types.NewQuantityFromFloat64(1).Neg(), &cost, "damaged", "auditor-1")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidInput))
}

// raceyItems runs a hook once, just before the first row lock is granted,
// standing in for a competing transaction that held the lock and committed
// first.
type raceyItems struct {
	*item.MemoryRepository
	onLock func()
	once   sync.Once
}

func (r *raceyItems) GetForUpdate(ctx context.Context, itemID id.ID) (*item.StockItem, error) {
	r.once.Do(r.onLock)
	return r.MemoryRepository.GetForUpdate(ctx, itemID)
}

func TestDeletePurchase_RaceReportsAlreadyClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adj, err := f.svc.CreatePurchase(ctx, f.flour.ID, types.NewQuantityFromFloat64(10), types.MustMoney("100"), "buyer-1")
	require.NoError(t, err)

	items := &raceyItems{MemoryRepository: f.items}
	items.onLock = func() {
		_, delErr := f.svc.DeletePurchase(ctx, adj.ID, "first", "buyer-1")
		require.NoError(t, delErr)
	}
	svc := NewService(items, f.ledger, &tx.MockManager{})

	// The loser of the race gets the lifecycle error, not an over-reversal.
	_, err = svc.DeletePurchase(ctx, adj.ID, "second", "buyer-2")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeAlreadyClosed))
	assert.True(t, f.stock(t).CurrentStock.IsZero())
}
