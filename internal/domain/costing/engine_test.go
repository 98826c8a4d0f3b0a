package costing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/types"
	"stockforge/internal/domain/catalogs/item"
)

func newMaterial(stock float64, avgCost string) *item.StockItem {
	it := item.NewStockItem(item.KindMaterial, "flour", "kg")
	it.CurrentStock = types.NewQuantityFromFloat64(stock)
	it.AverageCost = types.MustMoney(avgCost)
	return it
}

func TestApplyIncrease_WeightedAverageRoundTrip(t *testing.T) {
	it := newMaterial(0, "0")

	err := ApplyIncrease(it, types.NewQuantityFromFloat64(10), types.MustMoney("100"))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(10), it.CurrentStock)
	assert.True(t, it.AverageCost.Equal(types.MustMoney("10")), "avg = %s", it.AverageCost)

	err = ApplyIncrease(it, types.NewQuantityFromFloat64(10), types.MustMoney("50"))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(20), it.CurrentStock)
	assert.True(t, it.AverageCost.Equal(types.MustMoney("7.5")), "avg = %s", it.AverageCost)
}

func TestApplyIncrease_RejectsNonPositiveQuantity(t *testing.T) {
	tests := []struct {
		name string
		qty  float64
	}{
		{"zero", 0},
		{"negative", -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := newMaterial(5, "2")
			err := ApplyIncrease(it, types.NewQuantityFromFloat64(tt.qty), types.MustMoney("10"))
			require.Error(t, err)
			assert.True(t, apperror.IsCode(err, apperror.CodeInvalidInput))
			assert.Equal(t, types.NewQuantityFromFloat64(5), it.CurrentStock)
		})
	}
}

func TestApplyIncrease_RejectsNegativeCost(t *testing.T) {
	it := newMaterial(5, "2")
	err := ApplyIncrease(it, types.NewQuantityFromFloat64(1), types.MustMoney("-1"))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidInput))
}

func TestApplyDecrease_LeavesAverageUnchanged(t *testing.T) {
	it := newMaterial(20, "7.5")

	err := ApplyDecrease(it, types.NewQuantityFromFloat64(12))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(8), it.CurrentStock)
	assert.True(t, it.AverageCost.Equal(types.MustMoney("7.5")))
}

func TestApplyDecrease_InsufficientStock(t *testing.T) {
	it := newMaterial(5, "2")

	err := ApplyDecrease(it, types.NewQuantityFromFloat64(6))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 6.0, appErr.Details["requested"])
	assert.Equal(t, 5.0, appErr.Details["available"])

	// Failed decrease leaves the item untouched.
	assert.Equal(t, types.NewQuantityFromFloat64(5), it.CurrentStock)
}

func TestApplyDecrease_ToZeroKeepsAverage(t *testing.T) {
	it := newMaterial(5, "3")

	err := ApplyDecrease(it, types.NewQuantityFromFloat64(5))
	require.NoError(t, err)
	assert.True(t, it.CurrentStock.IsZero())
	// Decrease never revalues, even at zero stock.
	assert.True(t, it.AverageCost.Equal(types.MustMoney("3")))
}

func TestApplyValuedDecrease_RemovesHistoricalValue(t *testing.T) {
	// 10 units at average 8 = value 80. Remove 4 units valued at 5 each:
	// value 80-20=60 over 6 units -> average 10.
	it := newMaterial(10, "8")

	err := ApplyValuedDecrease(it, types.NewQuantityFromFloat64(4), types.MustMoney("5"))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(6), it.CurrentStock)
	assert.True(t, it.AverageCost.Equal(types.MustMoney("10")), "avg = %s", it.AverageCost)
}

func TestApplyValuedDecrease_ZeroStockResetsAverage(t *testing.T) {
	it := newMaterial(4, "5")

	err := ApplyValuedDecrease(it, types.NewQuantityFromFloat64(4), types.MustMoney("5"))
	require.NoError(t, err)
	assert.True(t, it.CurrentStock.IsZero())
	assert.True(t, it.AverageCost.IsZero())
}

func TestApplyValuedDecrease_FloorsAverageAtZero(t *testing.T) {
	// Removing value at a unit cost above the current average can push the
	// derived average below zero; it must clamp instead.
	it := newMaterial(10, "2")

	err := ApplyValuedDecrease(it, types.NewQuantityFromFloat64(9), types.MustMoney("3"))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(1), it.CurrentStock)
	assert.True(t, it.AverageCost.IsZero(), "avg = %s", it.AverageCost)
}

func TestApplyValuedDecrease_InsufficientStock(t *testing.T) {
	it := newMaterial(2, "5")

	err := ApplyValuedDecrease(it, types.NewQuantityFromFloat64(3), types.MustMoney("5"))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, types.NewQuantityFromFloat64(2), it.CurrentStock)
}
