package item

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/tx"
	"stockforge/internal/core/types"
)

func newService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewService(repo, &tx.MockManager{}), repo
}

func TestCreate_Valid(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	flour := NewStockItem(KindMaterial, "flour", "kg")
	require.NoError(t, svc.Create(ctx, flour))

	stored, err := repo.GetByID(ctx, flour.ID)
	require.NoError(t, err)
	assert.Equal(t, "flour", stored.Name)
	assert.True(t, stored.Active)
	assert.True(t, stored.CurrentStock.IsZero())
	assert.True(t, stored.AverageCost.IsZero())
}

func TestCreate_Invalid(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		item *StockItem
	}{
		{"missing name", NewStockItem(KindMaterial, "", "kg")},
		{"missing unit", NewStockItem(KindMaterial, "flour", "")},
		{"unknown kind", NewStockItem(Kind("gadget"), "flour", "kg")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(ctx, tt.item)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestUpdate_MetadataOnly(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	sugar := NewStockItem(KindMaterial, "sugar", "kg")
	require.NoError(t, svc.Create(ctx, sugar))

	sugar.Name = "cane sugar"
	sugar.Category = "sweeteners"
	sugar.Active = false
	require.NoError(t, svc.Update(ctx, sugar))

	stored, err := repo.GetByID(ctx, sugar.ID)
	require.NoError(t, err)
	assert.Equal(t, "cane sugar", stored.Name)
	assert.Equal(t, "sweeteners", stored.Category)
	assert.False(t, stored.Active)
}

func TestSetRecipe(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	flour := NewStockItem(KindMaterial, "flour", "kg")
	sugar := NewStockItem(KindMaterial, "sugar", "kg")
	bread := NewStockItem(KindProduct, "bread", "pcs")
	for _, it := range []*StockItem{flour, sugar, bread} {
		require.NoError(t, svc.Create(ctx, it))
	}

	lines := []RecipeLine{
		{MaterialID: flour.ID, QuantityPerUnit: types.NewQuantityFromFloat64(2)},
		{MaterialID: sugar.ID, QuantityPerUnit: types.NewQuantityFromFloat64(0.5)},
	}
	require.NoError(t, svc.SetRecipe(ctx, bread.ID, lines))

	got, err := svc.GetRecipe(ctx, bread.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].LineNo)
	assert.Equal(t, flour.ID, got[0].MaterialID)
	assert.Equal(t, "kg", got[0].Unit) // defaults to the material's unit
	assert.Equal(t, 2, got[1].LineNo)
	assert.Equal(t, sugar.ID, got[1].MaterialID)

	// Replacement overwrites, never merges.
	require.NoError(t, svc.SetRecipe(ctx, bread.ID, lines[:1]))
	got, err = svc.GetRecipe(ctx, bread.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSetRecipe_Rejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	flour := NewStockItem(KindMaterial, "flour", "kg")
	bread := NewStockItem(KindProduct, "bread", "pcs")
	cake := NewStockItem(KindProduct, "cake", "pcs")
	for _, it := range []*StockItem{flour, bread, cake} {
		require.NoError(t, svc.Create(ctx, it))
	}

	line := func(materialID id.ID, qty float64) RecipeLine {
		return RecipeLine{MaterialID: materialID, QuantityPerUnit: types.NewQuantityFromFloat64(qty)}
	}

	t.Run("recipe on a material", func(t *testing.T) {
		err := svc.SetRecipe(ctx, flour.ID, []RecipeLine{line(flour.ID, 1)})
		requireCode(t, err, apperror.CodeValidation)
	})

	t.Run("empty recipe", func(t *testing.T) {
		err := svc.SetRecipe(ctx, bread.ID, nil)
		requireCode(t, err, apperror.CodeValidation)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		err := svc.SetRecipe(ctx, bread.ID, []RecipeLine{line(flour.ID, 0)})
		requireCode(t, err, apperror.CodeInvalidInput)
	})

	t.Run("line references a product", func(t *testing.T) {
		err := svc.SetRecipe(ctx, bread.ID, []RecipeLine{line(cake.ID, 1)})
		requireCode(t, err, apperror.CodeValidation)
	})

	t.Run("material listed twice", func(t *testing.T) {
		err := svc.SetRecipe(ctx, bread.ID, []RecipeLine{line(flour.ID, 2), line(flour.ID, 3)})
		requireCode(t, err, apperror.CodeValidation)
		appErr, _ := apperror.AsAppError(err)
		assert.Equal(t, flour.ID.String(), appErr.Details["material_id"])
	})

	t.Run("recipe of a material is unreadable", func(t *testing.T) {
		_, err := svc.GetRecipe(ctx, flour.ID)
		requireCode(t, err, apperror.CodeValidation)
	})
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, code, appErr.Code)
}
