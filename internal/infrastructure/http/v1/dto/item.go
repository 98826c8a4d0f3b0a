package dto

import (
	"stockforge/internal/domain/catalogs/item"
)

// --- Request DTOs ---

// CreateItemRequest creates a stock item.
type CreateItemRequest struct {
	Kind     string `json:"kind" binding:"required,oneof=material product"`
	Name     string `json:"name" binding:"required"`
	SKU      string `json:"sku,omitempty"`
	Unit     string `json:"unit" binding:"required"`
	Category string `json:"category,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateItemRequest) ToEntity() *item.StockItem {
	it := item.NewStockItem(item.Kind(r.Kind), r.Name, r.Unit)
	it.SKU = r.SKU
	it.Category = r.Category
	return it
}

// UpdateItemRequest updates item metadata. Stock and cost are not settable
// here; they move only through the stock operations.
type UpdateItemRequest struct {
	Name     string `json:"name" binding:"required"`
	SKU      string `json:"sku,omitempty"`
	Unit     string `json:"unit" binding:"required"`
	Category string `json:"category,omitempty"`
	Active   *bool  `json:"active,omitempty"`
}

// RecipeLineRequest is one recipe line in a set-recipe request.
type RecipeLineRequest struct {
	MaterialID      string  `json:"materialId" binding:"required"`
	QuantityPerUnit float64 `json:"quantityPerUnit" binding:"required,gt=0"`
	Unit            string  `json:"unit,omitempty"`
}

// SetRecipeRequest replaces the product's recipe.
type SetRecipeRequest struct {
	Lines []RecipeLineRequest `json:"lines" binding:"required,min=1,dive"`
}
