package item

import (
	"context"

	"stockforge/internal/core/id"
	"stockforge/internal/domain"
)

// Repository defines storage operations for stock items and recipes.
type Repository interface {
	// CRUD operations
	Create(ctx context.Context, it *StockItem) error
	GetByID(ctx context.Context, itemID id.ID) (*StockItem, error)
	Update(ctx context.Context, it *StockItem) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockItem], error)

	// GetForUpdate returns the item with a row lock.
	// Must be called inside a transaction; serializes all writers of the item.
	GetForUpdate(ctx context.Context, itemID id.ID) (*StockItem, error)

	// UpdateStock persists CurrentStock and AverageCost with a
	// compare-and-swap on the version token. Returns
	// CONCURRENT_MODIFICATION if the stored version differs.
	UpdateStock(ctx context.Context, it *StockItem) error

	// Recipe (BOM) operations
	GetRecipe(ctx context.Context, productID id.ID) ([]RecipeLine, error)
	SaveRecipe(ctx context.Context, productID id.ID, lines []RecipeLine) error
}

// ListFilter for filtering stock items.
type ListFilter struct {
	domain.ListFilter

	Kind       *Kind
	ActiveOnly bool
}
