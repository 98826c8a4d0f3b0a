package sales

import (
	"context"
	"time"

	"stockforge/internal/core/id"
	"stockforge/internal/domain"
)

// Repository defines storage operations for sales.
type Repository interface {
	// Create persists the sale header and its adjustment references.
	Create(ctx context.Context, sale *Sale) error

	// GetByID retrieves a sale with its adjustment references.
	GetByID(ctx context.Context, saleID id.ID) (*Sale, error)

	// GetForUpdate retrieves the sale with a row lock.
	// Must be called inside a transaction.
	GetForUpdate(ctx context.Context, saleID id.ID) (*Sale, error)

	// UpdateStatus persists the void transition with a compare-and-swap on
	// the version token.
	UpdateStatus(ctx context.Context, sale *Sale) error

	// List retrieves sales with filtering.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Sale], error)
}

// ListFilter for filtering sales.
type ListFilter struct {
	domain.ListFilter

	ProductID *id.ID
	Status    *Status
	DateFrom  *time.Time
	DateTo    *time.Time
}
