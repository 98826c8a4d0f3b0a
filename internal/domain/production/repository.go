package production

import (
	"context"
	"time"

	"stockforge/internal/core/id"
	"stockforge/internal/domain"
)

// Repository defines storage operations for production batches.
type Repository interface {
	// Create persists the batch header.
	Create(ctx context.Context, batch *Batch) error

	// SaveLines persists the per-material consumption snapshot.
	SaveLines(ctx context.Context, batchID id.ID, lines []MaterialCost) error

	// GetByID retrieves a batch without lines.
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)

	// GetForUpdate retrieves the batch with a row lock.
	// Must be called inside a transaction.
	GetForUpdate(ctx context.Context, batchID id.ID) (*Batch, error)

	// GetLines retrieves the consumption snapshot ordered by line number.
	GetLines(ctx context.Context, batchID id.ID) ([]MaterialCost, error)

	// UpdateProgress persists ReversedQuantity/WastedQuantity with a
	// compare-and-swap on the version token.
	UpdateProgress(ctx context.Context, batch *Batch) error

	// List retrieves batches with filtering.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Batch], error)
}

// ListFilter for filtering production batches.
type ListFilter struct {
	domain.ListFilter

	ProductID *id.ID
	Status    *Status
	DateFrom  *time.Time
	DateTo    *time.Time
}
