package ledger

import (
	"context"

	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
)

// Repository defines storage operations for ledger adjustments.
type Repository interface {
	// Create inserts one adjustment.
	Create(ctx context.Context, adj *Adjustment) error

	// CreateBatch inserts several adjustments in one round trip.
	// Used by compound operations writing one entry per recipe line.
	CreateBatch(ctx context.Context, adjustments []*Adjustment) error

	// GetByID retrieves an adjustment.
	GetByID(ctx context.Context, adjustmentID id.ID) (*Adjustment, error)

	// MarkReversed sets the one-shot reversal back-link on the original.
	// Implementations must refuse to overwrite an existing link.
	MarkReversed(ctx context.Context, originalID, reversalID id.ID) error

	// SumReversedQuantity returns the absolute cumulative quantity of all
	// reversal entries back-linked to the original.
	SumReversedQuantity(ctx context.Context, originalID id.ID) (types.Quantity, error)

	// Query projections, newest-first, keyset-paginated on the UUIDv7 id.
	ListByItem(ctx context.Context, itemID id.ID, limit int, cursor *id.ID) ([]*Adjustment, error)
	ListByBatch(ctx context.Context, batchID id.ID) ([]*Adjustment, error)
	ListBySale(ctx context.Context, saleID id.ID) ([]*Adjustment, error)

	// SumDeltasByItem returns the signed sum of all adjustment deltas for an
	// item (reconciliation input).
	SumDeltasByItem(ctx context.Context, itemID id.ID) (types.Quantity, error)
}

// Page is one slice of the item history projection. NextCursor restarts the
// read exactly after the last returned entry.
type Page struct {
	Items      []*Adjustment `json:"items"`
	NextCursor *id.ID        `json:"nextCursor,omitempty"`
}
