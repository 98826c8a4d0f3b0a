package ledger

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
)

// MemoryRepository is an in-memory Repository implementation.
// Use in unit tests to avoid database dependencies.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []Adjustment
	byID    map[id.ID]int
}

// NewMemoryRepository creates an empty in-memory ledger.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[id.ID]int),
	}
}

// Create implements Repository.
func (r *MemoryRepository) Create(ctx context.Context, adj *Adjustment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[adj.ID] = len(r.entries)
	r.entries = append(r.entries, *adj)
	return nil
}

// CreateBatch implements Repository.
func (r *MemoryRepository) CreateBatch(ctx context.Context, adjustments []*Adjustment) error {
	for _, adj := range adjustments {
		if err := r.Create(ctx, adj); err != nil {
			return err
		}
	}
	return nil
}

// GetByID implements Repository.
func (r *MemoryRepository) GetByID(ctx context.Context, adjustmentID id.ID) (*Adjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byID[adjustmentID]
	if !ok {
		return nil, apperror.NewNotFound("adjustment", adjustmentID.String())
	}
	out := r.entries[idx]
	return &out, nil
}

// MarkReversed implements Repository. The back-link is set exactly once.
func (r *MemoryRepository) MarkReversed(ctx context.Context, originalID, reversalID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byID[originalID]
	if !ok {
		return apperror.NewNotFound("adjustment", originalID.String())
	}
	if r.entries[idx].IsReversed {
		return apperror.NewConsistencyViolation("adjustment already marked reversed").
			WithDetail("adjustment_id", originalID.String())
	}
	r.entries[idx].IsReversed = true
	r.entries[idx].ReversalAdjustmentID = &reversalID
	return nil
}

// SumReversedQuantity implements Repository.
func (r *MemoryRepository) SumReversedQuantity(ctx context.Context, originalID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum types.Quantity
	for i := range r.entries {
		e := &r.entries[i]
		if e.OriginalAdjustmentID != nil && *e.OriginalAdjustmentID == originalID {
			sum += e.Quantity.Abs()
		}
	}
	return sum, nil
}

// ListByItem implements Repository: newest-first by UUIDv7 id, keyset cursor.
func (r *MemoryRepository) ListByItem(ctx context.Context, itemID id.ID, limit int, cursor *id.ID) ([]*Adjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Adjustment
	for _, e := range r.entries {
		if e.ItemID != itemID {
			continue
		}
		if cursor != nil && bytes.Compare(e.ID[:], cursor[:]) >= 0 {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		return bytes.Compare(matched[i].ID[:], matched[j].ID[:]) > 0
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*Adjustment, len(matched))
	for i := range matched {
		e := matched[i]
		out[i] = &e
	}
	return out, nil
}

// ListByBatch implements Repository.
func (r *MemoryRepository) ListByBatch(ctx context.Context, batchID id.ID) ([]*Adjustment, error) {
	return r.listByLink(func(e *Adjustment) bool {
		return e.BatchID != nil && *e.BatchID == batchID
	})
}

// ListBySale implements Repository.
func (r *MemoryRepository) ListBySale(ctx context.Context, saleID id.ID) ([]*Adjustment, error) {
	return r.listByLink(func(e *Adjustment) bool {
		return e.SaleID != nil && *e.SaleID == saleID
	})
}

func (r *MemoryRepository) listByLink(match func(*Adjustment) bool) ([]*Adjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Adjustment
	for i := range r.entries {
		if match(&r.entries[i]) {
			e := r.entries[i]
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	return out, nil
}

// SumDeltasByItem implements Repository.
func (r *MemoryRepository) SumDeltasByItem(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum types.Quantity
	for i := range r.entries {
		if r.entries[i].ItemID == itemID {
			sum += r.entries[i].Quantity
		}
	}
	return sum, nil
}

// Ensure compile-time interface compliance.
var _ Repository = (*MemoryRepository)(nil)
