package production

import (
	"context"
	"sort"
	"sync"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/domain"
)

// MemoryRepository is an in-memory Repository implementation for unit tests.
// It stores value copies and enforces the same version compare-and-swap on
// progress updates as the Postgres repository.
type MemoryRepository struct {
	mu      sync.Mutex
	batches map[id.ID]Batch
	lines   map[id.ID][]MaterialCost
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		batches: make(map[id.ID]Batch),
		lines:   make(map[id.ID][]MaterialCost),
	}
}

// Create implements Repository.
func (r *MemoryRepository) Create(ctx context.Context, batch *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *batch
	stored.MaterialCosts = nil
	r.batches[batch.ID] = stored
	return nil
}

// SaveLines implements Repository.
func (r *MemoryRepository) SaveLines(ctx context.Context, batchID id.ID, lines []MaterialCost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]MaterialCost, len(lines))
	copy(stored, lines)
	r.lines[batchID] = stored
	return nil
}

// GetByID implements Repository.
func (r *MemoryRepository) GetByID(ctx context.Context, batchID id.ID) (*Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("production batch", batchID.String())
	}
	out := stored
	return &out, nil
}

// GetForUpdate implements Repository. In memory there is no row lock; the
// version compare-and-swap in UpdateProgress provides the serialization.
func (r *MemoryRepository) GetForUpdate(ctx context.Context, batchID id.ID) (*Batch, error) {
	return r.GetByID(ctx, batchID)
}

// GetLines implements Repository.
func (r *MemoryRepository) GetLines(ctx context.Context, batchID id.ID) ([]MaterialCost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.lines[batchID]
	out := make([]MaterialCost, len(lines))
	copy(out, lines)
	sort.Slice(out, func(i, j int) bool { return out[i].LineNo < out[j].LineNo })
	return out, nil
}

// UpdateProgress implements Repository.
func (r *MemoryRepository) UpdateProgress(ctx context.Context, batch *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.batches[batch.ID]
	if !ok {
		return apperror.NewNotFound("production batch", batch.ID.String())
	}
	if stored.Version != batch.Version {
		return apperror.NewConcurrentModification("production batch", batch.ID.String())
	}
	stored.ReversedQuantity = batch.ReversedQuantity
	stored.WastedQuantity = batch.WastedQuantity
	stored.UpdatedBy = batch.UpdatedBy
	stored.Touch()
	r.batches[batch.ID] = stored
	batch.SetVersion(stored.Version)
	return nil
}

// List implements Repository.
func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Batch], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var batches []*Batch
	for _, stored := range r.batches {
		if filter.ProductID != nil && stored.ProductID != *filter.ProductID {
			continue
		}
		if filter.Status != nil && stored.Status() != *filter.Status {
			continue
		}
		if filter.DateFrom != nil && stored.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && stored.CreatedAt.After(*filter.DateTo) {
			continue
		}
		out := stored
		batches = append(batches, &out)
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})

	return domain.ListResult[*Batch]{
		Items:      batches,
		TotalCount: int64(len(batches)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// Ensure compile-time interface compliance.
var _ Repository = (*MemoryRepository)(nil)
