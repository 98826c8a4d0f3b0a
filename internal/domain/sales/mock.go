package sales

import (
	"context"
	"sort"
	"sync"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/domain"
)

// MemoryRepository is an in-memory Repository implementation for unit tests.
type MemoryRepository struct {
	mu    sync.Mutex
	sales map[id.ID]Sale
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sales: make(map[id.ID]Sale)}
}

// Create implements Repository.
func (r *MemoryRepository) Create(ctx context.Context, sale *Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *sale
	stored.AdjustmentIDs = make([]id.ID, len(sale.AdjustmentIDs))
	copy(stored.AdjustmentIDs, sale.AdjustmentIDs)
	r.sales[sale.ID] = stored
	return nil
}

// GetByID implements Repository.
func (r *MemoryRepository) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID.String())
	}
	out := stored
	out.AdjustmentIDs = make([]id.ID, len(stored.AdjustmentIDs))
	copy(out.AdjustmentIDs, stored.AdjustmentIDs)
	return &out, nil
}

// GetForUpdate implements Repository. In memory there is no row lock; the
// version compare-and-swap in UpdateStatus provides the serialization.
func (r *MemoryRepository) GetForUpdate(ctx context.Context, saleID id.ID) (*Sale, error) {
	return r.GetByID(ctx, saleID)
}

// UpdateStatus implements Repository.
func (r *MemoryRepository) UpdateStatus(ctx context.Context, sale *Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sales[sale.ID]
	if !ok {
		return apperror.NewNotFound("sale", sale.ID.String())
	}
	if stored.Version != sale.Version {
		return apperror.NewConcurrentModification("sale", sale.ID.String())
	}
	stored.Status = sale.Status
	stored.VoidReason = sale.VoidReason
	stored.VoidedBy = sale.VoidedBy
	stored.VoidedAt = sale.VoidedAt
	stored.UpdatedBy = sale.UpdatedBy
	stored.Touch()
	r.sales[sale.ID] = stored
	sale.SetVersion(stored.Version)
	return nil
}

// List implements Repository.
func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Sale], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sales []*Sale
	for _, stored := range r.sales {
		if filter.ProductID != nil && stored.ProductID != *filter.ProductID {
			continue
		}
		if filter.Status != nil && stored.Status != *filter.Status {
			continue
		}
		if filter.DateFrom != nil && stored.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && stored.CreatedAt.After(*filter.DateTo) {
			continue
		}
		out := stored
		sales = append(sales, &out)
	}
	sort.Slice(sales, func(i, j int) bool {
		return sales[i].CreatedAt.After(sales[j].CreatedAt)
	})

	return domain.ListResult[*Sale]{
		Items:      sales,
		TotalCount: int64(len(sales)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// Ensure compile-time interface compliance.
var _ Repository = (*MemoryRepository)(nil)
