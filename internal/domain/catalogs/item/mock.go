package item

import (
	"context"
	"strings"
	"sync"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/domain"
)

// MemoryRepository is an in-memory Repository implementation.
// Use in unit tests to avoid database dependencies. It returns copies so a
// failed operation cannot leak partial mutations back into the store, and it
// enforces the same version compare-and-swap as the Postgres repository.
type MemoryRepository struct {
	mu      sync.Mutex
	items   map[id.ID]StockItem
	recipes map[id.ID][]RecipeLine
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:   make(map[id.ID]StockItem),
		recipes: make(map[id.ID][]RecipeLine),
	}
}

// Create implements Repository.
func (r *MemoryRepository) Create(ctx context.Context, it *StockItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[it.ID] = *it
	return nil
}

// GetByID implements Repository.
func (r *MemoryRepository) GetByID(ctx context.Context, itemID id.ID) (*StockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("stock item", itemID.String())
	}
	out := stored
	return &out, nil
}

// GetForUpdate implements Repository. In memory there is no row lock; the
// version compare-and-swap in UpdateStock provides the write serialization.
func (r *MemoryRepository) GetForUpdate(ctx context.Context, itemID id.ID) (*StockItem, error) {
	return r.GetByID(ctx, itemID)
}

// Update implements Repository.
func (r *MemoryRepository) Update(ctx context.Context, it *StockItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[it.ID]
	if !ok {
		return apperror.NewNotFound("stock item", it.ID.String())
	}
	if stored.Version != it.Version {
		return apperror.NewConcurrentModification("stock item", it.ID.String())
	}
	it.Touch()
	r.items[it.ID] = *it
	return nil
}

// UpdateStock implements Repository.
func (r *MemoryRepository) UpdateStock(ctx context.Context, it *StockItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[it.ID]
	if !ok {
		return apperror.NewNotFound("stock item", it.ID.String())
	}
	if stored.Version != it.Version {
		return apperror.NewConcurrentModification("stock item", it.ID.String())
	}
	stored.CurrentStock = it.CurrentStock
	stored.AverageCost = it.AverageCost
	stored.Touch()
	r.items[it.ID] = stored
	it.SetVersion(stored.Version)
	return nil
}

// List implements Repository.
func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockItem], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []*StockItem
	for _, stored := range r.items {
		if filter.Kind != nil && stored.Kind != *filter.Kind {
			continue
		}
		if filter.ActiveOnly && !stored.Active {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(stored.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out := stored
		items = append(items, &out)
	}

	return domain.ListResult[*StockItem]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// GetRecipe implements Repository.
func (r *MemoryRepository) GetRecipe(ctx context.Context, productID id.ID) ([]RecipeLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.recipes[productID]
	out := make([]RecipeLine, len(lines))
	copy(out, lines)
	return out, nil
}

// SaveRecipe implements Repository.
func (r *MemoryRepository) SaveRecipe(ctx context.Context, productID id.ID, lines []RecipeLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]RecipeLine, len(lines))
	copy(stored, lines)
	r.recipes[productID] = stored
	return nil
}

// Ensure compile-time interface compliance.
var _ Repository = (*MemoryRepository)(nil)
