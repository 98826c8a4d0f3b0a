package item

import (
	"context"
	"fmt"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/tx"
	"stockforge/internal/domain"
	"stockforge/pkg/logger"
)

// Service provides catalog operations for stock items.
// Stock levels and costs are owned by the engines; this service only
// manages identity, metadata and recipes.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new item catalog service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// Create creates a new stock item.
func (s *Service) Create(ctx context.Context, it *StockItem) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, it); err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	logger.Info(ctx, "stock item created",
		"id", it.ID,
		"kind", it.Kind,
		"name", it.Name,
	)
	return nil
}

// GetByID retrieves a stock item.
func (s *Service) GetByID(ctx context.Context, itemID id.ID) (*StockItem, error) {
	return s.repo.GetByID(ctx, itemID)
}

// List retrieves stock items with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockItem], error) {
	return s.repo.List(ctx, filter)
}

// Update updates item metadata (name, unit, category, active flag).
// Stock and cost fields are ignored; only the engines may change them.
func (s *Service) Update(ctx context.Context, it *StockItem) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, it)
}

// GetRecipe returns the ordered recipe of a product.
func (s *Service) GetRecipe(ctx context.Context, productID id.ID) ([]RecipeLine, error) {
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Kind != KindProduct {
		return nil, apperror.NewValidation("recipes belong to products").
			WithDetail("item_id", productID.String()).
			WithDetail("kind", string(product.Kind))
	}
	return s.repo.GetRecipe(ctx, productID)
}

// SetRecipe replaces the recipe of a product. Every line must reference an
// existing material with a positive per-unit quantity.
func (s *Service) SetRecipe(ctx context.Context, productID id.ID, lines []RecipeLine) error {
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if product.Kind != KindProduct {
		return apperror.NewValidation("recipes belong to products").
			WithDetail("item_id", productID.String()).
			WithDetail("kind", string(product.Kind))
	}
	if len(lines) == 0 {
		return apperror.NewValidation("at least one recipe line is required").
			WithDetail("field", "lines")
	}

	// One line per material: reversal accounting resolves the original
	// consumption entry per material id.
	seen := make(map[id.ID]int, len(lines))
	for i := range lines {
		line := &lines[i]
		if !line.QuantityPerUnit.IsPositive() {
			return apperror.NewInvalidInput("quantity per unit must be positive").
				WithDetail("lineNo", i+1)
		}
		if first, dup := seen[line.MaterialID]; dup {
			return apperror.NewValidation("material appears on more than one recipe line").
				WithDetail("material_id", line.MaterialID.String()).
				WithDetail("lineNo", i+1).
				WithDetail("firstLineNo", first)
		}
		seen[line.MaterialID] = i + 1
		material, err := s.repo.GetByID(ctx, line.MaterialID)
		if err != nil {
			return err
		}
		if material.Kind != KindMaterial {
			return apperror.NewValidation("recipe lines must reference materials").
				WithDetail("lineNo", i+1).
				WithDetail("item_id", line.MaterialID.String())
		}
		line.ProductID = productID
		line.LineNo = i + 1
		if line.Unit == "" {
			line.Unit = material.Unit
		}
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SaveRecipe(ctx, productID, lines)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "recipe updated",
		"product_id", productID,
		"lines", len(lines),
	)
	return nil
}
