package sales

import (
	"context"
	"fmt"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/tx"
	"stockforge/internal/core/types"
	"stockforge/internal/domain"
	"stockforge/internal/domain/catalogs/item"
	"stockforge/internal/domain/costing"
	"stockforge/internal/domain/ledger"
	"stockforge/pkg/logger"
)

// Service orchestrates sales: material consumption for a sold unit-count as
// one atomic unit, and full void/restore. Selling draws on raw materials via
// the recipe; finished-good stock is not touched.
type Service struct {
	repo      Repository
	items     item.Repository
	ledger    *ledger.Service
	txManager tx.Manager
}

// NewService creates a new sale service.
func NewService(repo Repository, items item.Repository, ledgerSvc *ledger.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		items:     items,
		ledger:    ledgerSvc,
		txManager: txManager,
	}
}

// CreateParams are the inputs to CreateSale.
type CreateParams struct {
	ProductID  id.ID
	Quantity   types.Quantity
	TotalPrice types.Money
	ActorID    string
}

// CreateSale consumes every recipe line for the sold quantity. Availability
// is verified for all lines before anything mutates; a single short line
// fails the whole sale with the complete shortage list.
func (s *Service) CreateSale(ctx context.Context, p CreateParams) (*Sale, error) {
	if !p.Quantity.IsPositive() {
		return nil, apperror.NewInvalidInput("quantity must be positive").
			WithDetail("field", "quantity")
	}
	if p.TotalPrice.IsNegative() {
		return nil, apperror.NewInvalidInput("total price cannot be negative").
			WithDetail("field", "totalPrice")
	}
	if p.ActorID == "" {
		return nil, apperror.NewValidation("actor is required").
			WithDetail("field", "actorId")
	}

	var created *Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		product, err := s.items.GetByID(ctx, p.ProductID)
		if err != nil {
			return err
		}
		if product.Kind != item.KindProduct {
			return apperror.NewValidation("only products can be sold").
				WithDetail("item_id", p.ProductID.String()).
				WithDetail("kind", string(product.Kind))
		}

		recipe, err := s.items.GetRecipe(ctx, p.ProductID)
		if err != nil {
			return fmt.Errorf("get recipe: %w", err)
		}
		if len(recipe) == 0 {
			return apperror.NewValidation("product has no recipe").
				WithDetail("product_id", p.ProductID.String())
		}

		ids := make([]id.ID, 0, len(recipe))
		for _, line := range recipe {
			// A duplicated material would pass the per-line availability
			// check below while the combined demand exceeds the stock.
			for _, prior := range ids {
				if prior == line.MaterialID {
					return apperror.NewConsistencyViolation("recipe lists a material more than once").
						WithDetail("product_id", p.ProductID.String()).
						WithDetail("material_id", line.MaterialID.String())
				}
			}
			ids = append(ids, line.MaterialID)
		}
		locked, err := item.LockAll(ctx, s.items, ids)
		if err != nil {
			return err
		}

		// Availability pass across every line before any mutation.
		required := make([]types.Quantity, len(recipe))
		var shortages []apperror.Shortage
		for i, line := range recipe {
			required[i] = line.RequiredFor(p.Quantity)
			material := locked[line.MaterialID]
			if material.CurrentStock < required[i] {
				shortages = append(shortages, apperror.Shortage{
					MaterialID: line.MaterialID.String(),
					Required:   required[i].Float64(),
					Available:  material.CurrentStock.Float64(),
					Shortage:   (required[i] - material.CurrentStock).Float64(),
				})
			}
		}
		if len(shortages) > 0 {
			return apperror.NewInsufficientMaterial(shortages)
		}

		sale := NewSale(p.ProductID, p.Quantity, p.TotalPrice, p.ActorID)
		adjustments := make([]*ledger.Adjustment, 0, len(recipe))

		for i, line := range recipe {
			material := locked[line.MaterialID]
			unitCost := material.AverageCost
			previous := material.CurrentStock
			if err := costing.ApplyDecrease(material, required[i]); err != nil {
				return err
			}

			adj, err := s.ledger.Build(ctx, ledger.AppendParams{
				Item:          material,
				Type:          ledger.TypeSale,
				Quantity:      required[i].Neg(),
				PreviousStock: previous,
				UnitCost:      unitCost,
				SaleID:        &sale.ID,
				ActorID:       p.ActorID,
			})
			if err != nil {
				return err
			}
			adjustments = append(adjustments, adj)
			sale.AdjustmentIDs = append(sale.AdjustmentIDs, adj.ID)
		}

		if err := sale.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		for _, it := range locked {
			if err := s.items.UpdateStock(ctx, it); err != nil {
				return err
			}
		}
		if err := s.ledger.AppendAll(ctx, adjustments); err != nil {
			return err
		}

		created = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale created",
		"sale_id", created.ID,
		"product_id", p.ProductID,
		"quantity", p.Quantity,
		"total_price", p.TotalPrice,
	)
	return created, nil
}

// VoidSale restores every material consumed by the sale, in full. Sales are
// void-in-full; there is no partial void. Each consumption entry is restored
// at its own frozen unit cost and back-linked by a return entry.
func (s *Service) VoidSale(ctx context.Context, saleID id.ID, reason, actorID string) (*Sale, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required").
			WithDetail("field", "actorId")
	}

	var voided *Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusCompleted {
			return apperror.NewAlreadyClosed("sale", saleID.String())
		}

		originals := make([]*ledger.Adjustment, 0, len(sale.AdjustmentIDs))
		ids := make([]id.ID, 0, len(sale.AdjustmentIDs))
		for _, adjID := range sale.AdjustmentIDs {
			original, err := s.ledger.GetByID(ctx, adjID)
			if err != nil {
				return err
			}
			originals = append(originals, original)
			ids = append(ids, original.ItemID)
		}
		locked, err := item.LockAll(ctx, s.items, ids)
		if err != nil {
			return err
		}

		for _, original := range originals {
			material := locked[original.ItemID]
			restore := original.Quantity.Abs()

			previous := material.CurrentStock
			if err := costing.ApplyIncrease(material, restore, restore.Decimal().Mul(original.UnitCost)); err != nil {
				return err
			}
			if _, err := s.ledger.Reverse(ctx, ledger.ReverseParams{
				Original:      original,
				Portion:       restore,
				Type:          ledger.TypeReturn,
				Item:          material,
				PreviousStock: previous,
				UnitCost:      original.UnitCost,
				SaleID:        &sale.ID,
				Reason:        reason,
				ActorID:       actorID,
			}); err != nil {
				return err
			}
		}

		sale.Void(reason, actorID)
		if err := s.repo.UpdateStatus(ctx, sale); err != nil {
			return err
		}
		for _, it := range locked {
			if err := s.items.UpdateStock(ctx, it); err != nil {
				return err
			}
		}

		voided = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale voided",
		"sale_id", saleID,
		"reason", reason,
	)
	return voided, nil
}

// GetByID retrieves a sale.
func (s *Service) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.repo.GetByID(ctx, saleID)
}

// List retrieves sales with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Sale], error) {
	return s.repo.List(ctx, filter)
}
