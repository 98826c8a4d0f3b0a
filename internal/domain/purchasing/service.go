// Package purchasing provides the single-item acquisition path: material
// purchases feeding the costing engine, purchase deletion, and manual stock
// corrections.
package purchasing

import (
	"context"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/tx"
	"stockforge/internal/core/types"
	"stockforge/internal/domain/catalogs/item"
	"stockforge/internal/domain/costing"
	"stockforge/internal/domain/ledger"
	"stockforge/pkg/logger"
)

// Service orchestrates purchases and corrections.
type Service struct {
	items     item.Repository
	ledger    *ledger.Service
	txManager tx.Manager
}

// NewService creates a new purchasing service.
func NewService(items item.Repository, ledgerSvc *ledger.Service, txManager tx.Manager) *Service {
	return &Service{
		items:     items,
		ledger:    ledgerSvc,
		txManager: txManager,
	}
}

// CreatePurchase acquires quantity of a material for totalCost, rolling the
// material's weighted-average cost. Returns the ledger entry created.
func (s *Service) CreatePurchase(ctx context.Context, materialID id.ID, quantity types.Quantity, totalCost types.Money, actorID string) (*ledger.Adjustment, error) {
	if !quantity.IsPositive() {
		return nil, apperror.NewInvalidInput("quantity must be positive").
			WithDetail("field", "quantity")
	}
	if totalCost.IsNegative() {
		return nil, apperror.NewInvalidInput("total cost cannot be negative").
			WithDetail("field", "totalCost")
	}
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required").
			WithDetail("field", "actorId")
	}

	var created *ledger.Adjustment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		material, err := s.items.GetForUpdate(ctx, materialID)
		if err != nil {
			return err
		}
		if material.Kind != item.KindMaterial {
			return apperror.NewValidation("only materials can be purchased").
				WithDetail("item_id", materialID.String()).
				WithDetail("kind", string(material.Kind))
		}

		previous := material.CurrentStock
		if err := costing.ApplyIncrease(material, quantity, totalCost); err != nil {
			return err
		}

		adj, err := s.ledger.Append(ctx, ledger.AppendParams{
			Item:          material,
			Type:          ledger.TypePurchase,
			Quantity:      quantity,
			PreviousStock: previous,
			UnitCost:      totalCost.Div(quantity.Decimal()),
			ActorID:       actorID,
		})
		if err != nil {
			return err
		}
		if err := s.items.UpdateStock(ctx, material); err != nil {
			return err
		}

		created = adj
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase created",
		"adjustment_id", created.ID,
		"material_id", materialID,
		"quantity", quantity,
		"total_cost", totalCost,
	)
	return created, nil
}

// DeletePurchase undoes one purchase entry in full: the purchased quantity
// and its historical value come back out of stock. Rejected when the stock
// has since been consumed below the purchased quantity.
func (s *Service) DeletePurchase(ctx context.Context, adjustmentID id.ID, reason, actorID string) (*ledger.Adjustment, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required").
			WithDetail("field", "actorId")
	}

	var entry *ledger.Adjustment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		original, err := s.ledger.GetByID(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if original.Type != ledger.TypePurchase {
			return apperror.NewInvalidInput("adjustment is not a purchase").
				WithDetail("adjustment_id", adjustmentID.String()).
				WithDetail("type", string(original.Type))
		}
		if original.IsReversed {
			return apperror.NewAlreadyClosed("purchase", adjustmentID.String())
		}

		material, err := s.items.GetForUpdate(ctx, original.ItemID)
		if err != nil {
			return err
		}

		// A competing delete may have committed between the first read and
		// the row lock; re-read so the race reports AlreadyClosed rather
		// than an over-reversal.
		original, err = s.ledger.GetByID(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if original.IsReversed {
			return apperror.NewAlreadyClosed("purchase", adjustmentID.String())
		}

		quantity := original.Quantity.Abs()
		previous := material.CurrentStock
		if err := costing.ApplyValuedDecrease(material, quantity, original.UnitCost); err != nil {
			return err
		}

		entry, err = s.ledger.Reverse(ctx, ledger.ReverseParams{
			Original:      original,
			Portion:       quantity,
			Type:          ledger.TypeReversal,
			Item:          material,
			PreviousStock: previous,
			UnitCost:      original.UnitCost,
			Reason:        reason,
			ActorID:       actorID,
		})
		if err != nil {
			return err
		}
		return s.items.UpdateStock(ctx, material)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase deleted",
		"adjustment_id", adjustmentID,
		"reversal_id", entry.ID,
	)
	return entry, nil
}

// CreateCorrection applies a manual signed stock delta. Positive corrections
// are valued at unitCost when given, rolling the weighted average like a
// purchase, otherwise at the item's current average cost, so the average
// holds. Negative corrections follow the usual consumption rules and never
// revalue, so unitCost is rejected there.
func (s *Service) CreateCorrection(ctx context.Context, itemID id.ID, delta types.Quantity, unitCost *types.Money, reason, actorID string) (*ledger.Adjustment, error) {
	if delta.IsZero() {
		return nil, apperror.NewInvalidInput("delta must be non-zero").
			WithDetail("field", "delta")
	}
	if unitCost != nil {
		if !delta.IsPositive() {
			return nil, apperror.NewInvalidInput("unit cost applies to positive corrections only").
				WithDetail("field", "unitCost")
		}
		if unitCost.IsNegative() {
			return nil, apperror.NewInvalidInput("unit cost must not be negative").
				WithDetail("field", "unitCost")
		}
	}
	if reason == "" {
		return nil, apperror.NewValidation("correction reason is required").
			WithDetail("field", "reason")
	}
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required").
			WithDetail("field", "actorId")
	}

	var created *ledger.Adjustment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		it, err := s.items.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}

		valuation := it.AverageCost
		if unitCost != nil {
			valuation = *unitCost
		}
		previous := it.CurrentStock
		if delta.IsPositive() {
			err = costing.ApplyIncrease(it, delta, delta.Decimal().Mul(valuation))
		} else {
			err = costing.ApplyDecrease(it, delta.Abs())
		}
		if err != nil {
			return err
		}

		adj, err := s.ledger.Append(ctx, ledger.AppendParams{
			Item:          it,
			Type:          ledger.TypeCorrection,
			Quantity:      delta,
			PreviousStock: previous,
			UnitCost:      valuation,
			Reason:        reason,
			ActorID:       actorID,
		})
		if err != nil {
			return err
		}
		if err := s.items.UpdateStock(ctx, it); err != nil {
			return err
		}

		created = adj
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "correction created",
		"adjustment_id", created.ID,
		"item_id", itemID,
		"delta", delta,
		"reason", reason,
	)
	return created, nil
}
