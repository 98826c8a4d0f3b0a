package production

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

// Service orchestrates production batches: multi-material consumption plus a
// single product output as one atomic unit, and the partial reversal/waste
// bookkeeping over the batch lifetime.
type Service struct {
	repo      Repository
	items     item.Repository
	ledger    *ledger.Service
	txManager tx.Manager
}

// NewService creates a new production batch service.
func NewService(repo Repository, items item.Repository, ledgerSvc *ledger.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		items:     items,
		ledger:    ledgerSvc,
		txManager: txManager,
	}
}

// Result describes the outcome of a reversal or waste operation.
type Result struct {
	Batch       *Batch               `json:"batch"`
	Adjustments []*ledger.Adjustment `json:"adjustments"`
}

// CreateBatch produces quantity units of the product, consuming every recipe
// line. Availability is verified for all lines before anything mutates; a
// single short line fails the whole batch with the complete shortage list.
func (s *Service) CreateBatch(ctx context.Context, productID id.ID, quantity types.Quantity, notes, actorID string) (*Batch, error) {
	if !quantity.IsPositive() {
		return nil, apperror.NewInvalidInput("quantity must be positive").
			WithDetail("field", "quantity")
	}
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required").
			WithDetail("field", "actorId")
	}

	var created *Batch
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		product, err := s.items.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if product.Kind != item.KindProduct {
			return apperror.NewValidation("only products can be produced").
				WithDetail("item_id", productID.String()).
				WithDetail("kind", string(product.Kind))
		}

		recipe, err := s.items.GetRecipe(ctx, productID)
		if err != nil {
			return fmt.Errorf("get recipe: %w", err)
		}
		if len(recipe) == 0 {
			return apperror.NewValidation("product has no recipe").
				WithDetail("product_id", productID.String())
		}

		ids := make([]id.ID, 0, len(recipe)+1)
		ids = append(ids, productID)
		for _, line := range recipe {
			// The catalog rejects duplicate lines on write; a stored recipe
			// that has them would collapse the per-material reversal
			// accounting, so refuse to consume it.
			for _, prior := range ids[1:] {
				if prior == line.MaterialID {
					return apperror.NewConsistencyViolation("recipe lists a material more than once").
						WithDetail("product_id", productID.String()).
						WithDetail("material_id", line.MaterialID.String())
				}
			}
			ids = append(ids, line.MaterialID)
		}
		locked, err := item.LockAll(ctx, s.items, ids)
		if err != nil {
			return err
		}
		product = locked[productID]

		// Availability pass across every line before any mutation.
		required := make([]types.Quantity, len(recipe))
		var shortages []apperror.Shortage
		for i, line := range recipe {
			required[i] = line.RequiredFor(quantity)
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

		batch := NewBatch(productID, quantity, notes, actorID)
		totalCost := types.ZeroMoney()
		lines := make([]MaterialCost, 0, len(recipe))
		adjustments := make([]*ledger.Adjustment, 0, len(recipe)+1)

		for i, line := range recipe {
			material := locked[line.MaterialID]

			// Unit cost frozen before the decrement values later reversals.
			unitCost := material.AverageCost
			previous := material.CurrentStock
			if err := costing.ApplyDecrease(material, required[i]); err != nil {
				return err
			}

			lineCost := required[i].Decimal().Mul(unitCost)
			totalCost = totalCost.Add(lineCost)
			lines = append(lines, MaterialCost{
				BatchID:    batch.ID,
				LineNo:     i + 1,
				MaterialID: line.MaterialID,
				Quantity:   required[i],
				UnitCost:   unitCost,
				TotalCost:  lineCost,
			})

			adj, err := s.ledger.Build(ctx, ledger.AppendParams{
				Item:          material,
				Type:          ledger.TypeProduction,
				Quantity:      required[i].Neg(),
				PreviousStock: previous,
				UnitCost:      unitCost,
				BatchID:       &batch.ID,
				Reason:        notes,
				ActorID:       actorID,
			})
			if err != nil {
				return err
			}
			adjustments = append(adjustments, adj)
		}

		batch.TotalCost = totalCost
		batch.UnitCost = totalCost.Div(quantity.Decimal())
		batch.MaterialCosts = lines

		previous := product.CurrentStock
		if err := costing.ApplyIncrease(product, quantity, totalCost); err != nil {
			return err
		}
		productAdj, err := s.ledger.Build(ctx, ledger.AppendParams{
			Item:          product,
			Type:          ledger.TypeProduction,
			Quantity:      quantity,
			PreviousStock: previous,
			UnitCost:      batch.UnitCost,
			BatchID:       &batch.ID,
			Reason:        notes,
			ActorID:       actorID,
		})
		if err != nil {
			return err
		}
		adjustments = append(adjustments, productAdj)

		if err := batch.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, batch); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		if err := s.repo.SaveLines(ctx, batch.ID, lines); err != nil {
			return fmt.Errorf("save batch lines: %w", err)
		}
		for _, it := range locked {
			if err := s.items.UpdateStock(ctx, it); err != nil {
				return err
			}
		}
		if err := s.ledger.AppendAll(ctx, adjustments); err != nil {
			return err
		}

		created = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "production batch created",
		"batch_id", created.ID,
		"product_id", productID,
		"quantity", quantity,
		"total_cost", created.TotalCost,
	)
	return created, nil
}

// ReverseBatch undoes quantity units of the batch: finished goods come off
// the product and every recipe line is restored proportionally at its frozen
// unit cost. Repeatable until the reversed+wasted budget is exhausted.
func (s *Service) ReverseBatch(ctx context.Context, batchID id.ID, quantity types.Quantity, reason, actorID string) (*Result, error) {
	return s.unwind(ctx, batchID, quantity, ledger.TypeReversal, reason, actorID)
}

// WasteBatch removes quantity finished units without restoring any material:
// wasted goods are gone and the raw materials already consumed are not
// recoverable. Shares the reversed+wasted budget with ReverseBatch.
func (s *Service) WasteBatch(ctx context.Context, batchID id.ID, quantity types.Quantity, reason, actorID string) (*Result, error) {
	return s.unwind(ctx, batchID, quantity, ledger.TypeWaste, reason, actorID)
}

func (s *Service) unwind(ctx context.Context, batchID id.ID, quantity types.Quantity, kind ledger.AdjustmentType, reason, actorID string) (*Result, error) {
	if !quantity.IsPositive() {
		return nil, apperror.NewInvalidInput("quantity must be positive").
			WithDetail("field", "quantity")
	}
	if actorID == "" {
		return nil, apperror.NewValidation("actor is required").
			WithDetail("field", "actorId")
	}

	var result *Result
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batch, err := s.repo.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		lines, err := s.repo.GetLines(ctx, batchID)
		if err != nil {
			return fmt.Errorf("get batch lines: %w", err)
		}
		batch.MaterialCosts = lines

		if batch.Status() == StatusClosed {
			return apperror.NewAlreadyClosed("production batch", batchID.String())
		}
		remaining := batch.Remaining()
		if quantity > remaining {
			return apperror.NewOverReversal(batchID.String(), quantity.Float64(), remaining.Float64())
		}

		ids := make([]id.ID, 0, len(lines)+1)
		ids = append(ids, batch.ProductID)
		if kind == ledger.TypeReversal {
			for _, line := range lines {
				ids = append(ids, line.MaterialID)
			}
		}
		locked, err := item.LockAll(ctx, s.items, ids)
		if err != nil {
			return err
		}
		product := locked[batch.ProductID]

		// Finished units already consumed downstream cannot be clawed back.
		if product.CurrentStock < quantity {
			return apperror.NewCannotReverse(batchID.String(),
				"finished goods no longer in stock")
		}

		originals, err := s.originalsByItem(ctx, batchID)
		if err != nil {
			return err
		}

		var adjustments []*ledger.Adjustment

		if kind == ledger.TypeReversal {
			ratio := quantity.Decimal().Div(batch.Quantity.Decimal())
			for _, line := range lines {
				material := locked[line.MaterialID]
				original := originals[line.MaterialID]
				if original == nil {
					return apperror.NewConsistencyViolation("batch has no production entry for material").
						WithDetail("batch_id", batchID.String()).
						WithDetail("material_id", line.MaterialID.String())
				}

				restore := types.NewQuantityFromDecimal(line.Quantity.Decimal().Mul(ratio))
				already, err := s.ledger.ReversedQuantity(ctx, original.ID)
				if err != nil {
					return err
				}
				if lineRemaining := original.Quantity.Abs() - already; restore > lineRemaining {
					restore = lineRemaining
				}
				if !restore.IsPositive() {
					continue
				}

				// Re-blends the frozen historical cost into the material's
				// current average; an approximation, not an exact unwind.
				previous := material.CurrentStock
				if err := costing.ApplyIncrease(material, restore, restore.Decimal().Mul(line.UnitCost)); err != nil {
					return err
				}
				entry, err := s.ledger.Reverse(ctx, ledger.ReverseParams{
					Original:      original,
					Portion:       restore,
					Type:          ledger.TypeReversal,
					Item:          material,
					PreviousStock: previous,
					UnitCost:      line.UnitCost,
					BatchID:       &batch.ID,
					Reason:        reason,
					ActorID:       actorID,
				})
				if err != nil {
					return err
				}
				adjustments = append(adjustments, entry)
			}
		}

		productOriginal := originals[batch.ProductID]
		if productOriginal == nil {
			return apperror.NewConsistencyViolation("batch has no production entry for product").
				WithDetail("batch_id", batchID.String())
		}
		previous := product.CurrentStock
		if err := costing.ApplyValuedDecrease(product, quantity, batch.UnitCost); err != nil {
			return err
		}
		productEntry, err := s.ledger.Reverse(ctx, ledger.ReverseParams{
			Original:      productOriginal,
			Portion:       quantity,
			Type:          kind,
			Item:          product,
			PreviousStock: previous,
			UnitCost:      batch.UnitCost,
			BatchID:       &batch.ID,
			Reason:        reason,
			ActorID:       actorID,
		})
		if err != nil {
			return err
		}
		adjustments = append(adjustments, productEntry)

		switch kind {
		case ledger.TypeReversal:
			batch.ReversedQuantity += quantity
		case ledger.TypeWaste:
			batch.WastedQuantity += quantity
		default:
			return apperror.NewConsistencyViolation("unexpected unwind kind").
				WithDetail("kind", string(kind))
		}
		batch.UpdatedBy = actorID

		if err := batch.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.UpdateProgress(ctx, batch); err != nil {
			return err
		}
		for _, it := range locked {
			if err := s.items.UpdateStock(ctx, it); err != nil {
				return err
			}
		}

		result = &Result{Batch: batch, Adjustments: adjustments}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "production batch unwound",
		"batch_id", batchID,
		"kind", kind,
		"quantity", quantity,
		"status", result.Batch.Status(),
	)
	return result, nil
}

// originalsByItem indexes the batch's original production entries by item.
func (s *Service) originalsByItem(ctx context.Context, batchID id.ID) (map[id.ID]*ledger.Adjustment, error) {
	entries, err := s.ledger.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch adjustments: %w", err)
	}
	originals := make(map[id.ID]*ledger.Adjustment)
	for _, e := range entries {
		if e.Type == ledger.TypeProduction {
			originals[e.ItemID] = e
		}
	}
	return originals, nil
}

// CanReverseResult is the advisory answer; the mutating call re-validates
// independently and is authoritative.
type CanReverseResult struct {
	CanReverse bool   `json:"canReverse"`
	Reason     string `json:"reason,omitempty"`
}

// CanReverse reports whether any positive quantity of the batch could
// currently be reversed.
func (s *Service) CanReverse(ctx context.Context, batchID id.ID) (CanReverseResult, error) {
	batch, err := s.repo.GetByID(ctx, batchID)
	if err != nil {
		return CanReverseResult{}, err
	}
	if batch.Status() == StatusClosed {
		return CanReverseResult{Reason: "batch fully closed"}, nil
	}

	product, err := s.items.GetByID(ctx, batch.ProductID)
	if err != nil {
		return CanReverseResult{}, err
	}
	if !product.CurrentStock.IsPositive() {
		return CanReverseResult{Reason: "finished goods no longer in stock"}, nil
	}

	return CanReverseResult{CanReverse: true}, nil
}

// GetByID retrieves a batch with its consumption snapshot.
func (s *Service) GetByID(ctx context.Context, batchID id.ID) (*Batch, error) {
	batch, err := s.repo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("get batch lines: %w", err)
	}
	batch.MaterialCosts = lines
	return batch, nil
}

// List retrieves batches with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Batch], error) {
	return s.repo.List(ctx, filter)
}
