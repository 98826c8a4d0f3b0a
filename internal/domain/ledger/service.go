package ledger

import (
	"context"
	"fmt"
	"time"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
	"stockforge/internal/domain/catalogs/item"
	"stockforge/pkg/logger"
)

// Service provides append, reverse and query operations over the ledger.
// Appends are pure creation; the engines own the stock mutation and call in
// with before/after snapshots taken inside the same transaction.
type Service struct {
	repo Repository
}

// NewService creates a new ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AppendParams describes one ledger entry to create.
type AppendParams struct {
	Item          *item.StockItem
	Type          AdjustmentType
	Quantity      types.Quantity // signed delta
	PreviousStock types.Quantity
	UnitCost      types.Money
	BatchID       *id.ID
	SaleID        *id.ID
	OriginalID    *id.ID
	Reason        string
	ActorID       string
}

// Build constructs the adjustment without persisting it. Used by compound
// operations that collect entries per recipe line and insert them in one
// round trip.
func (s *Service) Build(ctx context.Context, p AppendParams) (*Adjustment, error) {
	adj := &Adjustment{
		ID:                   id.New(),
		ItemID:               p.Item.ID,
		ItemKind:             p.Item.Kind,
		Type:                 p.Type,
		Quantity:             p.Quantity,
		PreviousStock:        p.PreviousStock,
		NewStock:             p.PreviousStock + p.Quantity,
		UnitCost:             p.UnitCost,
		BatchID:              p.BatchID,
		SaleID:               p.SaleID,
		OriginalAdjustmentID: p.OriginalID,
		Reason:               p.Reason,
		ActorID:              p.ActorID,
		CreatedAt:            time.Now().UTC(),
	}

	if err := adj.Validate(ctx); err != nil {
		return nil, err
	}
	if adj.NewStock != p.Item.CurrentStock {
		return nil, apperror.NewConsistencyViolation("ledger snapshot diverges from item stock").
			WithDetail("item_id", p.Item.ID.String()).
			WithDetail("snapshot", adj.NewStock.Float64()).
			WithDetail("item_stock", p.Item.CurrentStock.Float64())
	}
	return adj, nil
}

// Append creates and persists one ledger entry.
func (s *Service) Append(ctx context.Context, p AppendParams) (*Adjustment, error) {
	adj, err := s.Build(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, adj); err != nil {
		return nil, fmt.Errorf("create adjustment: %w", err)
	}
	return adj, nil
}

// AppendAll persists a set of built adjustments in one round trip.
func (s *Service) AppendAll(ctx context.Context, adjustments []*Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	if err := s.repo.CreateBatch(ctx, adjustments); err != nil {
		return fmt.Errorf("create adjustments: %w", err)
	}
	return nil
}

// ReverseParams describes a compensating entry for all or part of an
// original adjustment's effect.
type ReverseParams struct {
	Original *Adjustment

	// Portion is the positive magnitude being undone. May be a fraction of
	// the original for partial reversal of a compound operation.
	Portion types.Quantity

	// Type of the compensating entry (reversal, return, waste).
	Type AdjustmentType

	Item          *item.StockItem
	PreviousStock types.Quantity
	UnitCost      types.Money
	BatchID       *id.ID
	SaleID        *id.ID
	Reason        string
	ActorID       string
}

// Reverse appends a compensating entry whose delta negates the portion of the
// original. When the cumulative reversed amount reaches the original's total,
// the original is marked reversed with a back-link to the last compensating
// entry. The back-link is set exactly once.
func (s *Service) Reverse(ctx context.Context, p ReverseParams) (*Adjustment, error) {
	if p.Original == nil {
		return nil, apperror.NewValidation("original adjustment is required")
	}
	if !p.Portion.IsPositive() {
		return nil, apperror.NewInvalidInput("portion must be positive").
			WithDetail("adjustment_id", p.Original.ID.String())
	}
	if p.Original.IsReversed {
		return nil, apperror.NewAlreadyClosed("adjustment", p.Original.ID.String())
	}

	total := p.Original.Quantity.Abs()
	already, err := s.repo.SumReversedQuantity(ctx, p.Original.ID)
	if err != nil {
		return nil, fmt.Errorf("sum reversed: %w", err)
	}
	if already+p.Portion > total {
		return nil, apperror.NewOverReversal(
			p.Original.ID.String(),
			p.Portion.Float64(),
			(total - already).Float64(),
		)
	}

	// The compensating delta points opposite to the original's.
	delta := p.Portion
	if p.Original.Quantity.IsPositive() {
		delta = delta.Neg()
	}

	entry, err := s.Append(ctx, AppendParams{
		Item:          p.Item,
		Type:          p.Type,
		Quantity:      delta,
		PreviousStock: p.PreviousStock,
		UnitCost:      p.UnitCost,
		BatchID:       p.BatchID,
		SaleID:        p.SaleID,
		OriginalID:    &p.Original.ID,
		Reason:        p.Reason,
		ActorID:       p.ActorID,
	})
	if err != nil {
		return nil, err
	}

	if already+p.Portion == total {
		if err := s.repo.MarkReversed(ctx, p.Original.ID, entry.ID); err != nil {
			return nil, fmt.Errorf("mark reversed: %w", err)
		}
		logger.Debug(ctx, "adjustment fully reversed",
			"adjustment_id", p.Original.ID,
			"reversal_id", entry.ID,
		)
	}

	return entry, nil
}

// GetByID retrieves one adjustment.
func (s *Service) GetByID(ctx context.Context, adjustmentID id.ID) (*Adjustment, error) {
	return s.repo.GetByID(ctx, adjustmentID)
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ListByItem returns the item's history newest-first. The page is finite and
// the cursor restarts the read after the last returned entry; UUIDv7 ids make
// the id itself the time-ordered cursor.
func (s *Service) ListByItem(ctx context.Context, itemID id.ID, limit int, cursor *id.ID) (Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, err := s.repo.ListByItem(ctx, itemID, limit+1, cursor)
	if err != nil {
		return Page{}, fmt.Errorf("list by item: %w", err)
	}

	page := Page{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1].ID
		page.NextCursor = &last
	}
	return page, nil
}

// ListByBatch returns all adjustments linked to a production batch.
func (s *Service) ListByBatch(ctx context.Context, batchID id.ID) ([]*Adjustment, error) {
	return s.repo.ListByBatch(ctx, batchID)
}

// ListBySale returns all adjustments linked to a sale.
func (s *Service) ListBySale(ctx context.Context, saleID id.ID) ([]*Adjustment, error) {
	return s.repo.ListBySale(ctx, saleID)
}

// SumDeltasByItem returns the signed sum of all deltas for an item.
func (s *Service) SumDeltasByItem(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	return s.repo.SumDeltasByItem(ctx, itemID)
}

// ReversedQuantity returns the absolute cumulative quantity already undone
// against the original adjustment.
func (s *Service) ReversedQuantity(ctx context.Context, originalID id.ID) (types.Quantity, error) {
	return s.repo.SumReversedQuantity(ctx, originalID)
}
