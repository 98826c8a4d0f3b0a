// Package ledger provides the append-only log of stock-changing events.
//
// Adjustments are the audit trail and reconciliation source of truth, but
// never the authority for current stock; that lives on the stock item.
package ledger

import (
	"context"
	"time"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
	"stockforge/internal/domain/catalogs/item"
)

// AdjustmentType classifies a stock-changing event.
type AdjustmentType string

const (
	TypePurchase   AdjustmentType = "purchase"
	TypeSale       AdjustmentType = "sale"
	TypeProduction AdjustmentType = "production"
	TypeWaste      AdjustmentType = "waste"
	TypeCorrection AdjustmentType = "correction"
	TypeReturn     AdjustmentType = "return"
	TypeReversal   AdjustmentType = "reversal"
)

// Valid reports whether the adjustment type is known.
func (t AdjustmentType) Valid() bool {
	switch t {
	case TypePurchase, TypeSale, TypeProduction, TypeWaste,
		TypeCorrection, TypeReturn, TypeReversal:
		return true
	}
	return false
}

// Adjustment is one immutable ledger entry: a signed stock delta with a
// point-in-time before/after snapshot. Only the reversal back-link pair
// (ReversalAdjustmentID, IsReversed) is ever set after creation, exactly once.
//
// The original/reversal pair is modeled as two id fields resolved through the
// repository; the ledger owns all adjustments.
type Adjustment struct {
	ID id.ID `db:"id" json:"id"`

	// Item reference plus kind discriminator.
	ItemID   id.ID     `db:"item_id" json:"itemId"`
	ItemKind item.Kind `db:"item_kind" json:"itemKind"`

	Type AdjustmentType `db:"adjustment_type" json:"adjustmentType"`

	// Quantity is the signed stock delta.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// Stock snapshot around the event.
	PreviousStock types.Quantity `db:"previous_stock" json:"previousStock"`
	NewStock      types.Quantity `db:"new_stock" json:"newStock"`

	// UnitCost is the item's valuation at entry time (frozen for reversals).
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// Optional links to the owning compound record.
	BatchID *id.ID `db:"batch_id" json:"batchId,omitempty"`
	SaleID  *id.ID `db:"sale_id" json:"saleId,omitempty"`

	// Reversal back-links.
	OriginalAdjustmentID *id.ID `db:"original_adjustment_id" json:"originalAdjustmentId,omitempty"`
	ReversalAdjustmentID *id.ID `db:"reversal_adjustment_id" json:"reversalAdjustmentId,omitempty"`
	IsReversed           bool   `db:"is_reversed" json:"isReversed"`

	Reason    string    `db:"reason" json:"reason,omitempty"`
	ActorID   string    `db:"actor_id" json:"actorId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Validate implements entity.Validatable.
func (a *Adjustment) Validate(ctx context.Context) error {
	if !a.Type.Valid() {
		return apperror.NewValidation("unknown adjustment type").
			WithDetail("field", "adjustmentType").
			WithDetail("value", string(a.Type))
	}
	if !a.ItemKind.Valid() {
		return apperror.NewValidation("unknown item kind").
			WithDetail("field", "itemKind")
	}
	if id.IsNil(a.ItemID) {
		return apperror.NewValidation("item is required").
			WithDetail("field", "itemId")
	}
	if a.Quantity.IsZero() {
		return apperror.NewInvalidInput("quantity delta must not be zero")
	}
	if a.ActorID == "" {
		return apperror.NewValidation("actor is required").
			WithDetail("field", "actorId")
	}
	if a.PreviousStock+a.Quantity != a.NewStock {
		return apperror.NewConsistencyViolation("stock snapshot does not match delta").
			WithDetail("previous", a.PreviousStock.Float64()).
			WithDetail("delta", a.Quantity.Float64()).
			WithDetail("new", a.NewStock.Float64())
	}
	if a.NewStock.IsNegative() {
		return apperror.NewConsistencyViolation("adjustment would leave negative stock").
			WithDetail("item_id", a.ItemID.String())
	}
	return nil
}
