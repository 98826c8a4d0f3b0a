// Package production provides the production batch engine: one batch
// converts raw materials into finished-good stock per the product's recipe,
// then tracks partial reversal and waste over its lifetime.
package production

import (
	"context"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/entity"
	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
)

// Status is derived from the reversed/wasted budget, never stored.
type Status string

const (
	// StatusActive: nothing reversed or wasted yet.
	StatusActive Status = "active"
	// StatusPartiallyClosed: 0 < reversed+wasted < quantity.
	StatusPartiallyClosed Status = "partially_closed"
	// StatusClosed: reversed+wasted == quantity. Terminal.
	StatusClosed Status = "closed"
)

// MaterialCost is the consumption snapshot of one recipe line: quantity
// consumed for the whole batch and the material's unit cost frozen at
// consumption time, so later reversals are valued independently of
// subsequent cost drift.
type MaterialCost struct {
	BatchID    id.ID          `db:"batch_id" json:"batchId"`
	LineNo     int            `db:"line_no" json:"lineNo"`
	MaterialID id.ID          `db:"material_id" json:"materialId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	UnitCost   types.Money    `db:"unit_cost" json:"unitCost"`
	TotalCost  types.Money    `db:"total_cost" json:"totalCost"`
}

// Batch is one production run. Created atomically with its material
// consumption; afterwards only ReversedQuantity and WastedQuantity mutate.
type Batch struct {
	entity.BaseRecord

	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`

	// Valuation derived from the material snapshot at creation.
	UnitCost  types.Money `db:"unit_cost" json:"unitCost"`
	TotalCost types.Money `db:"total_cost" json:"totalCost"`

	// Invariant: ReversedQuantity + WastedQuantity <= Quantity.
	ReversedQuantity types.Quantity `db:"reversed_quantity" json:"reversedQuantity"`
	WastedQuantity   types.Quantity `db:"wasted_quantity" json:"wastedQuantity"`

	Notes string `db:"notes" json:"notes,omitempty"`

	// Table part: per-material consumption snapshot.
	MaterialCosts []MaterialCost `db:"-" json:"materialCosts"`
}

// NewBatch creates a batch shell; the engine fills valuation and lines.
func NewBatch(productID id.ID, quantity types.Quantity, notes, actorID string) *Batch {
	b := &Batch{
		BaseRecord: entity.NewBaseRecord(),
		ProductID:  productID,
		Quantity:   quantity,
		Notes:      notes,
	}
	b.CreatedBy = actorID
	b.UpdatedBy = actorID
	return b
}

// ClosedQuantity is the consumed share of the batch budget.
func (b *Batch) ClosedQuantity() types.Quantity {
	return b.ReversedQuantity + b.WastedQuantity
}

// Remaining is the budget still open for reversal or waste.
func (b *Batch) Remaining() types.Quantity {
	return b.Quantity - b.ClosedQuantity()
}

// Status derives the lifecycle state from the budget.
func (b *Batch) Status() Status {
	closed := b.ClosedQuantity()
	switch {
	case closed.IsZero():
		return StatusActive
	case closed >= b.Quantity:
		return StatusClosed
	default:
		return StatusPartiallyClosed
	}
}

// Validate implements entity.Validatable.
func (b *Batch) Validate(ctx context.Context) error {
	if id.IsNil(b.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if !b.Quantity.IsPositive() {
		return apperror.NewInvalidInput("quantity must be positive").
			WithDetail("field", "quantity")
	}
	if b.CreatedBy == "" {
		return apperror.NewValidation("actor is required").
			WithDetail("field", "actorId")
	}
	if b.ReversedQuantity.IsNegative() || b.WastedQuantity.IsNegative() {
		return apperror.NewConsistencyViolation("negative reversal budget").
			WithDetail("batch_id", b.ID.String())
	}
	if b.ClosedQuantity() > b.Quantity {
		return apperror.NewConsistencyViolation("reversed+wasted exceeds batch quantity").
			WithDetail("batch_id", b.ID.String()).
			WithDetail("closed", b.ClosedQuantity().Float64()).
			WithDetail("quantity", b.Quantity.Float64())
	}
	return nil
}
