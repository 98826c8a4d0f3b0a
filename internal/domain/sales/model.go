// Package sales provides the sale engine: one sale consumes the product's
// recipe materials for the sold unit-count, with full void/restore.
package sales

import (
	"context"
	"time"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/entity"
	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
)

// Status of a sale. Completed sales can be voided exactly once.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusVoided    Status = "voided"
)

// Sale records one sold unit-count of a product and references every ledger
// entry created for its material consumption. Created atomically with the
// consumption; afterwards only the void fields mutate, exactly once.
type Sale struct {
	entity.BaseRecord

	ProductID  id.ID          `db:"product_id" json:"productId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	TotalPrice types.Money    `db:"total_price" json:"totalPrice"`
	Status     Status         `db:"status" json:"status"`

	VoidReason string     `db:"void_reason" json:"voidReason,omitempty"`
	VoidedBy   string     `db:"voided_by" json:"voidedBy,omitempty"`
	VoidedAt   *time.Time `db:"voided_at" json:"voidedAt,omitempty"`

	// Table part: consumption adjustment ids, in recipe line order.
	AdjustmentIDs []id.ID `db:"-" json:"adjustmentIds"`
}

// NewSale creates a completed sale shell; the engine fills the adjustments.
func NewSale(productID id.ID, quantity types.Quantity, totalPrice types.Money, actorID string) *Sale {
	s := &Sale{
		BaseRecord: entity.NewBaseRecord(),
		ProductID:  productID,
		Quantity:   quantity,
		TotalPrice: totalPrice,
		Status:     StatusCompleted,
	}
	s.CreatedBy = actorID
	s.UpdatedBy = actorID
	return s
}

// Void transitions the sale to voided. Idempotence is the caller's concern;
// this only records the transition.
func (s *Sale) Void(reason, actorID string) {
	now := time.Now().UTC()
	s.Status = StatusVoided
	s.VoidReason = reason
	s.VoidedBy = actorID
	s.VoidedAt = &now
	s.UpdatedBy = actorID
}

// Validate implements entity.Validatable.
func (s *Sale) Validate(ctx context.Context) error {
	if id.IsNil(s.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if !s.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}
	if s.TotalPrice.IsNegative() {
		return apperror.NewValidation("total price cannot be negative").
			WithDetail("field", "totalPrice")
	}
	switch s.Status {
	case StatusCompleted, StatusVoided:
	default:
		return apperror.NewConsistencyViolation("unknown sale status").
			WithDetail("status", string(s.Status))
	}
	return nil
}
