// Package item provides the stock item catalog: raw materials and finished
// products, each carrying the current stock level and weighted-average cost.
package item

import (
	"context"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/entity"
	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
)

// Kind discriminates the two concrete stock item kinds.
// It is carried through every adjustment and batch record and handled
// exhaustively at call sites.
type Kind string

const (
	KindMaterial Kind = "material"
	KindProduct  Kind = "product"
)

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	switch k {
	case KindMaterial, KindProduct:
		return true
	}
	return false
}

// StockItem holds identity, current quantity and average cost for one
// material or product. CurrentStock and AverageCost are mutated only through
// the costing engine and persisted with a version compare-and-swap; callers
// never edit them directly.
type StockItem struct {
	entity.BaseRecord

	Kind     Kind   `db:"kind" json:"kind"`
	Name     string `db:"name" json:"name"`
	SKU      string `db:"sku" json:"sku,omitempty"`
	Unit     string `db:"unit" json:"unit"`
	Category string `db:"category" json:"category,omitempty"`
	Active   bool   `db:"active" json:"active"`

	// CurrentStock is the on-hand quantity. Invariant: never negative.
	CurrentStock types.Quantity `db:"current_stock" json:"currentStock"`

	// AverageCost is the weighted-average unit cost. Invariant: never negative.
	AverageCost types.Money `db:"average_cost" json:"averageCost"`
}

// NewStockItem creates a stock item of the given kind.
func NewStockItem(kind Kind, name, unit string) *StockItem {
	return &StockItem{
		BaseRecord:  entity.NewBaseRecord(),
		Kind:        kind,
		Name:        name,
		Unit:        unit,
		Active:      true,
		AverageCost: types.ZeroMoney(),
	}
}

// Validate implements entity.Validatable.
func (i *StockItem) Validate(ctx context.Context) error {
	if !i.Kind.Valid() {
		return apperror.NewValidation("unknown item kind").
			WithDetail("field", "kind").
			WithDetail("value", string(i.Kind))
	}
	if i.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if i.Unit == "" {
		return apperror.NewValidation("unit is required").
			WithDetail("field", "unit")
	}
	if i.CurrentStock.IsNegative() {
		return apperror.NewConsistencyViolation("current stock is negative").
			WithDetail("item_id", i.ID.String())
	}
	if i.AverageCost.IsNegative() {
		return apperror.NewConsistencyViolation("average cost is negative").
			WithDetail("item_id", i.ID.String())
	}
	return nil
}

// StockValue returns the inventory value at the current average cost.
func (i *StockItem) StockValue() types.Money {
	return i.CurrentStock.Decimal().Mul(i.AverageCost)
}

// RecipeLine is one per-unit material requirement of a product (BOM line).
// Recipes are read-only input to the production and sale engines.
type RecipeLine struct {
	ProductID       id.ID          `db:"product_id" json:"productId"`
	LineNo          int            `db:"line_no" json:"lineNo"`
	MaterialID      id.ID          `db:"material_id" json:"materialId"`
	QuantityPerUnit types.Quantity `db:"quantity_per_unit" json:"quantityPerUnit"`
	Unit            string         `db:"unit" json:"unit"`
}

// RequiredFor returns the material quantity needed to make the given
// number of product units.
func (l RecipeLine) RequiredFor(units types.Quantity) types.Quantity {
	return types.NewQuantityFromDecimal(l.QuantityPerUnit.Decimal().Mul(units.Decimal()))
}
