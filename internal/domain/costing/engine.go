// Package costing implements weighted-average inventory valuation.
//
// The engine is pure: it mutates an in-memory StockItem and leaves
// persistence and locking to the caller. Average cost is revalued only on
// acquisition; consumption never changes it. This deliberately trades
// per-lot (FIFO/LIFO) precision for O(1) state and order-independent cost
// under concurrent purchases.
package costing

import (
	"stockforge/internal/core/apperror"
	"stockforge/internal/core/types"
	"stockforge/internal/domain/catalogs/item"
)

// ApplyIncrease adds quantity at the given total acquisition cost and
// recomputes the weighted-average unit cost:
//
//	newAverage = (currentStock*averageCost + totalCost) / (currentStock + quantity)
func ApplyIncrease(it *item.StockItem, quantity types.Quantity, totalCost types.Money) error {
	if !quantity.IsPositive() {
		return apperror.NewInvalidInput("quantity must be positive").
			WithDetail("item_id", it.ID.String()).
			WithDetail("quantity", quantity.Float64())
	}
	if totalCost.IsNegative() {
		return apperror.NewInvalidInput("total cost must not be negative").
			WithDetail("item_id", it.ID.String())
	}

	newStock := it.CurrentStock + quantity
	if newStock.IsZero() {
		// Reachable only through corrections; reset instead of dividing.
		it.CurrentStock = newStock
		it.AverageCost = types.ZeroMoney()
		return nil
	}

	newValue := it.StockValue().Add(totalCost)
	it.AverageCost = newValue.Div(newStock.Decimal())
	it.CurrentStock = newStock

	if it.AverageCost.IsNegative() {
		return apperror.NewConsistencyViolation("average cost went negative on increase").
			WithDetail("item_id", it.ID.String())
	}
	return nil
}

// ApplyDecrease removes quantity from stock. The average cost is unchanged:
// weighted-average costing only revalues on acquisition.
func ApplyDecrease(it *item.StockItem, quantity types.Quantity) error {
	if !quantity.IsPositive() {
		return apperror.NewInvalidInput("quantity must be positive").
			WithDetail("item_id", it.ID.String()).
			WithDetail("quantity", quantity.Float64())
	}

	newStock := it.CurrentStock - quantity
	if newStock.IsNegative() {
		return apperror.NewInsufficientStock(
			it.ID.String(),
			quantity.Float64(),
			it.CurrentStock.Float64(),
		)
	}

	it.CurrentStock = newStock
	return nil
}

// ApplyValuedDecrease removes quantity and strips quantity*unitCost from the
// inventory value, re-deriving the average from what remains. Used by batch
// reversal/waste and purchase deletion, where the removed units are valued at
// a historical unit cost rather than the current average. The resulting
// average is floored at zero; when stock hits zero it resets to zero.
func ApplyValuedDecrease(it *item.StockItem, quantity types.Quantity, unitCost types.Money) error {
	if !quantity.IsPositive() {
		return apperror.NewInvalidInput("quantity must be positive").
			WithDetail("item_id", it.ID.String()).
			WithDetail("quantity", quantity.Float64())
	}
	if unitCost.IsNegative() {
		return apperror.NewInvalidInput("unit cost must not be negative").
			WithDetail("item_id", it.ID.String())
	}

	newStock := it.CurrentStock - quantity
	if newStock.IsNegative() {
		return apperror.NewInsufficientStock(
			it.ID.String(),
			quantity.Float64(),
			it.CurrentStock.Float64(),
		)
	}

	if newStock.IsZero() {
		it.CurrentStock = newStock
		it.AverageCost = types.ZeroMoney()
		return nil
	}

	newValue := it.StockValue().Sub(quantity.Decimal().Mul(unitCost))
	newAverage := newValue.Div(newStock.Decimal())
	if newAverage.IsNegative() {
		newAverage = types.ZeroMoney()
	}

	it.CurrentStock = newStock
	it.AverageCost = newAverage
	return nil
}
