package dto

// --- Production ---

// CreateBatchRequest starts a production run.
type CreateBatchRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
	Notes     string  `json:"notes,omitempty"`
}

// UnwindBatchRequest reverses or wastes part of a batch.
type UnwindBatchRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	Reason   string  `json:"reason,omitempty"`
}

// --- Sales ---

// CreateSaleRequest sells quantity units of a product.
type CreateSaleRequest struct {
	ProductID  string  `json:"productId" binding:"required"`
	Quantity   float64 `json:"quantity" binding:"required,gt=0"`
	TotalPrice string  `json:"totalPrice" binding:"required"`
}

// VoidSaleRequest voids a completed sale in full.
type VoidSaleRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// --- Purchasing ---

// CreatePurchaseRequest acquires quantity of a material.
type CreatePurchaseRequest struct {
	MaterialID string  `json:"materialId" binding:"required"`
	Quantity   float64 `json:"quantity" binding:"required,gt=0"`
	TotalCost  string  `json:"totalCost" binding:"required"`
}

// CreateCorrectionRequest applies a manual signed stock delta. UnitCost is
// accepted on positive deltas only and revalues the added stock.
type CreateCorrectionRequest struct {
	ItemID   string  `json:"itemId" binding:"required"`
	Delta    float64 `json:"delta" binding:"required"`
	UnitCost *string `json:"unitCost,omitempty"`
	Reason   string  `json:"reason" binding:"required"`
}

// DeletePurchaseRequest undoes one purchase entry.
type DeletePurchaseRequest struct {
	Reason string `json:"reason,omitempty"`
}
