package handlers

import (
	"github.com/gin-gonic/gin"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/types"
	"stockforge/internal/domain/purchasing"
	"stockforge/internal/infrastructure/http/v1/dto"
)

// PurchaseHandler serves purchase and correction endpoints.
type PurchaseHandler struct {
	BaseHandler
	svc *purchasing.Service
}

// NewPurchaseHandler creates a new purchase handler.
func NewPurchaseHandler(svc *purchasing.Service) *PurchaseHandler {
	return &PurchaseHandler{svc: svc}
}

// Create handles POST /purchases.
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	materialID, ok := h.ParseIDValue(c, req.MaterialID, "materialId")
	if !ok {
		return
	}
	totalCost, err := types.NewMoneyFromString(req.TotalCost)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("malformed total cost").WithDetail("value", req.TotalCost))
		return
	}

	adj, err := h.svc.CreatePurchase(c.Request.Context(), materialID,
		types.NewQuantityFromFloat64(req.Quantity), totalCost, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, adj)
}

// Delete handles DELETE /purchases/:id. The reason body is optional.
func (h *PurchaseHandler) Delete(c *gin.Context) {
	adjustmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.DeletePurchaseRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	entry, err := h.svc.DeletePurchase(c.Request.Context(), adjustmentID, req.Reason, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entry)
}

// CreateCorrection handles POST /corrections.
func (h *PurchaseHandler) CreateCorrection(c *gin.Context) {
	var req dto.CreateCorrectionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	itemID, ok := h.ParseIDValue(c, req.ItemID, "itemId")
	if !ok {
		return
	}

	var unitCost *types.Money
	if req.UnitCost != nil {
		cost, err := types.NewMoneyFromString(*req.UnitCost)
		if err != nil {
			h.Error(c, apperror.NewInvalidInput("malformed unit cost").
				WithDetail("field", "unitCost"))
			return
		}
		unitCost = &cost
	}

	adj, err := h.svc.CreateCorrection(c.Request.Context(), itemID,
		types.NewQuantityFromFloat64(req.Delta), unitCost, req.Reason, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, adj)
}
