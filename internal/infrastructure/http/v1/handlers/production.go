package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
	"stockforge/internal/domain"
	"stockforge/internal/domain/production"
	"stockforge/internal/infrastructure/http/v1/dto"
)

// ProductionHandler serves production batch endpoints.
type ProductionHandler struct {
	BaseHandler
	svc *production.Service
}

// NewProductionHandler creates a new production handler.
func NewProductionHandler(svc *production.Service) *ProductionHandler {
	return &ProductionHandler{svc: svc}
}

// Create handles POST /batches.
func (h *ProductionHandler) Create(c *gin.Context) {
	var req dto.CreateBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}
	productID, ok := h.ParseIDValue(c, req.ProductID, "productId")
	if !ok {
		return
	}

	batch, err := h.svc.CreateBatch(c.Request.Context(), productID,
		types.NewQuantityFromFloat64(req.Quantity), req.Notes, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, batch)
}

// Get handles GET /batches/:id.
func (h *ProductionHandler) Get(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	batch, err := h.svc.GetByID(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, batch)
}

// List handles GET /batches.
func (h *ProductionHandler) List(c *gin.Context) {
	filter := production.ListFilter{
		ListFilter: domain.ListFilter{
			Limit:  h.ParseIntQuery(c, "limit", 50),
			Offset: h.ParseIntQuery(c, "offset", 0),
		},
	}
	if productParam := c.Query("productId"); productParam != "" {
		productID, ok := h.ParseIDValue(c, productParam, "productId")
		if !ok {
			return
		}
		filter.ProductID = &productID
	}
	if statusParam := c.Query("status"); statusParam != "" {
		status := production.Status(statusParam)
		filter.Status = &status
	}

	result, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:      result.Items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// unwindOp is the shared signature of ReverseBatch and WasteBatch.
type unwindOp func(ctx context.Context, batchID id.ID, quantity types.Quantity, reason, actorID string) (*production.Result, error)

// Reverse handles POST /batches/:id/reverse.
func (h *ProductionHandler) Reverse(c *gin.Context) {
	h.unwind(c, h.svc.ReverseBatch)
}

// Waste handles POST /batches/:id/waste.
func (h *ProductionHandler) Waste(c *gin.Context) {
	h.unwind(c, h.svc.WasteBatch)
}

func (h *ProductionHandler) unwind(c *gin.Context, op unwindOp) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UnwindBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := op(c.Request.Context(), batchID,
		types.NewQuantityFromFloat64(req.Quantity), req.Reason, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// CanReverse handles GET /batches/:id/can-reverse.
func (h *ProductionHandler) CanReverse(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.CanReverse(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
