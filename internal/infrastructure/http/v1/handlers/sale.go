package handlers

import (
	"github.com/gin-gonic/gin"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/types"
	"stockforge/internal/domain"
	"stockforge/internal/domain/sales"
	"stockforge/internal/infrastructure/http/v1/dto"
)

// SaleHandler serves sale endpoints.
type SaleHandler struct {
	BaseHandler
	svc *sales.Service
}

// NewSaleHandler creates a new sale handler.
func NewSaleHandler(svc *sales.Service) *SaleHandler {
	return &SaleHandler{svc: svc}
}

// Create handles POST /sales.
func (h *SaleHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	productID, ok := h.ParseIDValue(c, req.ProductID, "productId")
	if !ok {
		return
	}
	totalPrice, err := types.NewMoneyFromString(req.TotalPrice)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput("malformed total price").WithDetail("value", req.TotalPrice))
		return
	}

	sale, err := h.svc.CreateSale(c.Request.Context(), sales.CreateParams{
		ProductID:  productID,
		Quantity:   types.NewQuantityFromFloat64(req.Quantity),
		TotalPrice: totalPrice,
		ActorID:    h.ActorID(c),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, sale)
}

// Get handles GET /sales/:id.
func (h *SaleHandler) Get(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	sale, err := h.svc.GetByID(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sale)
}

// List handles GET /sales.
func (h *SaleHandler) List(c *gin.Context) {
	filter := sales.ListFilter{
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
		status := sales.Status(statusParam)
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

// Void handles POST /sales/:id/void.
func (h *SaleHandler) Void(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.VoidSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sale, err := h.svc.VoidSale(c.Request.Context(), saleID, req.Reason, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sale)
}
