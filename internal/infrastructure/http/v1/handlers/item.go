package handlers

import (
	"github.com/gin-gonic/gin"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
	"stockforge/internal/domain"
	"stockforge/internal/domain/catalogs/item"
	"stockforge/internal/infrastructure/http/v1/dto"
)

// ItemHandler serves stock item and recipe endpoints.
type ItemHandler struct {
	BaseHandler
	svc *item.Service
}

// NewItemHandler creates a new item handler.
func NewItemHandler(svc *item.Service) *ItemHandler {
	return &ItemHandler{svc: svc}
}

// Create handles POST /items.
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it := req.ToEntity()
	if err := h.svc.Create(c.Request.Context(), it); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, it)
}

// Get handles GET /items/:id.
func (h *ItemHandler) Get(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	it, err := h.svc.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, it)
}

// List handles GET /items.
func (h *ItemHandler) List(c *gin.Context) {
	filter := item.ListFilter{
		ListFilter: domain.ListFilter{
			Search:  c.Query("search"),
			OrderBy: c.Query("orderBy"),
			Limit:   h.ParseIntQuery(c, "limit", 50),
			Offset:  h.ParseIntQuery(c, "offset", 0),
		},
		ActiveOnly: c.Query("active") == "true",
	}
	if kindParam := c.Query("kind"); kindParam != "" {
		kind := item.Kind(kindParam)
		if !kind.Valid() {
			h.Error(c, apperror.NewInvalidInput("unknown item kind").WithDetail("kind", kindParam))
			return
		}
		filter.Kind = &kind
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

// Update handles PUT /items/:id.
func (h *ItemHandler) Update(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it, err := h.svc.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	it.Name = req.Name
	it.SKU = req.SKU
	it.Unit = req.Unit
	it.Category = req.Category
	if req.Active != nil {
		it.Active = *req.Active
	}

	if err := h.svc.Update(c.Request.Context(), it); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, it)
}

// GetRecipe handles GET /items/:id/recipe.
func (h *ItemHandler) GetRecipe(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	lines, err := h.svc.GetRecipe(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, lines)
}

// SetRecipe handles PUT /items/:id/recipe.
func (h *ItemHandler) SetRecipe(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetRecipeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lines := make([]item.RecipeLine, 0, len(req.Lines))
	for _, lr := range req.Lines {
		materialID, err := id.Parse(lr.MaterialID)
		if err != nil {
			h.Error(c, apperror.NewInvalidInput("malformed material id").WithDetail("value", lr.MaterialID))
			return
		}
		lines = append(lines, item.RecipeLine{
			ProductID:       productID,
			MaterialID:      materialID,
			QuantityPerUnit: types.NewQuantityFromFloat64(lr.QuantityPerUnit),
			Unit:            lr.Unit,
		})
	}

	if err := h.svc.SetRecipe(c.Request.Context(), productID, lines); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true})
}
