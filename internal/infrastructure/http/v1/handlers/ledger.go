package handlers

import (
	"github.com/gin-gonic/gin"

	"stockforge/internal/core/id"
	"stockforge/internal/domain/ledger"
)

// LedgerHandler serves the item history projection.
type LedgerHandler struct {
	BaseHandler
	svc *ledger.Service
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(svc *ledger.Service) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// ListByItem handles GET /items/:id/ledger. Newest-first, keyset-paginated;
// pass the returned nextCursor to continue the read.
func (h *LedgerHandler) ListByItem(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var cursor *id.ID
	if cursorParam := c.Query("cursor"); cursorParam != "" {
		parsed, ok := h.ParseIDValue(c, cursorParam, "cursor")
		if !ok {
			return
		}
		cursor = &parsed
	}

	page, err := h.svc.ListByItem(c.Request.Context(), itemID,
		h.ParseIntQuery(c, "limit", 50), cursor)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, page)
}
