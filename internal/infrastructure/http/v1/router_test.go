package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"stockforge/internal/core/id"
	"stockforge/internal/core/tx"
	"stockforge/internal/domain/catalogs/item"
	"stockforge/internal/domain/ledger"
	"stockforge/internal/domain/production"
	"stockforge/internal/domain/purchasing"
	"stockforge/internal/domain/sales"
	"stockforge/pkg/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	items := item.NewMemoryRepository()
	ledgerSvc := ledger.NewService(ledger.NewMemoryRepository())
	manager := &tx.MockManager{}

	return NewRouter(RouterConfig{
		Logger:     logger.Default(),
		Items:      item.NewService(items, manager),
		Ledger:     ledgerSvc,
		Production: production.NewService(production.NewMemoryRepository(), items, ledgerSvc, manager),
		Sales:      sales.NewService(sales.NewMemoryRepository(), items, ledgerSvc, manager),
		Purchasing: purchasing.NewService(items, ledgerSvc, manager),
	})
}

func TestRouter_DeletePurchase(t *testing.T) {
	router := newTestRouter(t)

	// The route exists, an empty body is fine, and the domain error comes
	// back through the error middleware.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/purchases/"+id.New().String(), nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestRouter_MalformedIDRejected(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/purchases/not-a-uuid", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}
