// Package sale_repo provides the PostgreSQL implementation of the sale
// repository.
package sale_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/domain"
	"stockforge/internal/domain/sales"
	"stockforge/internal/infrastructure/storage/postgres"
)

const (
	saleTable = "sales"
	linkTable = "sale_adjustments"
)

// SaleRepo implements sales.Repository.
type SaleRepo struct {
	txManager *postgres.TxManager
	cols      []string
}

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txManager *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		txManager: txManager,
		cols:      postgres.ExtractDBColumns[sales.Sale](),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *SaleRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *SaleRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.cols...).From(saleTable)
}

// Create persists the sale header and its adjustment references.
func (r *SaleRepo) Create(ctx context.Context, sale *sales.Sale) error {
	data := postgres.StructToMap(sale)

	sql, args, err := r.Builder().
		Insert(saleTable).
		SetMap(data).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", saleTable, err)
	}

	if len(sale.AdjustmentIDs) == 0 {
		return nil
	}
	q := r.Builder().
		Insert(linkTable).
		Columns("sale_id", "position", "adjustment_id")
	for i, adjID := range sale.AdjustmentIDs {
		q = q.Values(sale.ID, i+1, adjID)
	}
	linkSQL, linkArgs, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, linkSQL, linkArgs...); err != nil {
		return fmt.Errorf("insert %s: %w", linkTable, err)
	}
	return nil
}

// GetByID retrieves a sale with its adjustment references.
func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	return r.get(ctx, saleID, false)
}

// GetForUpdate retrieves the sale with a FOR UPDATE row lock.
// Must be called inside a transaction.
func (r *SaleRepo) GetForUpdate(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	return r.get(ctx, saleID, true)
}

func (r *SaleRepo) get(ctx context.Context, saleID id.ID, forUpdate bool) (*sales.Sale, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": saleID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var sale sales.Sale
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &sale, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID.String())
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	linkSQL, linkArgs, err := r.Builder().
		Select("adjustment_id").
		From(linkTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &sale.AdjustmentIDs, linkSQL, linkArgs...); err != nil {
		return nil, fmt.Errorf("get sale adjustments: %w", err)
	}
	return &sale, nil
}

// UpdateStatus persists the void transition with a compare-and-swap on the
// version token.
func (r *SaleRepo) UpdateStatus(ctx context.Context, sale *sales.Sale) error {
	q := r.Builder().
		Update(saleTable).
		Set("status", sale.Status).
		Set("void_reason", sale.VoidReason).
		Set("voided_by", sale.VoidedBy).
		Set("voided_at", sale.VoidedAt).
		Set("updated_at", squirrel.Expr("now()")).
		Set("updated_by", sale.UpdatedBy).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": sale.ID}).
		Where(squirrel.Eq{"version": sale.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.get(ctx, sale.ID, false); err != nil {
			return err
		}
		return apperror.NewConcurrentModification("sale", sale.ID.String())
	}
	sale.SetVersion(sale.Version + 1)
	return nil
}

// List retrieves sales with filtering and a total count.
func (r *SaleRepo) List(ctx context.Context, filter sales.ListFilter) (domain.ListResult[*sales.Sale], error) {
	var result domain.ListResult[*sales.Sale]

	var conds []squirrel.Sqlizer
	if filter.ProductID != nil {
		conds = append(conds, squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.Status != nil {
		conds = append(conds, squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		conds = append(conds, squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		conds = append(conds, squirrel.LtOrEq{"created_at": *filter.DateTo})
	}

	q := r.baseSelect().OrderBy("id DESC")
	countQ := r.Builder().Select("count(*)").From(saleTable)
	for _, c := range conds {
		q = q.Where(c)
		countQ = countQ.Where(c)
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build select: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list sales: %w", err)
	}

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := pgxscan.Get(ctx, querier, &result.TotalCount, countSQL, countArgs...); err != nil {
		return result, fmt.Errorf("count sales: %w", err)
	}

	result.Limit = filter.Limit
	result.Offset = filter.Offset
	return result, nil
}

// Ensure compile-time interface compliance.
var _ sales.Repository = (*SaleRepo)(nil)
