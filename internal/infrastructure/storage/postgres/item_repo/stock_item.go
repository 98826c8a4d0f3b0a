// Package item_repo provides the PostgreSQL implementation of the stock item
// and recipe repositories.
package item_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/domain"
	"stockforge/internal/domain/catalogs/item"
	"stockforge/internal/infrastructure/storage/postgres"
)

const (
	itemTable   = "stock_items"
	recipeTable = "recipe_lines"
)

// StockItemRepo implements item.Repository.
type StockItemRepo struct {
	txManager *postgres.TxManager
	cols      []string
}

// NewStockItemRepo creates a new stock item repository.
func NewStockItemRepo(txManager *postgres.TxManager) *StockItemRepo {
	return &StockItemRepo{
		txManager: txManager,
		cols:      postgres.ExtractDBColumns[item.StockItem](),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *StockItemRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *StockItemRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.cols...).From(itemTable)
}

// Create inserts a new stock item using its "db" tags.
func (r *StockItemRepo) Create(ctx context.Context, it *item.StockItem) error {
	data := postgres.StructToMap(it)

	q := r.Builder().
		Insert(itemTable).
		SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", itemTable, err)
	}
	return nil
}

// GetByID retrieves a stock item.
func (r *StockItemRepo) GetByID(ctx context.Context, itemID id.ID) (*item.StockItem, error) {
	return r.get(ctx, itemID, false)
}

// GetForUpdate retrieves the item with a FOR UPDATE row lock.
// Must be called inside a transaction.
func (r *StockItemRepo) GetForUpdate(ctx context.Context, itemID id.ID) (*item.StockItem, error) {
	return r.get(ctx, itemID, true)
}

func (r *StockItemRepo) get(ctx context.Context, itemID id.ID, forUpdate bool) (*item.StockItem, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": itemID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var it item.StockItem
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock item", itemID.String())
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}
	return &it, nil
}

// Update modifies item metadata with optimistic locking. Stock and cost
// columns are excluded; they belong to UpdateStock.
func (r *StockItemRepo) Update(ctx context.Context, it *item.StockItem) error {
	data := postgres.StructToMap(it)
	delete(data, "id")
	delete(data, "version")
	delete(data, "current_stock")
	delete(data, "average_cost")

	q := r.Builder().
		Update(itemTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": it.ID}).
		Where(squirrel.Eq{"version": it.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", itemTable, err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainMissedWrite(ctx, it.ID)
	}
	it.SetVersion(it.Version + 1)
	return nil
}

// UpdateStock persists CurrentStock and AverageCost with a compare-and-swap
// on the version token.
func (r *StockItemRepo) UpdateStock(ctx context.Context, it *item.StockItem) error {
	q := r.Builder().
		Update(itemTable).
		Set("current_stock", it.CurrentStock).
		Set("average_cost", it.AverageCost).
		Set("updated_at", squirrel.Expr("now()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": it.ID}).
		Where(squirrel.Eq{"version": it.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainMissedWrite(ctx, it.ID)
	}
	it.SetVersion(it.Version + 1)
	return nil
}

// explainMissedWrite distinguishes a stale version from a missing row.
func (r *StockItemRepo) explainMissedWrite(ctx context.Context, itemID id.ID) error {
	if _, err := r.get(ctx, itemID, false); err != nil {
		return err
	}
	return apperror.NewConcurrentModification("stock item", itemID.String())
}

// List retrieves stock items with filtering and a total count.
func (r *StockItemRepo) List(ctx context.Context, filter item.ListFilter) (domain.ListResult[*item.StockItem], error) {
	var result domain.ListResult[*item.StockItem]

	var conds []squirrel.Sqlizer
	if filter.Kind != nil {
		conds = append(conds, squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.ActiveOnly {
		conds = append(conds, squirrel.Eq{"active": true})
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		conds = append(conds, squirrel.Or{
			squirrel.Like{"lower(name)": pattern},
			squirrel.Like{"lower(sku)": pattern},
		})
	}

	q := r.baseSelect()
	countQ := r.Builder().Select("count(*)").From(itemTable)
	for _, c := range conds {
		q = q.Where(c)
		countQ = countQ.Where(c)
	}

	q = q.OrderBy(orderClause(filter.OrderBy))
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
		return result, fmt.Errorf("list stock items: %w", err)
	}

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := pgxscan.Get(ctx, querier, &result.TotalCount, countSQL, countArgs...); err != nil {
		return result, fmt.Errorf("count stock items: %w", err)
	}

	result.Limit = filter.Limit
	result.Offset = filter.Offset
	return result, nil
}

// orderClause maps a "-col" prefix to descending order, defaulting to name.
func orderClause(orderBy string) string {
	col := strings.TrimSpace(orderBy)
	if col == "" {
		return "name ASC"
	}
	dir := "ASC"
	if strings.HasPrefix(col, "-") {
		col = col[1:]
		dir = "DESC"
	}
	switch col {
	case "name", "sku", "category", "created_at", "current_stock":
		return col + " " + dir
	}
	return "name ASC"
}

// GetRecipe retrieves the product's recipe ordered by line number.
func (r *StockItemRepo) GetRecipe(ctx context.Context, productID id.ID) ([]item.RecipeLine, error) {
	q := r.Builder().
		Select(postgres.ExtractDBColumns[item.RecipeLine]()...).
		From(recipeTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var lines []item.RecipeLine
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return lines, nil
}

// SaveRecipe replaces the product's recipe atomically.
func (r *StockItemRepo) SaveRecipe(ctx context.Context, productID id.ID, lines []item.RecipeLine) error {
	querier := r.txManager.GetQuerier(ctx)

	delSQL, delArgs, err := r.Builder().
		Delete(recipeTable).
		Where(squirrel.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(recipeTable).
		Columns("product_id", "line_no", "material_id", "quantity_per_unit", "unit")
	for _, line := range lines {
		q = q.Values(line.ProductID, line.LineNo, line.MaterialID, line.QuantityPerUnit, line.Unit)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert recipe: %w", err)
	}
	return nil
}

// Ensure compile-time interface compliance.
var _ item.Repository = (*StockItemRepo)(nil)
