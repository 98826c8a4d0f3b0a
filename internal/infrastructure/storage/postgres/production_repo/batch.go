// Package production_repo provides the PostgreSQL implementation of the
// production batch repository.
package production_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/domain"
	"stockforge/internal/domain/production"
	"stockforge/internal/infrastructure/storage/postgres"
)

const (
	batchTable = "production_batches"
	lineTable  = "batch_material_costs"
)

// BatchRepo implements production.Repository.
type BatchRepo struct {
	txManager *postgres.TxManager
	cols      []string
}

// NewBatchRepo creates a new production batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txManager: txManager,
		cols:      postgres.ExtractDBColumns[production.Batch](),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BatchRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BatchRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.cols...).From(batchTable)
}

// Create persists the batch header.
func (r *BatchRepo) Create(ctx context.Context, batch *production.Batch) error {
	data := postgres.StructToMap(batch)

	sql, args, err := r.Builder().
		Insert(batchTable).
		SetMap(data).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", batchTable, err)
	}
	return nil
}

// SaveLines persists the per-material consumption snapshot.
func (r *BatchRepo) SaveLines(ctx context.Context, batchID id.ID, lines []production.MaterialCost) error {
	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(lineTable).
		Columns("batch_id", "line_no", "material_id", "quantity", "unit_cost", "total_cost")
	for _, line := range lines {
		q = q.Values(batchID, line.LineNo, line.MaterialID, line.Quantity, line.UnitCost, line.TotalCost)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", lineTable, err)
	}
	return nil
}

// GetByID retrieves a batch without lines.
func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*production.Batch, error) {
	return r.get(ctx, batchID, false)
}

// GetForUpdate retrieves the batch with a FOR UPDATE row lock.
// Must be called inside a transaction.
func (r *BatchRepo) GetForUpdate(ctx context.Context, batchID id.ID) (*production.Batch, error) {
	return r.get(ctx, batchID, true)
}

func (r *BatchRepo) get(ctx context.Context, batchID id.ID, forUpdate bool) (*production.Batch, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": batchID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var batch production.Batch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &batch, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("production batch", batchID.String())
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &batch, nil
}

// GetLines retrieves the consumption snapshot ordered by line number.
func (r *BatchRepo) GetLines(ctx context.Context, batchID id.ID) ([]production.MaterialCost, error) {
	sql, args, err := r.Builder().
		Select(postgres.ExtractDBColumns[production.MaterialCost]()...).
		From(lineTable).
		Where(squirrel.Eq{"batch_id": batchID}).
		OrderBy("line_no ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var lines []production.MaterialCost
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

// UpdateProgress persists the reversal/waste counters with a compare-and-swap
// on the version token.
func (r *BatchRepo) UpdateProgress(ctx context.Context, batch *production.Batch) error {
	q := r.Builder().
		Update(batchTable).
		Set("reversed_quantity", batch.ReversedQuantity).
		Set("wasted_quantity", batch.WastedQuantity).
		Set("updated_at", squirrel.Expr("now()")).
		Set("updated_by", batch.UpdatedBy).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": batch.ID}).
		Where(squirrel.Eq{"version": batch.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.get(ctx, batch.ID, false); err != nil {
			return err
		}
		return apperror.NewConcurrentModification("production batch", batch.ID.String())
	}
	batch.SetVersion(batch.Version + 1)
	return nil
}

// List retrieves batches with filtering and a total count.
func (r *BatchRepo) List(ctx context.Context, filter production.ListFilter) (domain.ListResult[*production.Batch], error) {
	var result domain.ListResult[*production.Batch]

	var conds []squirrel.Sqlizer
	if filter.ProductID != nil {
		conds = append(conds, squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.Status != nil {
		conds = append(conds, statusCond(*filter.Status))
	}
	if filter.DateFrom != nil {
		conds = append(conds, squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		conds = append(conds, squirrel.LtOrEq{"created_at": *filter.DateTo})
	}

	q := r.baseSelect().OrderBy("id DESC")
	countQ := r.Builder().Select("count(*)").From(batchTable)
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
		return result, fmt.Errorf("list batches: %w", err)
	}

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := pgxscan.Get(ctx, querier, &result.TotalCount, countSQL, countArgs...); err != nil {
		return result, fmt.Errorf("count batches: %w", err)
	}

	result.Limit = filter.Limit
	result.Offset = filter.Offset
	return result, nil
}

// statusCond expresses the derived status over the stored counters.
func statusCond(status production.Status) squirrel.Sqlizer {
	switch status {
	case production.StatusActive:
		return squirrel.Expr("reversed_quantity + wasted_quantity = 0")
	case production.StatusClosed:
		return squirrel.Expr("reversed_quantity + wasted_quantity = quantity")
	default:
		return squirrel.Expr("reversed_quantity + wasted_quantity > 0 AND reversed_quantity + wasted_quantity < quantity")
	}
}

// Ensure compile-time interface compliance.
var _ production.Repository = (*BatchRepo)(nil)
