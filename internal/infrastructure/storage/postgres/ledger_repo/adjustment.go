// Package ledger_repo provides the PostgreSQL implementation of the ledger
// repository.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockforge/internal/core/apperror"
	"stockforge/internal/core/id"
	"stockforge/internal/core/types"
	"stockforge/internal/domain/ledger"
	"stockforge/internal/infrastructure/storage/postgres"
)

const adjustmentTable = "adjustments"

// AdjustmentRepo implements ledger.Repository.
type AdjustmentRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	cols      []string
}

// NewAdjustmentRepo creates a new adjustment repository.
func NewAdjustmentRepo(txManager *postgres.TxManager) *AdjustmentRepo {
	return &AdjustmentRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		cols:      postgres.ExtractDBColumns[ledger.Adjustment](),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *AdjustmentRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *AdjustmentRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.cols...).From(adjustmentTable)
}

// Create inserts one adjustment.
func (r *AdjustmentRepo) Create(ctx context.Context, adj *ledger.Adjustment) error {
	data := postgres.StructToMap(adj)

	q := r.Builder().
		Insert(adjustmentTable).
		SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", adjustmentTable, err)
	}
	return nil
}

// CreateBatch inserts several adjustments in one COPY round trip.
func (r *AdjustmentRepo) CreateBatch(ctx context.Context, adjustments []*ledger.Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(adjustments))
	for _, adj := range adjustments {
		data := postgres.StructToMap(adj)
		row := make([]any, len(r.cols))
		for i, col := range r.cols {
			row[i] = data[col]
		}
		rows = append(rows, row)
	}

	n, err := r.inserter.CopyFromSlice(ctx, adjustmentTable, r.cols, rows)
	if err != nil {
		return fmt.Errorf("copy adjustments: %w", err)
	}
	if n != int64(len(adjustments)) {
		return apperror.NewConsistencyViolation("partial adjustment batch insert").
			WithDetail("expected", len(adjustments)).
			WithDetail("inserted", n)
	}
	return nil
}

// GetByID retrieves an adjustment.
func (r *AdjustmentRepo) GetByID(ctx context.Context, adjustmentID id.ID) (*ledger.Adjustment, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"id": adjustmentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var adj ledger.Adjustment
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &adj, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("adjustment", adjustmentID.String())
		}
		return nil, fmt.Errorf("get adjustment: %w", err)
	}
	return &adj, nil
}

// MarkReversed sets the one-shot reversal back-link. The is_reversed guard in
// the WHERE clause makes the write refuse an already-linked original.
func (r *AdjustmentRepo) MarkReversed(ctx context.Context, originalID, reversalID id.ID) error {
	q := r.Builder().
		Update(adjustmentTable).
		Set("is_reversed", true).
		Set("reversal_adjustment_id", reversalID).
		Where(squirrel.Eq{"id": originalID}).
		Where(squirrel.Eq{"is_reversed": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark reversed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, originalID); err != nil {
			return err
		}
		return apperror.NewAlreadyClosed("adjustment", originalID.String())
	}
	return nil
}

// SumReversedQuantity returns the absolute cumulative quantity of all
// reversal entries back-linked to the original.
func (r *AdjustmentRepo) SumReversedQuantity(ctx context.Context, originalID id.ID) (types.Quantity, error) {
	q := r.Builder().
		Select("coalesce(sum(abs(quantity)), 0)").
		From(adjustmentTable).
		Where(squirrel.Eq{"original_adjustment_id": originalID})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select: %w", err)
	}

	var sum types.Quantity
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &sum, sql, args...); err != nil {
		return 0, fmt.Errorf("sum reversed: %w", err)
	}
	return sum, nil
}

// ListByItem returns the item's history newest-first. UUIDv7 ids are
// time-ordered, so the id doubles as the keyset cursor.
func (r *AdjustmentRepo) ListByItem(ctx context.Context, itemID id.ID, limit int, cursor *id.ID) ([]*ledger.Adjustment, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("id DESC").
		Limit(uint64(limit))
	if cursor != nil {
		q = q.Where(squirrel.Lt{"id": *cursor})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var items []*ledger.Adjustment
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list by item: %w", err)
	}
	return items, nil
}

// ListByBatch returns all adjustments linked to a production batch, oldest
// first.
func (r *AdjustmentRepo) ListByBatch(ctx context.Context, batchID id.ID) ([]*ledger.Adjustment, error) {
	return r.listByLink(ctx, "batch_id", batchID)
}

// ListBySale returns all adjustments linked to a sale, oldest first.
func (r *AdjustmentRepo) ListBySale(ctx context.Context, saleID id.ID) ([]*ledger.Adjustment, error) {
	return r.listByLink(ctx, "sale_id", saleID)
}

func (r *AdjustmentRepo) listByLink(ctx context.Context, column string, linkID id.ID) ([]*ledger.Adjustment, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{column: linkID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var items []*ledger.Adjustment
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list by %s: %w", column, err)
	}
	return items, nil
}

// SumDeltasByItem returns the signed sum of all adjustment deltas for an item.
func (r *AdjustmentRepo) SumDeltasByItem(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	q := r.Builder().
		Select("coalesce(sum(quantity), 0)").
		From(adjustmentTable).
		Where(squirrel.Eq{"item_id": itemID})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select: %w", err)
	}

	var sum types.Quantity
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &sum, sql, args...); err != nil {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}
	return sum, nil
}

// Ensure compile-time interface compliance.
var _ ledger.Repository = (*AdjustmentRepo)(nil)
