// Package entity_repo provides the generic PostgreSQL access layer used by
// the transform package: predicate-driven select/count, inserts, and the
// two-phase key-scoped update/delete.
package entity_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/id"
	"memberbase/internal/infrastructure/storage/postgres"
)

// SelectSpec describes one fetch: a compiled predicate, deterministic
// ordering, pagination, and an optional builder hook for entity-specific
// joins and extra conditions.
type SelectSpec struct {
	Predicate squirrel.Sqlizer
	OrderBy   []string
	Limit     int // > 0 applies a limit, <= 0 means unlimited
	Offset    int
	Modify    func(squirrel.SelectBuilder) squirrel.SelectBuilder
}

// BaseEntityRepo provides squirrel + pgxscan access for one entity table.
type BaseEntityRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	idColumn   string
	selectCols []string
}

// NewBaseEntityRepo creates a repository for the given table. Columns are
// derived from the entity's "db" tags once at construction.
func NewBaseEntityRepo[T any](txm *postgres.TxManager, tableName, idColumn string) *BaseEntityRepo[T] {
	return &BaseEntityRepo[T]{
		txm:        txm,
		tableName:  tableName,
		idColumn:   idColumn,
		selectCols: postgres.ExtractDBColumns[T](),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseEntityRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Table returns the entity table name.
func (r *BaseEntityRepo[T]) Table() string {
	return r.tableName
}

// IDColumn returns the stable identifier column used for tie-breaks and
// key-scoped mutations.
func (r *BaseEntityRepo[T]) IDColumn() string {
	return r.idColumn
}

// Columns returns the entity's selectable columns.
func (r *BaseEntityRepo[T]) Columns() []string {
	return r.selectCols
}

func (r *BaseEntityRepo[T]) baseSelect(spec SelectSpec) squirrel.SelectBuilder {
	q := r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
	if spec.Predicate != nil {
		q = q.Where(spec.Predicate)
	}
	if spec.Modify != nil {
		q = spec.Modify(q)
	}
	return q
}

// Select fetches rows matching the spec.
func (r *BaseEntityRepo[T]) Select(ctx context.Context, spec SelectSpec) ([]T, error) {
	q := r.baseSelect(spec)
	if len(spec.OrderBy) > 0 {
		q = q.OrderBy(spec.OrderBy...)
	}
	if spec.Limit > 0 {
		q = q.Limit(uint64(spec.Limit))
	}
	if spec.Offset > 0 {
		q = q.Offset(uint64(spec.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	items := []T{}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.tableName, err)
	}
	return items, nil
}

// Count returns the number of rows matching the spec, ignoring pagination.
func (r *BaseEntityRepo[T]) Count(ctx context.Context, spec SelectSpec) (int64, error) {
	countQ := r.Builder().
		Select("COUNT(*)").
		FromSelect(r.baseSelect(spec), "sub")

	sql, args, err := countQ.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var total int64
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.tableName, err)
	}
	return total, nil
}

// GetByID retrieves one entity by its identifier.
func (r *BaseEntityRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	var entity T

	q := r.Builder().
		Select(r.selectCols...).
		From(r.tableName).
		Where(squirrel.Eq{r.idColumn: entityID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.tableName, entityID.String())
		}
		return entity, fmt.Errorf("get by id: %w", err)
	}
	return entity, nil
}

// Insert persists a new entity using its "db" tags.
func (r *BaseEntityRepo[T]) Insert(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(r.tableName).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate(r.tableName, pgErr.ConstraintName, "").WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// SelectIDs resolves a predicate to the matching primary keys. The transform
// layer uses this as phase one of its two-phase update/delete so the mutation
// itself only ever targets an explicit key set.
func (r *BaseEntityRepo[T]) SelectIDs(ctx context.Context, spec SelectSpec) ([]id.ID, error) {
	q := r.Builder().
		Select(r.idColumn).
		From(r.tableName)
	if spec.Predicate != nil {
		q = q.Where(spec.Predicate)
	}
	if spec.Modify != nil {
		q = spec.Modify(q)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select ids: %w", err)
	}

	ids := []id.ID{}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("select ids %s: %w", r.tableName, err)
	}
	return ids, nil
}

// UpdateByIDs applies the given column updates to exactly the listed keys.
func (r *BaseEntityRepo[T]) UpdateByIDs(ctx context.Context, ids []id.ID, updates map[string]any) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	q := r.Builder().
		Update(r.tableName).
		SetMap(updates).
		Where(squirrel.Eq{r.idColumn: ids})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", r.tableName, err)
	}
	return result.RowsAffected(), nil
}

// DeleteByIDs removes exactly the listed keys.
func (r *BaseEntityRepo[T]) DeleteByIDs(ctx context.Context, ids []id.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	q := r.Builder().
		Delete(r.tableName).
		Where(squirrel.Eq{r.idColumn: ids})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return 0, apperror.NewConflict("cannot delete: referenced by other records").
				WithDetail("entity", r.tableName).
				WithCause(err)
		}
		return 0, fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	return result.RowsAffected(), nil
}
