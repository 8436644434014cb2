// Package transform provides the generic paginated fetch/create/update/delete
// surface over one entity type. It injects row-level authorization rules for
// non-privileged callers, validates and compiles filter rules, and drives the
// store through the entity repository.
package transform

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/id"
	"memberbase/internal/core/security"
	"memberbase/internal/core/settings"
	"memberbase/internal/domain/filter"
	"memberbase/internal/infrastructure/storage/postgres/entity_repo"
	"memberbase/internal/infrastructure/storage/postgres/filtersql"
	"memberbase/pkg/logger"
)

// DefaultLimit is applied when a fetch does not specify one.
const DefaultLimit = 50

// GetQuery is the wire-level list query: a rule group plus pagination and
// sorting. Limit 0 means default, -1 means unlimited.
type GetQuery struct {
	Rules  *filter.Group
	Limit  int
	Offset int
	Sort   string
	Order  string // ASC | DESC
}

// ListResult contains one page of results plus the total match count.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// Transformer is the generic entity access layer. All hook fields are
// optional; zero value behavior is the conservative default (deny).
type Transformer[T any] struct {
	// EntityName is used in error messages.
	EntityName string

	// Schema declares the entity's filterable fields.
	Schema filter.Schema

	// Repo is the store access for the entity's table.
	Repo *entity_repo.BaseEntityRepo[T]

	// EntityID extracts the stable identifier from an entity. Required for
	// Create, which re-fetches the persisted row.
	EntityID func(T) id.ID

	// AuthRules returns entity-specific row-level rules for a non-privileged
	// principal. Returning nothing denies the operation entirely; the result
	// is OR-combined and conjoined with client rules so it can never be
	// overridden by them.
	AuthRules func(ctx context.Context, p *security.Principal, op security.Operation) []filter.Node

	// Handlers are per-field custom predicate renderers for virtual fields.
	Handlers map[string]filtersql.Handler

	// ExtraSchema declares the virtual fields served by Handlers. Merged
	// additively into Schema at validation time.
	ExtraSchema filter.Schema

	// ModifyQuery adds entity-specific joins or extra predicates.
	ModifyQuery func(q squirrel.SelectBuilder) squirrel.SelectBuilder

	// LoadRelated enriches loaded rows with associated data after paging,
	// so related collections never multiply rows through joins.
	LoadRelated func(ctx context.Context, items []T) error

	// AllowCreate gates create operations. Default: privileged only.
	AllowCreate func(p *security.Principal) bool

	// DefaultSort is the sort column applied when the query names none.
	// Falls back to the repo's id column.
	DefaultSort string

	// Settings supplies runtime limits (page size cap, mutation batch cap).
	// Optional; nil means no caps.
	Settings *settings.Store
}

func (t *Transformer[T]) snapshot() *settings.Snapshot {
	if t.Settings == nil {
		return nil
	}
	return t.Settings.Current()
}

// prepareRules merges server-side authorization rules with the caller's rule
// group and validates the merged tree. For privileged callers with no rules
// it returns nil (match everything).
func (t *Transformer[T]) prepareRules(ctx context.Context, p *security.Principal, rules *filter.Group, op security.Operation) (*filter.ValidatedGroup, error) {
	merged := rules

	if !p.IsPrivileged() {
		var authNodes []filter.Node
		if t.AuthRules != nil {
			authNodes = t.AuthRules(ctx, p, op)
		}
		if len(authNodes) == 0 {
			return nil, apperror.NewUnauthorized("no applicable access rule").
				WithDetail("entity", t.EntityName).
				WithDetail("operation", string(op))
		}

		children := []filter.Node{}
		if rules != nil && len(rules.Rules) > 0 {
			children = append(children, rules)
		}
		children = append(children, &filter.Group{Condition: filter.ConditionOr, Rules: authNodes})
		merged = &filter.Group{Condition: filter.ConditionAnd, Rules: children}
	}

	if merged == nil || len(merged.Rules) == 0 {
		return nil, nil
	}

	return filter.Validate(t.Schema.Merge(t.ExtraSchema), merged)
}

// prepareSpec validates, compiles and assembles the select spec for a query.
func (t *Transformer[T]) prepareSpec(ctx context.Context, p *security.Principal, q GetQuery, op security.Operation) (entity_repo.SelectSpec, error) {
	validated, err := t.prepareRules(ctx, p, q.Rules, op)
	if err != nil {
		return entity_repo.SelectSpec{}, err
	}

	spec := entity_repo.SelectSpec{Modify: t.ModifyQuery}
	if validated != nil {
		pred, err := filtersql.Compile(validated, filtersql.Options{
			Principal: p,
			Handlers:  t.Handlers,
		})
		if err != nil {
			return entity_repo.SelectSpec{}, err
		}
		spec.Predicate = pred
	}
	return spec, nil
}

// orderBy builds the ORDER BY clauses for a query: the requested column
// (whitelisted against the entity's columns) plus a deterministic id
// tie-break so pagination never produces duplicate or missing rows.
func (t *Transformer[T]) orderBy(q GetQuery) ([]string, error) {
	direction := "ASC"
	switch strings.ToUpper(q.Order) {
	case "", "ASC":
	case "DESC":
		direction = "DESC"
	default:
		return nil, apperror.NewValidation("invalid sort order").WithDetail("order", q.Order)
	}

	sort := q.Sort
	if sort == "" {
		sort = t.DefaultSort
	}
	idCol := t.Repo.IDColumn()
	if sort == "" {
		sort = idCol
	}

	allowed := false
	for _, col := range t.Repo.Columns() {
		if col == sort {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperror.NewValidation("invalid sort column").WithDetail("sort", sort)
	}

	clauses := []string{sort + " " + direction}
	if sort != idCol {
		clauses = append(clauses, idCol+" ASC")
	}
	return clauses, nil
}

// Fetch returns one page of entities matching the query, after injecting
// authorization rules and applying the post-load enrichment hook.
func (t *Transformer[T]) Fetch(ctx context.Context, p *security.Principal, q GetQuery) (ListResult[T], error) {
	spec, err := t.prepareSpec(ctx, p, q, security.OperationRead)
	if err != nil {
		return ListResult[T]{}, err
	}

	order, err := t.orderBy(q)
	if err != nil {
		return ListResult[T]{}, err
	}
	spec.OrderBy = order

	limit := t.effectiveLimit(q.Limit)
	if limit > 0 {
		spec.Limit = limit
	}
	spec.Offset = q.Offset

	total, err := t.Repo.Count(ctx, spec)
	if err != nil {
		return ListResult[T]{}, err
	}

	items, err := t.Repo.Select(ctx, spec)
	if err != nil {
		return ListResult[T]{}, err
	}

	if t.LoadRelated != nil && len(items) > 0 {
		if err := t.LoadRelated(ctx, items); err != nil {
			return ListResult[T]{}, err
		}
	}

	return ListResult[T]{
		Items:      items,
		TotalCount: total,
		Limit:      limit,
		Offset:     q.Offset,
	}, nil
}

// effectiveLimit resolves the requested page size: 0 means the default and
// -1 lifts the limit entirely. The configured max page size bounds positive
// over-asks only; an explicit unlimited request stays unlimited.
func (t *Transformer[T]) effectiveLimit(requested int) int {
	limit := requested
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 {
		return -1
	}
	if snap := t.snapshot(); snap != nil && snap.MaxPageSize > 0 && limit > snap.MaxPageSize {
		limit = snap.MaxPageSize
	}
	return limit
}

// Count returns only the total number of matching rows.
func (t *Transformer[T]) Count(ctx context.Context, p *security.Principal, q GetQuery) (int64, error) {
	spec, err := t.prepareSpec(ctx, p, q, security.OperationRead)
	if err != nil {
		return 0, err
	}
	return t.Repo.Count(ctx, spec)
}

// FetchOneByID returns a single entity, subject to the caller's row-level
// rules: an id outside the caller's visibility reads as not found.
func (t *Transformer[T]) FetchOneByID(ctx context.Context, p *security.Principal, entityID id.ID) (T, error) {
	var zero T

	spec, err := t.prepareSpec(ctx, p, GetQuery{}, security.OperationRead)
	if err != nil {
		return zero, err
	}
	spec.Predicate = withIDPredicate(spec.Predicate, t.Repo.IDColumn(), entityID)
	spec.Limit = 1

	items, err := t.Repo.Select(ctx, spec)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, apperror.NewNotFound(t.EntityName, entityID.String())
	}

	if t.LoadRelated != nil {
		if err := t.LoadRelated(ctx, items); err != nil {
			return zero, err
		}
	}
	return items[0], nil
}

// Create persists a new entity and returns the freshly fetched row.
func (t *Transformer[T]) Create(ctx context.Context, p *security.Principal, entity T) (T, error) {
	var zero T

	allowed := p.IsPrivileged()
	if t.AllowCreate != nil {
		allowed = t.AllowCreate(p)
	}
	if !allowed {
		return zero, apperror.NewForbidden("create not permitted").WithDetail("entity", t.EntityName)
	}

	if err := t.Repo.Insert(ctx, entity); err != nil {
		return zero, err
	}

	logger.Debug(ctx, "entity created", "entity", t.EntityName)

	if t.EntityID == nil {
		return entity, nil
	}
	return t.FetchOneByID(ctx, p, t.EntityID(entity))
}

// Update applies column updates to every row matching the rules. An empty
// rule set is refused before any store round-trip. Keys are selected first
// and the update targets only that key set; selection and mutation are not
// wrapped in a transaction here (callers needing atomicity supply their own).
func (t *Transformer[T]) Update(ctx context.Context, p *security.Principal, rules *filter.Group, updates map[string]any) (int64, error) {
	if rules == nil || len(rules.Rules) == 0 {
		return 0, apperror.NewUnscopedMutation(t.EntityName)
	}
	ids, err := t.selectKeys(ctx, p, rules, security.OperationUpdate)
	if err != nil {
		return 0, err
	}
	if err := t.checkBatchLimit(len(ids)); err != nil {
		return 0, err
	}
	return t.Repo.UpdateByIDs(ctx, ids, updates)
}

// UpdateByID updates a single row; NotFound if the caller cannot see it.
func (t *Transformer[T]) UpdateByID(ctx context.Context, p *security.Principal, entityID id.ID, updates map[string]any) error {
	ids, err := t.selectKeysByID(ctx, p, entityID, security.OperationUpdate)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return apperror.NewNotFound(t.EntityName, entityID.String())
	}
	_, err = t.Repo.UpdateByIDs(ctx, ids, updates)
	return err
}

// Delete removes every row matching the rules, using the same two-phase
// key-scoped pattern as Update. An empty rule set is refused.
func (t *Transformer[T]) Delete(ctx context.Context, p *security.Principal, rules *filter.Group) (int64, error) {
	if rules == nil || len(rules.Rules) == 0 {
		return 0, apperror.NewUnscopedMutation(t.EntityName)
	}
	ids, err := t.selectKeys(ctx, p, rules, security.OperationDelete)
	if err != nil {
		return 0, err
	}
	if err := t.checkBatchLimit(len(ids)); err != nil {
		return 0, err
	}
	return t.Repo.DeleteByIDs(ctx, ids)
}

// DeleteByID removes a single row; NotFound if the caller cannot see it.
func (t *Transformer[T]) DeleteByID(ctx context.Context, p *security.Principal, entityID id.ID) error {
	ids, err := t.selectKeysByID(ctx, p, entityID, security.OperationDelete)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return apperror.NewNotFound(t.EntityName, entityID.String())
	}
	_, err = t.Repo.DeleteByIDs(ctx, ids)
	return err
}

// checkBatchLimit refuses rule-scoped mutations that would touch more rows
// than the configured cap.
func (t *Transformer[T]) checkBatchLimit(n int) error {
	snap := t.snapshot()
	if snap == nil || snap.MutationBatchLimit <= 0 || n <= snap.MutationBatchLimit {
		return nil
	}
	return apperror.NewConflict("mutation exceeds batch limit").
		WithDetail("entity", t.EntityName).
		WithDetail("matched", n).
		WithDetail("limit", snap.MutationBatchLimit)
}

func (t *Transformer[T]) selectKeys(ctx context.Context, p *security.Principal, rules *filter.Group, op security.Operation) ([]id.ID, error) {
	spec, err := t.prepareSpec(ctx, p, GetQuery{Rules: rules}, op)
	if err != nil {
		return nil, err
	}
	return t.Repo.SelectIDs(ctx, spec)
}

func (t *Transformer[T]) selectKeysByID(ctx context.Context, p *security.Principal, entityID id.ID, op security.Operation) ([]id.ID, error) {
	spec, err := t.prepareSpec(ctx, p, GetQuery{}, op)
	if err != nil {
		return nil, err
	}
	spec.Predicate = withIDPredicate(spec.Predicate, t.Repo.IDColumn(), entityID)
	return t.Repo.SelectIDs(ctx, spec)
}

func withIDPredicate(pred squirrel.Sqlizer, idColumn string, entityID id.ID) squirrel.Sqlizer {
	idPred := squirrel.Eq{idColumn: entityID}
	if pred == nil {
		return idPred
	}
	return squirrel.And{pred, idPred}
}
