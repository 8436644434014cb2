package tags

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/id"
	"memberbase/internal/core/security"
	"memberbase/internal/core/settings"
	"memberbase/internal/domain/filter"
	"memberbase/internal/domain/transform"
	"memberbase/internal/infrastructure/storage/postgres"
	"memberbase/internal/infrastructure/storage/postgres/entity_repo"
	"memberbase/pkg/logger"
)

// Config binds a Manager to one entity type ↔ tag type pair.
type Config struct {
	// EntityName is used in error messages, e.g. "contact_tag".
	EntityName string

	// TagTable holds the tags themselves.
	TagTable string

	// AssignmentTable holds (entity_id, tag_id) link rows.
	AssignmentTable string

	// EntityColumn and TagColumn are the link row columns.
	EntityColumn string
	TagColumn    string
}

// Manager provides tag CRUD and assignment management for one entity type.
// Tag reads are open to any authenticated caller; mutations are privileged.
type Manager struct {
	cfg         Config
	txm         *postgres.TxManager
	transformer *transform.Transformer[Tag]
}

// NewManager creates a tag manager over the given tables.
func NewManager(cfg Config, txm *postgres.TxManager, store *settings.Store) *Manager {
	repo := entity_repo.NewBaseEntityRepo[Tag](txm, cfg.TagTable, "id")

	t := &transform.Transformer[Tag]{
		EntityName:  cfg.EntityName,
		Schema:      Schema,
		Repo:        repo,
		EntityID:    func(tag Tag) id.ID { return tag.ID },
		DefaultSort: "name",
		Settings:    store,
		AuthRules: func(ctx context.Context, p *security.Principal, op security.Operation) []filter.Node {
			// Any authenticated caller may list tags; mutations stay
			// privileged-only. Anonymous reads are a runtime toggle.
			if op != security.OperationRead {
				return nil
			}
			open := store != nil && store.Current().OpenTagReads
			if p == nil && !open {
				return nil
			}
			return []filter.Node{filter.Rule{Field: "name", Operator: filter.IsNotEmpty}}
		},
	}

	return &Manager{cfg: cfg, txm: txm, transformer: t}
}

// List returns tags matching the query.
func (m *Manager) List(ctx context.Context, p *security.Principal, q transform.GetQuery) (transform.ListResult[Tag], error) {
	return m.transformer.Fetch(ctx, p, q)
}

// Create persists a new tag.
func (m *Manager) Create(ctx context.Context, p *security.Principal, name, description string) (Tag, error) {
	tag := Tag{ID: id.New(), Name: name, Description: description}
	return m.transformer.Create(ctx, p, tag)
}

// Update renames or re-describes a tag.
func (m *Manager) Update(ctx context.Context, p *security.Principal, tagID id.ID, updates map[string]any) (Tag, error) {
	if err := m.transformer.UpdateByID(ctx, p, tagID, updates); err != nil {
		return Tag{}, err
	}
	return m.transformer.FetchOneByID(ctx, p, tagID)
}

// Delete removes a tag and all of its assignments. The cascade is explicit:
// assignment rows go first, then the tag row, in one transaction. NotFound if
// the tag does not exist.
func (m *Manager) Delete(ctx context.Context, p *security.Principal, tagID id.ID) error {
	return m.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := m.transformer.Repo.GetByID(ctx, tagID); err != nil {
			return err
		}

		q := m.builder().
			Delete(m.cfg.AssignmentTable).
			Where(squirrel.Eq{m.cfg.TagColumn: tagID})
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build assignment cascade: %w", err)
		}
		if _, err := m.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}

		return m.transformer.DeleteByID(ctx, p, tagID)
	})
}

// UpdateEntityTags applies prefixed assignment tokens to a set of entities:
// "+id" adds the tag to every entity, "-id" removes it. Adds tolerate
// duplicates as a no-op; removes match exact (entity, tag) pairs. Tag ids are
// not checked for existence; the delete cascade prevents dangling
// assignments.
func (m *Manager) UpdateEntityTags(ctx context.Context, entityIDs []id.ID, tokens []string) error {
	if len(entityIDs) == 0 || len(tokens) == 0 {
		return nil
	}

	add, remove, err := parseTokens(tokens)
	if err != nil {
		return err
	}

	querier := m.txm.GetQuerier(ctx)

	if len(add) > 0 {
		sql, args, err := m.assignmentInsert(entityIDs, add).ToSql()
		if err != nil {
			return fmt.Errorf("build assignment insert: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
	}

	if len(remove) > 0 {
		sql, args, err := m.assignmentDelete(entityIDs, remove).ToSql()
		if err != nil {
			return fmt.Errorf("build assignment delete: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
	}

	logger.Debug(ctx, "entity tags updated",
		"entity", m.cfg.EntityName,
		"entities", len(entityIDs),
		"added", len(add),
		"removed", len(remove),
	)
	return nil
}

// assignmentInsert builds the bulk insert for the entity×tag cross product.
// The conflict suffix makes re-adding an existing pair a no-op.
func (m *Manager) assignmentInsert(entityIDs, tagIDs []id.ID) squirrel.InsertBuilder {
	q := m.builder().
		Insert(m.cfg.AssignmentTable).
		Columns(m.cfg.EntityColumn, m.cfg.TagColumn).
		Suffix("ON CONFLICT DO NOTHING")
	for _, entityID := range entityIDs {
		for _, tagID := range tagIDs {
			q = q.Values(entityID, tagID)
		}
	}
	return q
}

// assignmentDelete builds the bulk delete matching exact (entity, tag) pairs.
func (m *Manager) assignmentDelete(entityIDs, tagIDs []id.ID) squirrel.DeleteBuilder {
	return m.builder().
		Delete(m.cfg.AssignmentTable).
		Where(squirrel.Eq{m.cfg.EntityColumn: entityIDs}).
		Where(squirrel.Eq{m.cfg.TagColumn: tagIDs})
}

// entityTagRow is the join row shape for LoadEntityTags.
type entityTagRow struct {
	EntityID    id.ID  `db:"entity_id"`
	ID          id.ID  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}

// LoadEntityTags fetches tags for all given entities in a single joined
// query and partitions the result per entity, avoiding N+1 queries on list
// views. Entities without tags get no map entry.
func (m *Manager) LoadEntityTags(ctx context.Context, entityIDs []id.ID) (map[id.ID][]Tag, error) {
	if len(entityIDs) == 0 {
		return map[id.ID][]Tag{}, nil
	}

	sql, args, err := m.entityTagsQuery(entityIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entity tags query: %w", err)
	}

	rows := []entityTagRow{}
	if err := pgxscan.Select(ctx, m.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("load entity tags: %w", err)
	}

	return partitionEntityTags(rows), nil
}

// entityTagsQuery builds the single join over assignments and tags for a set
// of entities, ordered by tag name for stable per-entity lists.
func (m *Manager) entityTagsQuery(entityIDs []id.ID) squirrel.SelectBuilder {
	return m.builder().
		Select(
			"a."+m.cfg.EntityColumn+" AS entity_id",
			"t.id", "t.name", "t.description",
		).
		From(m.cfg.AssignmentTable + " a").
		Join(m.cfg.TagTable + " t ON t.id = a." + m.cfg.TagColumn).
		Where(squirrel.Eq{"a." + m.cfg.EntityColumn: entityIDs}).
		OrderBy("t.name ASC")
}

// partitionEntityTags groups join rows per entity, preserving row order.
func partitionEntityTags(rows []entityTagRow) map[id.ID][]Tag {
	byEntity := make(map[id.ID][]Tag)
	for _, row := range rows {
		byEntity[row.EntityID] = append(byEntity[row.EntityID], Tag{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
		})
	}
	return byEntity
}

func (m *Manager) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// parseTokens splits assignment tokens into add and remove sets. Every token
// must be exactly one '+' or '-' followed by a tag identifier.
func parseTokens(tokens []string) (add, remove []id.ID, err error) {
	for _, token := range tokens {
		if len(token) < 2 || (token[0] != '+' && token[0] != '-') {
			return nil, nil, apperror.NewValidation("invalid tag token").WithDetail("token", token)
		}
		tagID, parseErr := id.Parse(strings.TrimSpace(token[1:]))
		if parseErr != nil {
			return nil, nil, apperror.NewValidation("invalid tag id in token").WithDetail("token", token)
		}
		if token[0] == '+' {
			add = append(add, tagID)
		} else {
			remove = append(remove, tagID)
		}
	}
	return add, remove, nil
}
