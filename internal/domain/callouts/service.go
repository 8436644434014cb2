package callouts

import (
	"context"

	"memberbase/internal/core/id"
	"memberbase/internal/core/security"
	"memberbase/internal/core/settings"
	"memberbase/internal/domain/filter"
	"memberbase/internal/domain/tags"
	"memberbase/internal/domain/transform"
	"memberbase/internal/infrastructure/storage/postgres"
	"memberbase/internal/infrastructure/storage/postgres/entity_repo"
	"memberbase/internal/infrastructure/storage/postgres/filtersql"
)

// Service exposes callout response listing, mutation and tagging.
type Service struct {
	transformer *transform.Transformer[Response]
	tagManager  *tags.Manager
}

// NewService wires the response transformer. Non-privileged callers see only
// responses they submitted themselves.
func NewService(txm *postgres.TxManager, store *settings.Store) *Service {
	tagManager := tags.NewManager(tags.Config{
		EntityName:      "callout_response_tag",
		TagTable:        "callout_response_tags",
		AssignmentTable: "callout_response_tag_assignments",
		EntityColumn:    "response_id",
		TagColumn:       "tag_id",
	}, txm, store)

	repo := entity_repo.NewBaseEntityRepo[Response](txm, "callout_responses", "id")

	s := &Service{tagManager: tagManager}
	s.transformer = &transform.Transformer[Response]{
		EntityName:  "callout_response",
		Schema:      Schema,
		Repo:        repo,
		EntityID:    func(r Response) id.ID { return r.ID },
		DefaultSort: "created_at",
		Settings:    store,
		ExtraSchema: filter.Schema{TagFieldName: tags.FieldDescriptor},
		Handlers: map[string]filtersql.Handler{
			TagFieldName: tagManager.FilterHandler("id"),
		},
		AuthRules: func(ctx context.Context, p *security.Principal, op security.Operation) []filter.Node {
			if p == nil || op != security.OperationRead {
				return nil
			}
			return []filter.Node{filter.Rule{
				Field:    "contact_id",
				Operator: filter.Equal,
				Value:    []any{"me"},
			}}
		},
		LoadRelated: s.loadTags,
	}
	return s
}

// Transformer exposes the underlying access layer for composition.
func (s *Service) Transformer() *transform.Transformer[Response] {
	return s.transformer
}

// Tags exposes the response tag manager.
func (s *Service) Tags() *tags.Manager {
	return s.tagManager
}

func (s *Service) loadTags(ctx context.Context, items []Response) error {
	ids := make([]id.ID, len(items))
	for i, r := range items {
		ids[i] = r.ID
	}
	byResponse, err := s.tagManager.LoadEntityTags(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Tags = byResponse[items[i].ID]
	}
	return nil
}

// List returns one page of responses visible to the principal.
func (s *Service) List(ctx context.Context, p *security.Principal, q transform.GetQuery) (transform.ListResult[Response], error) {
	return s.transformer.Fetch(ctx, p, q)
}

// Get returns a single response, subject to row-level rules.
func (s *Service) Get(ctx context.Context, p *security.Principal, responseID id.ID) (Response, error) {
	return s.transformer.FetchOneByID(ctx, p, responseID)
}

// Update applies updates to every response matching the rules.
func (s *Service) Update(ctx context.Context, p *security.Principal, rules *filter.Group, updates map[string]any) (int64, error) {
	return s.transformer.Update(ctx, p, rules, updates)
}

// Delete removes every response matching the rules.
func (s *Service) Delete(ctx context.Context, p *security.Principal, rules *filter.Group) (int64, error) {
	return s.transformer.Delete(ctx, p, rules)
}
