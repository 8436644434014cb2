package contacts

import (
	"context"

	"memberbase/internal/core/apperror"
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

// Service exposes contact listing, mutation and tagging.
type Service struct {
	transformer *transform.Transformer[Contact]
	tagManager  *tags.Manager
}

// NewService wires the contact transformer: schema, tag virtual field,
// row-level rules (a non-privileged member sees only their own record) and
// the post-paging tag enrichment.
func NewService(txm *postgres.TxManager, store *settings.Store) *Service {
	tagManager := tags.NewManager(tags.Config{
		EntityName:      "contact_tag",
		TagTable:        "contact_tags",
		AssignmentTable: "contact_tag_assignments",
		EntityColumn:    "contact_id",
		TagColumn:       "tag_id",
	}, txm, store)

	repo := entity_repo.NewBaseEntityRepo[Contact](txm, "contacts", "id")

	s := &Service{tagManager: tagManager}
	s.transformer = &transform.Transformer[Contact]{
		EntityName:  "contact",
		Schema:      Schema,
		Repo:        repo,
		EntityID:    func(c Contact) id.ID { return c.ID },
		DefaultSort: "joined",
		Settings:    store,
		ExtraSchema: filter.Schema{TagFieldName: tags.FieldDescriptor},
		Handlers: map[string]filtersql.Handler{
			TagFieldName: tagManager.FilterHandler("id"),
		},
		AuthRules: func(ctx context.Context, p *security.Principal, op security.Operation) []filter.Node {
			if p == nil {
				return nil
			}
			switch op {
			case security.OperationRead, security.OperationUpdate:
				// Members see and edit only themselves.
				return []filter.Node{filter.Rule{
					Field:    "id",
					Operator: filter.Equal,
					Value:    []any{"me"},
				}}
			}
			return nil
		},
		LoadRelated: s.loadTags,
	}
	return s
}

// Transformer exposes the underlying access layer for composition.
func (s *Service) Transformer() *transform.Transformer[Contact] {
	return s.transformer
}

// Tags exposes the contact tag manager.
func (s *Service) Tags() *tags.Manager {
	return s.tagManager
}

func (s *Service) loadTags(ctx context.Context, items []Contact) error {
	ids := make([]id.ID, len(items))
	for i, c := range items {
		ids[i] = c.ID
	}
	byContact, err := s.tagManager.LoadEntityTags(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Tags = byContact[items[i].ID]
	}
	return nil
}

// List returns one page of contacts visible to the principal.
func (s *Service) List(ctx context.Context, p *security.Principal, q transform.GetQuery) (transform.ListResult[Contact], error) {
	return s.transformer.Fetch(ctx, p, q)
}

// Get returns a single contact, subject to row-level rules.
func (s *Service) Get(ctx context.Context, p *security.Principal, contactID id.ID) (Contact, error) {
	return s.transformer.FetchOneByID(ctx, p, contactID)
}

// Create persists a new contact and returns the fetched row.
func (s *Service) Create(ctx context.Context, p *security.Principal, contact Contact) (Contact, error) {
	if id.IsNil(contact.ID) {
		contact.ID = id.New()
	}
	return s.transformer.Create(ctx, p, contact)
}

// Update applies updates to every contact matching the rules.
func (s *Service) Update(ctx context.Context, p *security.Principal, rules *filter.Group, updates map[string]any) (int64, error) {
	return s.transformer.Update(ctx, p, rules, updates)
}

// UpdateByID applies updates to one contact.
func (s *Service) UpdateByID(ctx context.Context, p *security.Principal, contactID id.ID, updates map[string]any) (Contact, error) {
	if err := s.transformer.UpdateByID(ctx, p, contactID, updates); err != nil {
		return Contact{}, err
	}
	return s.transformer.FetchOneByID(ctx, p, contactID)
}

// Delete removes every contact matching the rules.
func (s *Service) Delete(ctx context.Context, p *security.Principal, rules *filter.Group) (int64, error) {
	return s.transformer.Delete(ctx, p, rules)
}

// DeleteByID removes one contact.
func (s *Service) DeleteByID(ctx context.Context, p *security.Principal, contactID id.ID) error {
	return s.transformer.DeleteByID(ctx, p, contactID)
}

// UpdateTags applies "+id"/"-id" tag tokens to the given contacts.
// Tagging other members is a privileged operation; a member may retag
// only their own record.
func (s *Service) UpdateTags(ctx context.Context, p *security.Principal, contactIDs []id.ID, tokens []string) error {
	if !p.IsPrivileged() {
		if p == nil || len(contactIDs) != 1 || contactIDs[0] != p.ID {
			return apperror.NewForbidden("tag updates are limited to your own contact")
		}
	}
	return s.tagManager.UpdateEntityTags(ctx, contactIDs, tokens)
}
