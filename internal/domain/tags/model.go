// Package tags manages the many-to-many tag relation for a taggable entity
// type: tag CRUD, bulk assignment updates via prefixed tokens, and the
// sub-query filter handler that lets rule trees filter on tag membership.
package tags

import (
	"memberbase/internal/core/id"
	"memberbase/internal/domain/filter"
)

// Tag is an independent label; its lifecycle does not depend on assignments.
type Tag struct {
	ID          id.ID  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// Assignment links one entity to one tag. The pair is unique.
type Assignment struct {
	EntityID id.ID `db:"entity_id" json:"entityId"`
	TagID    id.ID `db:"tag_id" json:"tagId"`
}

// Schema declares the filterable fields of a tag.
var Schema = filter.MustSchema(filter.Schema{
	"name":        {Type: filter.TypeText},
	"description": {Type: filter.TypeText, Nullable: true},
})

// FieldDescriptor is the virtual-field descriptor entities register for their
// tag membership pseudo-field.
var FieldDescriptor = filter.Descriptor{Type: filter.TypeArray, Nullable: true}
