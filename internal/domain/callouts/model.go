// Package callouts wires callout (survey) responses into the generic
// filtering and access machinery, including their own tag pairing.
package callouts

import (
	"time"

	"memberbase/internal/core/id"
	"memberbase/internal/domain/filter"
	"memberbase/internal/domain/tags"
)

// Response is one submitted answer set for a callout.
type Response struct {
	ID        id.ID     `db:"id" json:"id"`
	CalloutID id.ID     `db:"callout_id" json:"calloutId"`
	ContactID *id.ID    `db:"contact_id" json:"contactId,omitempty"`
	Number    int       `db:"number" json:"number"`
	Bucket    *string   `db:"bucket" json:"bucket,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	// Tags are loaded after paging.
	Tags []tags.Tag `db:"-" json:"tags,omitempty"`
}

// Schema declares the response fields exposed to client filters.
var Schema = filter.MustSchema(filter.Schema{
	"callout_id": {Type: filter.TypeReference},
	"contact_id": {Type: filter.TypeReference, Nullable: true},
	"number":     {Type: filter.TypeNumber},
	"bucket":     {Type: filter.TypeText, Nullable: true},
	"created_at": {Type: filter.TypeDate},
})

// TagFieldName is the virtual field for tag membership filters.
const TagFieldName = "tags"
