// Package contacts wires the membership contact entity into the generic
// filtering and access machinery.
package contacts

import (
	"time"

	"memberbase/internal/core/id"
	"memberbase/internal/domain/filter"
	"memberbase/internal/domain/tags"
)

// NewsletterStatus values accepted by the newsletter_status enum filter.
const (
	NewsletterSubscribed   = "subscribed"
	NewsletterUnsubscribed = "unsubscribed"
	NewsletterCleaned      = "cleaned"
	NewsletterPending      = "pending"
	NewsletterNone         = "none"
)

// Contact is a member record.
type Contact struct {
	ID                        id.ID      `db:"id" json:"id"`
	Email                     string     `db:"email" json:"email"`
	Firstname                 string     `db:"firstname" json:"firstname"`
	Lastname                  string     `db:"lastname" json:"lastname"`
	Joined                    time.Time  `db:"joined" json:"joined"`
	LastSeen                  *time.Time `db:"last_seen" json:"lastSeen,omitempty"`
	NewsletterStatus          string     `db:"newsletter_status" json:"newsletterStatus"`
	DeliveryOptIn             bool       `db:"delivery_opt_in" json:"deliveryOptIn"`
	ContributionMonthlyAmount *float64   `db:"contribution_monthly_amount" json:"contributionMonthlyAmount,omitempty"`
	ReferredBy                *id.ID     `db:"referred_by" json:"referredBy,omitempty"`

	// Tags are loaded after paging to avoid row multiplication from joins.
	Tags []tags.Tag `db:"-" json:"tags,omitempty"`
}

// Schema declares the contact fields exposed to client filters.
var Schema = filter.MustSchema(filter.Schema{
	"id":                          {Type: filter.TypeReference},
	"email":                       {Type: filter.TypeText},
	"firstname":                   {Type: filter.TypeText},
	"lastname":                    {Type: filter.TypeText},
	"joined":                      {Type: filter.TypeDate},
	"last_seen":                   {Type: filter.TypeDate, Nullable: true},
	"newsletter_status":           {Type: filter.TypeEnum, Options: []string{NewsletterSubscribed, NewsletterUnsubscribed, NewsletterCleaned, NewsletterPending, NewsletterNone}},
	"delivery_opt_in":             {Type: filter.TypeBoolean},
	"contribution_monthly_amount": {Type: filter.TypeNumber, Nullable: true},
	"referred_by":                 {Type: filter.TypeReference, Nullable: true},
})

// TagFieldName is the virtual field for tag membership filters.
const TagFieldName = "tags"
