package dto

import (
	"time"

	"memberbase/internal/core/id"
	"memberbase/internal/domain/contacts"
)

// CreateContactRequest for creating contacts.
type CreateContactRequest struct {
	Email                     string     `json:"email" binding:"required,email"`
	Firstname                 string     `json:"firstname" binding:"required"`
	Lastname                  string     `json:"lastname" binding:"required"`
	Joined                    *time.Time `json:"joined"`
	NewsletterStatus          string     `json:"newsletterStatus"`
	DeliveryOptIn             bool       `json:"deliveryOptIn"`
	ContributionMonthlyAmount *float64   `json:"contributionMonthlyAmount"`
	ReferredBy                *string    `json:"referredBy"`
}

// ToEntity builds the contact to insert.
func (r CreateContactRequest) ToEntity() (contacts.Contact, error) {
	c := contacts.Contact{
		Email:                     r.Email,
		Firstname:                 r.Firstname,
		Lastname:                  r.Lastname,
		NewsletterStatus:          r.NewsletterStatus,
		DeliveryOptIn:             r.DeliveryOptIn,
		ContributionMonthlyAmount: r.ContributionMonthlyAmount,
	}
	if r.Joined != nil {
		c.Joined = *r.Joined
	} else {
		c.Joined = time.Now().UTC()
	}
	if c.NewsletterStatus == "" {
		c.NewsletterStatus = contacts.NewsletterNone
	}
	if r.ReferredBy != nil {
		ref, err := id.Parse(*r.ReferredBy)
		if err != nil {
			return contacts.Contact{}, err
		}
		c.ReferredBy = &ref
	}
	return c, nil
}

// UpdateContactRequest for partial contact updates. Only present fields are
// written.
type UpdateContactRequest struct {
	Email                     *string    `json:"email" binding:"omitempty,email"`
	Firstname                 *string    `json:"firstname"`
	Lastname                  *string    `json:"lastname"`
	LastSeen                  *time.Time `json:"lastSeen"`
	NewsletterStatus          *string    `json:"newsletterStatus"`
	DeliveryOptIn             *bool      `json:"deliveryOptIn"`
	ContributionMonthlyAmount *float64   `json:"contributionMonthlyAmount"`
}

// Updates builds the column update map.
func (r UpdateContactRequest) Updates() map[string]any {
	updates := make(map[string]any)
	if r.Email != nil {
		updates["email"] = *r.Email
	}
	if r.Firstname != nil {
		updates["firstname"] = *r.Firstname
	}
	if r.Lastname != nil {
		updates["lastname"] = *r.Lastname
	}
	if r.LastSeen != nil {
		updates["last_seen"] = *r.LastSeen
	}
	if r.NewsletterStatus != nil {
		updates["newsletter_status"] = *r.NewsletterStatus
	}
	if r.DeliveryOptIn != nil {
		updates["delivery_opt_in"] = *r.DeliveryOptIn
	}
	if r.ContributionMonthlyAmount != nil {
		updates["contribution_monthly_amount"] = *r.ContributionMonthlyAmount
	}
	return updates
}
