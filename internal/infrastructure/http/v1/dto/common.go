// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"encoding/json"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/id"
	"memberbase/internal/domain/filter"
	"memberbase/internal/domain/transform"
)

// --- List request ---

// ListRequest carries the query parameters of list endpoints. The rule group
// arrives as a JSON document in the "rules" parameter.
type ListRequest struct {
	Rules  string `form:"rules"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset" binding:"min=0"`
	Sort   string `form:"sort"`
	Order  string `form:"order"`
}

// ToQuery parses the request into a transformer query. A malformed rules
// document is a validation error, not an invalid-rule error: it never reached
// the rule validator.
func (r ListRequest) ToQuery() (transform.GetQuery, error) {
	q := transform.GetQuery{
		Limit:  r.Limit,
		Offset: r.Offset,
		Sort:   r.Sort,
		Order:  r.Order,
	}
	if r.Rules == "" {
		return q, nil
	}
	group, err := filter.ParseGroup([]byte(r.Rules))
	if err != nil {
		return q, apperror.NewValidation("malformed rules document").WithDetail("error", err.Error())
	}
	q.Rules = group
	return q, nil
}

// --- Rule-scoped mutations ---

// RuleScopedUpdateRequest applies updates to every row matching the rules.
type RuleScopedUpdateRequest struct {
	Rules   json.RawMessage `json:"rules" binding:"required"`
	Updates map[string]any  `json:"updates" binding:"required"`
}

// RuleScopedDeleteRequest deletes every row matching the rules.
type RuleScopedDeleteRequest struct {
	Rules json.RawMessage `json:"rules" binding:"required"`
}

// ParseRules decodes a raw rules document from a mutation body.
func ParseRules(raw json.RawMessage) (*filter.Group, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	group, err := filter.ParseGroup(raw)
	if err != nil {
		return nil, apperror.NewValidation("malformed rules document").WithDetail("error", err.Error())
	}
	return group, nil
}

// AffectedResponse reports how many rows a rule-scoped mutation touched.
type AffectedResponse struct {
	Affected int64 `json:"affected"`
}

// --- Tags ---

// TagRequest creates or updates a tag.
type TagRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// TagTokensRequest applies "+id"/"-id" assignment tokens to entities.
type TagTokensRequest struct {
	EntityIDs []string `json:"entityIds" binding:"required,min=1"`
	Tokens    []string `json:"tokens" binding:"required,min=1"`
}

// ParseEntityIDs decodes the entity ID list.
func (r TagTokensRequest) ParseEntityIDs() ([]id.ID, error) {
	ids := make([]id.ID, len(r.EntityIDs))
	for i, raw := range r.EntityIDs {
		parsed, err := id.Parse(raw)
		if err != nil {
			return nil, apperror.NewValidation("invalid entity id").WithDetail("id", raw)
		}
		ids[i] = parsed
	}
	return ids, nil
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
