package handlers

import (
	"github.com/gin-gonic/gin"

	"memberbase/internal/domain/callouts"
	"memberbase/internal/infrastructure/http/v1/dto"
)

// CalloutResponseHandler serves the callout response endpoints.
type CalloutResponseHandler struct {
	base    *BaseHandler
	service *callouts.Service
}

// NewCalloutResponseHandler creates a callout response handler.
func NewCalloutResponseHandler(base *BaseHandler, service *callouts.Service) *CalloutResponseHandler {
	return &CalloutResponseHandler{base: base, service: service}
}

// RegisterRoutes mounts the callout response routes on the group.
func (h *CalloutResponseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("", h.Update)
	rg.DELETE("", h.Delete)
}

// List handles GET /callout-responses.
func (h *CalloutResponseHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if !h.base.BindQuery(c, &req) {
		return
	}
	query, err := req.ToQuery()
	if err != nil {
		h.base.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), h.base.Principal(c), query)
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.OK(c, result)
}

// Get handles GET /callout-responses/:id.
func (h *CalloutResponseHandler) Get(c *gin.Context) {
	responseID, ok := h.base.ParseID(c, "id")
	if !ok {
		return
	}

	response, err := h.service.Get(c.Request.Context(), h.base.Principal(c), responseID)
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.OK(c, response)
}

// Update handles PATCH /callout-responses: rule-scoped bulk update, used by
// admins to move responses between buckets.
func (h *CalloutResponseHandler) Update(c *gin.Context) {
	var req dto.RuleScopedUpdateRequest
	if !h.base.BindJSON(c, &req) {
		return
	}
	rules, err := dto.ParseRules(req.Rules)
	if err != nil {
		h.base.Error(c, err)
		return
	}

	affected, err := h.service.Update(c.Request.Context(), h.base.Principal(c), rules, req.Updates)
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.OK(c, dto.AffectedResponse{Affected: affected})
}

// Delete handles DELETE /callout-responses: rule-scoped bulk delete.
func (h *CalloutResponseHandler) Delete(c *gin.Context) {
	var req dto.RuleScopedDeleteRequest
	if !h.base.BindJSON(c, &req) {
		return
	}
	rules, err := dto.ParseRules(req.Rules)
	if err != nil {
		h.base.Error(c, err)
		return
	}

	affected, err := h.service.Delete(c.Request.Context(), h.base.Principal(c), rules)
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.OK(c, dto.AffectedResponse{Affected: affected})
}
