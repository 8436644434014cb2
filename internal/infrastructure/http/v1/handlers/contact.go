package handlers

import (
	"github.com/gin-gonic/gin"

	"memberbase/internal/domain/contacts"
	"memberbase/internal/infrastructure/http/v1/dto"
)

// ContactHandler serves the contact endpoints.
type ContactHandler struct {
	base    *BaseHandler
	service *contacts.Service
}

// NewContactHandler creates a contact handler.
func NewContactHandler(base *BaseHandler, service *contacts.Service) *ContactHandler {
	return &ContactHandler{base: base, service: service}
}

// RegisterRoutes mounts the contact routes on the group.
func (h *ContactHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.UpdateByID)
	rg.DELETE("/:id", h.DeleteByID)
	rg.PATCH("", h.Update)
	rg.DELETE("", h.Delete)
	rg.POST("/tags", h.UpdateTags)
}

// List handles GET /contacts: a rule-filtered page of contacts.
func (h *ContactHandler) List(c *gin.Context) {
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

// Get handles GET /contacts/:id.
func (h *ContactHandler) Get(c *gin.Context) {
	contactID, ok := h.base.ParseID(c, "id")
	if !ok {
		return
	}

	contact, err := h.service.Get(c.Request.Context(), h.base.Principal(c), contactID)
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.OK(c, contact)
}

// Create handles POST /contacts.
func (h *ContactHandler) Create(c *gin.Context) {
	var req dto.CreateContactRequest
	if !h.base.BindJSON(c, &req) {
		return
	}
	contact, err := req.ToEntity()
	if err != nil {
		h.base.Error(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), h.base.Principal(c), contact)
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.Created(c, created.ID)
}

// Update handles PATCH /contacts: rule-scoped bulk update.
func (h *ContactHandler) Update(c *gin.Context) {
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

// UpdateByID handles PATCH /contacts/:id.
func (h *ContactHandler) UpdateByID(c *gin.Context) {
	contactID, ok := h.base.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateContactRequest
	if !h.base.BindJSON(c, &req) {
		return
	}

	contact, err := h.service.UpdateByID(c.Request.Context(), h.base.Principal(c), contactID, req.Updates())
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.OK(c, contact)
}

// Delete handles DELETE /contacts: rule-scoped bulk delete.
func (h *ContactHandler) Delete(c *gin.Context) {
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

// DeleteByID handles DELETE /contacts/:id.
func (h *ContactHandler) DeleteByID(c *gin.Context) {
	contactID, ok := h.base.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteByID(c.Request.Context(), h.base.Principal(c), contactID); err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.NoContent(c)
}

// UpdateTags handles POST /contacts/tags: applies "+id"/"-id" tokens to the
// listed contacts.
func (h *ContactHandler) UpdateTags(c *gin.Context) {
	var req dto.TagTokensRequest
	if !h.base.BindJSON(c, &req) {
		return
	}
	contactIDs, err := req.ParseEntityIDs()
	if err != nil {
		h.base.Error(c, err)
		return
	}

	if err := h.service.UpdateTags(c.Request.Context(), h.base.Principal(c), contactIDs, req.Tokens); err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.Success(c, "tags updated")
}
