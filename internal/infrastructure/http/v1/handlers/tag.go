package handlers

import (
	"github.com/gin-gonic/gin"

	"memberbase/internal/domain/tags"
	"memberbase/internal/infrastructure/http/v1/dto"
)

// TagHandler serves the tag catalog of one entity pairing. The same handler
// type is mounted once per pairing (contact tags, callout response tags).
type TagHandler struct {
	base    *BaseHandler
	manager *tags.Manager
}

// NewTagHandler creates a tag handler for one pairing.
func NewTagHandler(base *BaseHandler, manager *tags.Manager) *TagHandler {
	return &TagHandler{base: base, manager: manager}
}

// RegisterRoutes mounts the tag catalog routes on the group.
func (h *TagHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

// List handles GET: a rule-filtered page of tags.
func (h *TagHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if !h.base.BindQuery(c, &req) {
		return
	}
	query, err := req.ToQuery()
	if err != nil {
		h.base.Error(c, err)
		return
	}

	result, err := h.manager.List(c.Request.Context(), h.base.Principal(c), query)
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.OK(c, result)
}

// Create handles POST.
func (h *TagHandler) Create(c *gin.Context) {
	var req dto.TagRequest
	if !h.base.BindJSON(c, &req) {
		return
	}

	tag, err := h.manager.Create(c.Request.Context(), h.base.Principal(c), req.Name, req.Description)
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.Created(c, tag.ID)
}

// Update handles PATCH /:id.
func (h *TagHandler) Update(c *gin.Context) {
	tagID, ok := h.base.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.TagRequest
	if !h.base.BindJSON(c, &req) {
		return
	}

	tag, err := h.manager.Update(c.Request.Context(), h.base.Principal(c), tagID, map[string]any{
		"name":        req.Name,
		"description": req.Description,
	})
	if err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.OK(c, tag)
}

// Delete handles DELETE /:id. Removes the tag and all its assignments.
func (h *TagHandler) Delete(c *gin.Context) {
	tagID, ok := h.base.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.manager.Delete(c.Request.Context(), h.base.Principal(c), tagID); err != nil {
		h.base.Error(c, err)
		return
	}
	h.base.NoContent(c)
}
