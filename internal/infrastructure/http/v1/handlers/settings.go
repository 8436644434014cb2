package handlers

import (
	"github.com/gin-gonic/gin"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/security"
	"memberbase/internal/core/settings"
)

// SettingsHandler serves the runtime settings endpoints. Reads and writes go
// through the snapshot store, so concurrent requests always see a consistent
// generation.
type SettingsHandler struct {
	base  *BaseHandler
	store *settings.Store
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(base *BaseHandler, store *settings.Store) *SettingsHandler {
	return &SettingsHandler{base: base, store: store}
}

// RegisterRoutes mounts the settings routes on the group.
func (h *SettingsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.PUT("", h.Update)
}

// settingsRequest carries the tunable fields; absent fields keep their
// current value.
type settingsRequest struct {
	MaxPageSize        *int  `json:"maxPageSize" binding:"omitempty,min=1"`
	MutationBatchLimit *int  `json:"mutationBatchLimit" binding:"omitempty,min=0"`
	OpenTagReads       *bool `json:"openTagReads"`
}

// Get handles GET /settings (admin only).
func (h *SettingsHandler) Get(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	h.base.OK(c, h.store.Current())
}

// Update handles PUT /settings (superadmin only). Publishes a new snapshot
// generation; in-flight requests keep the one they started with.
func (h *SettingsHandler) Update(c *gin.Context) {
	p := h.base.Principal(c)
	if !p.HasRole(security.RoleSuperAdmin) {
		h.base.Error(c, apperror.NewForbidden("settings updates require superadmin"))
		return
	}

	var req settingsRequest
	if !h.base.BindJSON(c, &req) {
		return
	}

	snap := h.store.Update(func(s *settings.Snapshot) {
		if req.MaxPageSize != nil {
			s.MaxPageSize = *req.MaxPageSize
		}
		if req.MutationBatchLimit != nil {
			s.MutationBatchLimit = *req.MutationBatchLimit
		}
		if req.OpenTagReads != nil {
			s.OpenTagReads = *req.OpenTagReads
		}
	})
	h.base.OK(c, snap)
}

func (h *SettingsHandler) requireAdmin(c *gin.Context) bool {
	if !h.base.Principal(c).IsPrivileged() {
		h.base.Error(c, apperror.NewForbidden("settings require admin access"))
		return false
	}
	return true
}
