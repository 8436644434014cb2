package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"memberbase/internal/core/apperror"
	"memberbase/internal/core/id"
	"memberbase/internal/core/security"
)

const (
	HeaderContactID = "X-Auth-Contact-ID"
	HeaderRoles     = "X-Auth-Roles"
)

// Principal extracts the authenticated principal from trusted gateway
// headers and adds it to the request context. Requests without the contact
// header proceed as anonymous; row-level rules then decide what, if
// anything, they may see.
//
// This middleware trusts its headers. It must sit behind the gateway that
// performs actual authentication and strips these headers from client input.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderContactID)
		if raw == "" {
			c.Next()
			return
		}

		contactID, err := id.Parse(raw)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid principal header"))
			c.Abort()
			return
		}

		p := &security.Principal{ID: contactID}
		for _, r := range strings.Split(c.GetHeader(HeaderRoles), ",") {
			switch security.Role(strings.TrimSpace(r)) {
			case security.RoleMember:
				p.Roles = append(p.Roles, security.RoleMember)
			case security.RoleAdmin:
				p.Roles = append(p.Roles, security.RoleAdmin)
			case security.RoleSuperAdmin:
				p.Roles = append(p.Roles, security.RoleSuperAdmin)
			}
		}

		ctx := security.WithPrincipal(c.Request.Context(), p)
		c.Request = c.Request.WithContext(ctx)
		c.Set("contact_id", contactID.String())

		c.Next()
	}
}
