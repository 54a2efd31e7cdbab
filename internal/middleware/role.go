package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/response"
)

// RequireRole limits a route group to accounts holding one of roles. It must run after JWT;
// attendee tokens never carry a role and are turned away here.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role := models.Role(c.GetString(ContextUserRole))
		switch {
		case role == "":
			response.Unauthorized(c, "presenter account required")
		case !allowed[role]:
			response.Forbidden(c, "insufficient permissions")
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}
