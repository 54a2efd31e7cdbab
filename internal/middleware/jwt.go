package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/spotlight/internal/auth"
	"github.com/aura-webinar/spotlight/pkg/response"
)

const (
	// ContextUserID is the key for the presenter ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextAttendeeID is set when the request carries an attendee token.
	ContextAttendeeID = "attendee_id"
	// ContextAttendeeWebinarID is the webinar the attendee token was issued for.
	ContextAttendeeWebinarID = "attendee_webinar_id"
)

// JWT returns a middleware that validates a presenter JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// Viewer accepts either a presenter JWT or an attendee token and rejects requests that
// carry neither. The token may also come from the "token" query parameter so that
// emailed links and websocket upgrades work.
func Viewer(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			token = c.Query("token")
		}
		if token == "" {
			response.Unauthorized(c, "sign in or register to view this webinar")
			c.Abort()
			return
		}
		if claims, err := jwtService.Validate(token); err == nil {
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextUserRole, claims.Role)
			c.Set(ContextUserEmail, claims.Email)
			c.Next()
			return
		}
		claims, err := jwtService.ValidateAttendee(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextAttendeeID, claims.AttendeeID)
		c.Set(ContextAttendeeWebinarID, claims.WebinarID)
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
