package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/response"
)

// ContextWebinar holds the *models.Webinar loaded by WebinarOwner.
const ContextWebinar = "webinar"

// OwnershipChecker loads a webinar and fails unless actor presents it.
type OwnershipChecker interface {
	OwnedWebinar(ctx context.Context, webinarID, actor uuid.UUID) (*models.Webinar, error)
}

// WebinarOwner lets the request through only when the signed-in presenter owns the
// webinar named by the :id path parameter. Must run after JWT.
func WebinarOwner(checker OwnershipChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		webinarID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid webinar id")
			c.Abort()
			return
		}
		userID := c.MustGet(ContextUserID).(uuid.UUID)
		w, err := checker.OwnedWebinar(c.Request.Context(), webinarID, userID)
		if err != nil {
			response.Error(c, logger, err)
			c.Abort()
			return
		}
		c.Set(ContextWebinar, w)
		c.Next()
	}
}
