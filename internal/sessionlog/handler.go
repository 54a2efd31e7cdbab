package sessionlog

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/pkg/response"
)

// Handler handles GET /webinars/:id/sessions. Ownership is checked by the
// middleware in front of it.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a session log handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /webinars/:id/sessions (join time, leave time, watch duration).
func (h *Handler) List(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	list, err := h.repo.ListByWebinar(c.Request.Context(), webinarID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"sessions": list, "count": len(list)})
}
