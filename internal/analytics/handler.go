package analytics

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/pkg/response"
)

// Handler handles GET /webinars/:id/analytics.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// GetByWebinar handles GET /webinars/:id/analytics. Ownership is enforced by
// middleware.WebinarOwner.
func (h *Handler) GetByWebinar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	out, err := h.service.Summarize(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, out)
}
