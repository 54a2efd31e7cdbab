package access

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/pkg/response"
)

// Handler serves the public webinar page endpoints. Routes sit behind
// middleware.Viewer, so either a presenter or an attendee identity is present.
type Handler struct {
	gate   *Gate
	logger *zap.Logger
}

// NewHandler creates an access handler.
func NewHandler(gate *Gate, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gate: gate, logger: logger}
}

// View handles GET /webinars/:id/view.
func (h *Handler) View(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	userID, attendeeID := identity(c)

	view, err := h.gate.Resolve(c.Request.Context(), webinarID, userID, attendeeID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, view)
}

// Call handles GET /webinars/:id/call, the voice agent page of an attendee.
func (h *Handler) Call(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	_, attendeeID := identity(c)
	if attendeeID == uuid.Nil {
		response.Forbidden(c, "only registered attendees can book a call")
		return
	}

	call, err := h.gate.CheckCall(c.Request.Context(), webinarID, attendeeID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, call)
}

func identity(c *gin.Context) (userID, attendeeID uuid.UUID) {
	if v, ok := c.Get(middleware.ContextUserID); ok {
		userID, _ = v.(uuid.UUID)
	}
	if v, ok := c.Get(middleware.ContextAttendeeID); ok {
		attendeeID, _ = v.(uuid.UUID)
	}
	return userID, attendeeID
}
