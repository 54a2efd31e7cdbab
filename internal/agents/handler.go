package agents

import (
	"context"
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/response"
)

// CallStatusUpdater records voice call progress for an attendee.
type CallStatusUpdater interface {
	ChangeCallStatus(ctx context.Context, attendeeID uuid.UUID, status models.CallStatus) error
}

// CallStatusRequest is the body of the call-status endpoints.
type CallStatusRequest struct {
	AttendeeID uuid.UUID         `json:"attendee_id"`
	Status     models.CallStatus `json:"status" binding:"required"`
}

// Handler handles agent endpoints and voice call status updates.
type Handler struct {
	service       *Service
	calls         CallStatusUpdater
	webhookSecret string
	logger        *zap.Logger
}

// NewHandler creates an agents handler. An empty webhookSecret disables the
// provider webhook.
func NewHandler(service *Service, calls CallStatusUpdater, webhookSecret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, calls: calls, webhookSecret: webhookSecret, logger: logger}
}

// Create handles POST /agents.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	a, err := h.service.Create(c.Request.Context(), userID, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, a)
}

// List handles GET /agents.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Update handles PUT /agents/:id.
func (h *Handler) Update(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid agent id")
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	a, err := h.service.UpdateScript(c.Request.Context(), userID, agentID, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, a)
}

// CallStatusWebhook handles POST /webhooks/voice/call-status, authenticated by the
// shared secret in X-Vapi-Secret.
func (h *Handler) CallStatusWebhook(c *gin.Context) {
	got := c.GetHeader("X-Vapi-Secret")
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
		response.Unauthorized(c, "invalid webhook secret")
		return
	}
	var req CallStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AttendeeID == uuid.Nil {
		response.BadRequest(c, "attendee_id and status are required")
		return
	}
	h.changeStatus(c, req.AttendeeID, req.Status)
}

// ReportCallStatus handles POST /webinars/:id/call/status from the attendee's call page.
func (h *Handler) ReportCallStatus(c *gin.Context) {
	v, ok := c.Get(middleware.ContextAttendeeID)
	if !ok {
		response.Forbidden(c, "only attendees report call status")
		return
	}
	var req CallStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status is required")
		return
	}
	h.changeStatus(c, v.(uuid.UUID), req.Status)
}

func (h *Handler) changeStatus(c *gin.Context, attendeeID uuid.UUID, status models.CallStatus) {
	if err := h.calls.ChangeCallStatus(c.Request.Context(), attendeeID, status); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.logger.Info("call status changed", zap.String("attendee_id", attendeeID.String()), zap.String("status", string(status)))
	response.OK(c, gin.H{"attendee_id": attendeeID, "call_status": status})
}
