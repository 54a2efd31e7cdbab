package payments

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/pkg/response"
)

const maxWebhookBytes = 65536

// CheckoutRequest is the body for POST /webinars/:id/checkout. Attendees may omit
// attendee_id; their token names them.
type CheckoutRequest struct {
	AttendeeID uuid.UUID `json:"attendee_id"`
}

// Handler handles checkout and payment webhooks.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Checkout handles POST /webinars/:id/checkout behind middleware.Viewer.
func (h *Handler) Checkout(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	var req CheckoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	attendeeID := req.AttendeeID
	var presenterID uuid.UUID
	if v, ok := c.Get(middleware.ContextAttendeeID); ok {
		tokenAttendee, _ := v.(uuid.UUID)
		if attendeeID != uuid.Nil && attendeeID != tokenAttendee {
			response.Forbidden(c, "you can only check out for yourself")
			return
		}
		attendeeID = tokenAttendee
	} else if v, ok := c.Get(middleware.ContextUserID); ok {
		presenterID, _ = v.(uuid.UUID)
		if presenterID == uuid.Nil {
			response.Unauthorized(c, "missing user context")
			return
		}
	}
	if attendeeID == uuid.Nil {
		response.BadRequest(c, "attendee_id is required")
		return
	}

	url, err := h.service.CreateCheckout(c.Request.Context(), webinarID, attendeeID, presenterID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"session_url": url})
}

// Webhook handles POST /webhooks/stripe.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	if err := h.service.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
