package streaming

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/response"
)

// Webinars reads webinars.
type Webinars interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// Attendees reads an attendee registered for a webinar. It returns nil when the
// attendee is not registered.
type Attendees interface {
	Attendance(ctx context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendance, error)
}

// TokenIssuer signs client tokens for the video provider.
type TokenIssuer interface {
	UserToken(userID string) (string, error)
	APIKey() string
	CallType() string
}

// TokenResponse is what a client needs to join the call.
type TokenResponse struct {
	Token    string `json:"token"`
	APIKey   string `json:"api_key"`
	CallType string `json:"call_type"`
	CallID   string `json:"call_id"`
	UserID   string `json:"user_id"`
	Host     bool   `json:"host"`
}

// Handler issues stream tokens.
type Handler struct {
	issuer    TokenIssuer
	webinars  Webinars
	attendees Attendees
	logger    *zap.Logger
}

// NewHandler creates a streaming handler.
func NewHandler(issuer TokenIssuer, webinars Webinars, attendees Attendees, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{issuer: issuer, webinars: webinars, attendees: attendees, logger: logger}
}

// Token handles GET /webinars/:id/stream-token. The presenter gets a host token,
// registered attendees a viewer token.
func (h *Handler) Token(c *gin.Context) {
	webinarID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	ctx := c.Request.Context()

	w, err := h.webinars.GetByID(ctx, webinarID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if w == nil {
		response.NotFound(c, "webinar not found")
		return
	}

	var subject string
	host := false
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if userID, _ := v.(uuid.UUID); w.IsPresenter(userID) {
			subject, host = userID.String(), true
		}
	}
	if subject == "" {
		if v, ok := c.Get(middleware.ContextAttendeeID); ok {
			attendeeID, _ := v.(uuid.UUID)
			a, err := h.attendees.Attendance(ctx, attendeeID, webinarID)
			if err != nil {
				response.Error(c, h.logger, err)
				return
			}
			if a != nil {
				subject = attendeeID.String()
			}
		}
	}
	if subject == "" {
		response.Forbidden(c, "register for this webinar to watch the stream")
		return
	}

	token, err := h.issuer.UserToken(subject)
	if err != nil {
		h.logger.Error("sign stream token failed", zap.Error(err))
		response.Internal(c, "failed to issue stream token")
		return
	}
	response.OK(c, TokenResponse{
		Token:    token,
		APIKey:   h.issuer.APIKey(),
		CallType: h.issuer.CallType(),
		CallID:   CallID(webinarID),
		UserID:   subject,
		Host:     host,
	})
}
