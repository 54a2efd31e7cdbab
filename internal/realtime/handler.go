package realtime

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/response"
)

// Webinars reads webinars.
type Webinars interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// Attendees resolves an attendee registered for a webinar, or fails with NotFound.
type Attendees interface {
	Attendee(ctx context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendee, error)
}

// Handler upgrades chat connections for GET /webinars/:id/chat. It runs behind
// middleware.Viewer; the token usually arrives in the query string.
type Handler struct {
	hub       *Hub
	webinars  Webinars
	attendees Attendees
	presence  *Presence
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewHandler creates a chat handler accepting browser origins in allowedOrigins
// ("*" allows all).
func NewHandler(hub *Hub, webinars Webinars, attendees Attendees, presence *Presence, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:       hub,
		webinars:  webinars,
		attendees: attendees,
		presence:  presence,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func (h *Handler) ServeWs(c *gin.Context) {
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
	if w.Status == models.WebinarStatusCancelled {
		response.Forbidden(c, "this webinar has been cancelled")
		return
	}

	var userID, attendeeID uuid.UUID
	if v, ok := c.Get(middleware.ContextUserID); ok {
		userID, _ = v.(uuid.UUID)
	}
	if v, ok := c.Get(middleware.ContextAttendeeID); ok {
		attendeeID, _ = v.(uuid.UUID)
	}

	role, name := "", ""
	switch {
	case userID != uuid.Nil && w.IsPresenter(userID):
		role, name = RolePresenter, "Host"
	case attendeeID != uuid.Nil:
		attendee, err := h.attendees.Attendee(ctx, attendeeID, webinarID)
		if err != nil {
			response.Error(c, h.logger, err)
			return
		}
		role, name = RoleAttendee, attendee.Name
	default:
		response.Forbidden(c, "register for this webinar to join the chat")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, webinarID, h.logger)
	client.UserID = userID
	client.AttendeeID = attendeeID
	if role == RoleAttendee {
		client.UserID = uuid.Nil
	}
	client.Role = role
	client.Name = name
	client.LockChat = w.LockChat

	// the request context ends with the handler; presence writes outlive it
	bg := context.WithoutCancel(ctx)
	if h.presence != nil {
		h.presence.Joined(bg, client, w)
	}
	h.hub.Register(client)
	go client.writePump()
	client.readPump(bg)

	h.hub.Unregister(client)
	if h.presence != nil {
		h.presence.Left(bg, client)
	}
}
