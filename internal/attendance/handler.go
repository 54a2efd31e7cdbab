package attendance

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/response"
)

// TokenIssuer signs attendee tokens handed out at registration.
type TokenIssuer interface {
	GenerateAttendee(attendeeID, webinarID uuid.UUID) (string, error)
}

// RegisterResponse is returned by POST /webinars/:id/register.
type RegisterResponse struct {
	Attendance        *models.Attendance `json:"attendance"`
	AlreadyRegistered bool               `json:"already_registered"`
	Message           string             `json:"message"`
	Token             string             `json:"token"`
}

// StageRequest is the body for PUT /webinars/:id/attendees/:attendeeId/stage.
type StageRequest struct {
	AttendedType models.AttendedType `json:"attended_type" binding:"required"`
}

// PipelineColumn is one column of the presenter pipeline board.
type PipelineColumn struct {
	Stage models.AttendedType `json:"stage"`
	Label string              `json:"label"`
	Count int                 `json:"count"`
	Users []StageUser         `json:"users"`
}

// Handler handles attendance HTTP endpoints.
type Handler struct {
	tracker *Tracker
	tokens  TokenIssuer
	logger  *zap.Logger
}

// NewHandler creates an attendance handler.
func NewHandler(tracker *Tracker, tokens TokenIssuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{tracker: tracker, tokens: tokens, logger: logger}
}

// Register handles POST /webinars/:id/register (public).
func (h *Handler) Register(c *gin.Context) {
	webinarID, ok := paramUUID(c, "id", "invalid webinar id")
	if !ok {
		return
	}
	var in RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	a, created, err := h.tracker.Register(c.Request.Context(), webinarID, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	token, err := h.tokens.GenerateAttendee(a.AttendeeID, webinarID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	res := RegisterResponse{Attendance: a, AlreadyRegistered: !created, Token: token}
	if created {
		res.Message = "Successfully Registered"
		response.Created(c, res)
		return
	}
	res.Message = "You are already registered for this webinar"
	response.OK(c, res)
}

// UpdateStage handles PUT /webinars/:id/attendees/:attendeeId/stage (presenter override).
func (h *Handler) UpdateStage(c *gin.Context) {
	webinarID, ok := paramUUID(c, "id", "invalid webinar id")
	if !ok {
		return
	}
	attendeeID, ok := paramUUID(c, "attendeeId", "invalid attendee id")
	if !ok {
		return
	}
	var req StageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if _, err := h.tracker.OwnedWebinar(c.Request.Context(), webinarID, userID); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	a, _, err := h.tracker.AdvanceStage(c.Request.Context(), attendeeID, webinarID, req.AttendedType)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, a)
}

// Aggregate handles GET /webinars/:id/attendance?limit=.
func (h *Handler) Aggregate(c *gin.Context) {
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}
	response.OK(c, agg)
}

// Pipeline handles GET /webinars/:id/pipeline.
func (h *Handler) Pipeline(c *gin.Context) {
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}
	columns := make([]PipelineColumn, 0, len(agg.Stages))
	for _, stage := range PipelineColumns(agg.CtaType) {
		col := PipelineColumn{Stage: stage, Label: FormatStageLabel(stage), Users: []StageUser{}}
		if b, ok := agg.Stages[stage]; ok {
			col.Count = b.Count
			col.Users = b.Users
		}
		columns = append(columns, col)
	}
	response.OK(c, gin.H{"columns": columns, "cta_type": agg.CtaType, "webinar_tags": agg.Tags})
}

func (h *Handler) aggregate(c *gin.Context) (*Aggregate, bool) {
	webinarID, ok := paramUUID(c, "id", "invalid webinar id")
	if !ok {
		return nil, false
	}
	limit := DefaultUserLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			response.BadRequest(c, "limit must be between 1 and 500")
			return nil, false
		}
		limit = n
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if _, err := h.tracker.OwnedWebinar(c.Request.Context(), webinarID, userID); err != nil {
		response.Error(c, h.logger, err)
		return nil, false
	}
	agg, err := h.tracker.AggregateByStage(c.Request.Context(), webinarID, limit)
	if err != nil {
		response.Error(c, h.logger, err)
		return nil, false
	}
	return agg, true
}

// Leads handles GET /leads.
func (h *Handler) Leads(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	leads, err := h.tracker.Leads(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, leads)
}

// GetAttendee handles GET /webinars/:id/attendees/:attendeeId. The caller is either
// that attendee or the presenter.
func (h *Handler) GetAttendee(c *gin.Context) {
	webinarID, ok := paramUUID(c, "id", "invalid webinar id")
	if !ok {
		return
	}
	attendeeID, ok := paramUUID(c, "attendeeId", "invalid attendee id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if self, ok := c.Get(middleware.ContextAttendeeID); !ok || self.(uuid.UUID) != attendeeID {
		userID, _ := c.Get(middleware.ContextUserID)
		actor, _ := userID.(uuid.UUID)
		if _, err := h.tracker.OwnedWebinar(ctx, webinarID, actor); err != nil {
			response.Error(c, h.logger, err)
			return
		}
	}

	attendee, err := h.tracker.Attendee(ctx, attendeeID, webinarID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, attendee)
}

func paramUUID(c *gin.Context, name, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, msg)
		return uuid.Nil, false
	}
	return id, true
}
