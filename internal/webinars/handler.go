package webinars

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
	"github.com/aura-webinar/spotlight/pkg/response"
)

// CTAPublisher pushes the call-to-action dialog to everyone in the webinar chat.
type CTAPublisher interface {
	PublishOpenCTA(ctx context.Context, w *models.Webinar) error
}

// Handler handles webinar HTTP endpoints.
type Handler struct {
	repo      *Repository
	service   *Service
	lifecycle *Lifecycle
	cta       CTAPublisher
	logger    *zap.Logger
}

// NewHandler creates a webinar handler.
func NewHandler(repo *Repository, service *Service, lifecycle *Lifecycle, cta CTAPublisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, service: service, lifecycle: lifecycle, cta: cta, logger: logger}
}

// Create handles POST /webinars.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	w, err := h.service.Create(c.Request.Context(), userID, in)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, w)
}

// List handles GET /webinars?filter=upcoming|ended|all.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	filter := c.DefaultQuery("filter", FilterAll)
	switch filter {
	case FilterAll, FilterUpcoming, FilterEnded:
	default:
		response.BadRequest(c, "filter must be one of all, upcoming, ended")
		return
	}
	list, err := h.repo.ListByPresenter(c.Request.Context(), userID, filter)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// ListLive handles GET /webinars/live, the presenter's currently running streams.
func (h *Handler) ListLive(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListLiveByPresenter(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /webinars/:id.
func (h *Handler) GetByID(c *gin.Context) {
	w, ok := h.ownedWebinar(c)
	if !ok {
		return
	}
	response.OK(c, w)
}

// Start handles POST /webinars/:id/start.
func (h *Handler) Start(c *gin.Context) {
	h.transition(c, models.WebinarStatusLive)
}

// End handles POST /webinars/:id/end.
func (h *Handler) End(c *gin.Context) {
	h.transition(c, models.WebinarStatusEnded)
}

// Cancel handles POST /webinars/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, models.WebinarStatusCancelled)
}

func (h *Handler) transition(c *gin.Context, target models.WebinarStatus) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	w, err := h.lifecycle.Transition(c.Request.Context(), id, target, userID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, w)
}

// ForceEnd handles POST /webinars/force-end. It ends every live stream of the caller.
func (h *Handler) ForceEnd(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	results, err := h.lifecycle.ForceEndAll(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"results": results, "count": len(results)})
}

// OpenCTA handles POST /webinars/:id/cta.
func (h *Handler) OpenCTA(c *gin.Context) {
	w, ok := h.ownedWebinar(c)
	if !ok {
		return
	}
	if w.Status != models.WebinarStatusLive {
		response.Error(c, h.logger, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidInput, "The call to action can only be opened while the webinar is live"))
		return
	}
	if err := h.cta.PublishOpenCTA(c.Request.Context(), w); err != nil {
		h.logger.Error("publish open_cta_dialog failed", zap.Error(err), zap.String("webinar_id", w.ID.String()))
		response.Internal(c, "failed to open the call to action")
		return
	}
	response.OK(c, gin.H{"webinar_id": w.ID, "cta_type": w.CtaType})
}

func (h *Handler) ownedWebinar(c *gin.Context) (*models.Webinar, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid webinar id")
		return nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	w, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return nil, false
	}
	if w == nil {
		response.NotFound(c, "webinar not found")
		return nil, false
	}
	if !w.IsPresenter(userID) {
		response.Error(c, h.logger, apperrors.Unauthorized())
		return nil, false
	}
	return w, true
}
