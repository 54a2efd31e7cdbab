package webinars

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
	"github.com/aura-webinar/spotlight/pkg/database"
	"github.com/aura-webinar/spotlight/pkg/metrics"
	"github.com/aura-webinar/spotlight/pkg/queue"
	"github.com/aura-webinar/spotlight/pkg/redis"
	"github.com/aura-webinar/spotlight/pkg/telemetry"
)

// Store is the persistence the lifecycle needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
	ListLiveByPresenter(ctx context.Context, presenterID uuid.UUID) ([]models.Webinar, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from []models.WebinarStatus, to models.WebinarStatus, at time.Time) (bool, error)
}

// Provisioner starts and stops the hosted live stream for a webinar.
type Provisioner interface {
	ProvisionAndGoLive(ctx context.Context, webinarID, presenterID uuid.UUID) (callID string, err error)
	Stop(ctx context.Context, webinarID uuid.UUID) error
}

// Leaser serialises go-live attempts per presenter.
type Leaser interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (redis.UnlockFunc, error)
}

// StreamLog records each go-live in stream_sessions.
type StreamLog interface {
	Start(ctx context.Context, webinarID uuid.UUID, callID string, at time.Time) error
	End(ctx context.Context, webinarID uuid.UUID, at time.Time) error
}

// Events publishes chat channel events.
type Events interface {
	PublishStartLive(ctx context.Context, webinarID uuid.UUID) error
}

// Outbox accepts notification jobs for the worker.
type Outbox interface {
	EnqueueWebinarStarted(ctx context.Context, payload queue.WebinarStartedPayload) error
}

// Deps wires a Lifecycle. Leaser, Streams, Events and Outbox are optional.
type Deps struct {
	Store            Store
	Provisioner      Provisioner
	Leaser           Leaser
	Streams          StreamLog
	Events           Events
	Outbox           Outbox
	Metrics          *metrics.Metrics
	ProvisionTimeout time.Duration
	LeaseTTL         time.Duration
	Now              func() time.Time
}

// Lifecycle applies webinar status transitions and their side effects.
type Lifecycle struct {
	Deps
	logger *zap.Logger
}

// NewLifecycle creates the status machine service.
func NewLifecycle(deps Deps, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	if deps.ProvisionTimeout <= 0 {
		deps.ProvisionTimeout = 20 * time.Second
	}
	if deps.LeaseTTL <= 0 {
		deps.LeaseTTL = deps.ProvisionTimeout + 10*time.Second
	}
	return &Lifecycle{Deps: deps, logger: logger}
}

// Transition moves webinar id to target on behalf of actor.
func (l *Lifecycle) Transition(ctx context.Context, id uuid.UUID, target models.WebinarStatus, actor uuid.UUID) (*models.Webinar, error) {
	w, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if target == models.WebinarStatusWaitingRoom {
		// time-driven, no actor check
		promoted, err := l.PromoteIfDue(ctx, w)
		if err != nil {
			return nil, err
		}
		switch promoted.Status {
		case models.WebinarStatusWaitingRoom:
			return promoted, nil
		case models.WebinarStatusScheduled:
			return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidTransition, "scheduled start time has not elapsed yet")
		default:
			return nil, invalidTransition(promoted.Status, models.WebinarStatusWaitingRoom)
		}
	}
	if !w.IsPresenter(actor) {
		return nil, apperrors.Unauthorized()
	}
	switch target {
	case models.WebinarStatusLive:
		return l.Start(ctx, w)
	case models.WebinarStatusEnded:
		return l.End(ctx, w)
	case models.WebinarStatusCancelled:
		return l.Cancel(ctx, w)
	}
	_, err = CheckTransition(w.Status, target)
	if err == nil {
		err = invalidTransition(w.Status, target)
	}
	return nil, err
}

// Start takes w live. Callers must have checked the actor.
func (l *Lifecycle) Start(ctx context.Context, w *models.Webinar) (_ *models.Webinar, err error) {
	noop, err := CheckTransition(w.Status, models.WebinarStatusLive)
	if err != nil {
		return nil, err
	}
	if noop {
		return w, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "webinars.Start")
	span.SetAttributes(attribute.String("webinar.id", w.ID.String()), attribute.String("presenter.id", w.PresenterID.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	defer func() { l.observe(models.WebinarStatusLive, err) }()

	if l.Leaser != nil {
		lockCtx, cancel := context.WithTimeout(ctx, l.LeaseTTL)
		unlock, lockErr := l.Leaser.Lock(lockCtx, "golive:"+w.PresenterID.String(), l.LeaseTTL)
		cancel()
		switch {
		case errors.Is(lockErr, context.DeadlineExceeded):
			return nil, apperrors.Conflict(apperrors.CodeLiveSessionExists,
				"Another stream is being started for this account. Please try again in a moment.", nil)
		case lockErr != nil:
			// the partial unique index still holds one LIVE webinar per presenter
			l.logger.Warn("go-live lease unavailable, continuing without it",
				zap.Error(lockErr), zap.String("presenter_id", w.PresenterID.String()))
		default:
			defer func() {
				if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
					l.logger.Warn("release go-live lease", zap.Error(uerr), zap.String("presenter_id", w.PresenterID.String()))
				}
			}()

			// re-read under the lease; a concurrent start may have committed
			if w, err = l.load(ctx, w.ID); err != nil {
				return nil, err
			}
			if noop, err = CheckTransition(w.Status, models.WebinarStatusLive); err != nil {
				return nil, err
			}
			if noop {
				return w, nil
			}
		}
	}

	if err := l.checkNoOtherLive(ctx, w); err != nil {
		return nil, err
	}

	callID, err := l.provision(ctx, w)
	if err != nil {
		return nil, err
	}

	now := l.Now()
	ok, err := l.Store.UpdateStatus(ctx, w.ID,
		[]models.WebinarStatus{models.WebinarStatusScheduled, models.WebinarStatusWaitingRoom},
		models.WebinarStatusLive, now)
	if err != nil || !ok {
		return l.afterFailedGoLive(ctx, w, err)
	}
	w.Status = models.WebinarStatusLive
	w.UpdatedAt = now

	l.afterGoLive(ctx, w, callID, now)
	return w, nil
}

func (l *Lifecycle) provision(ctx context.Context, w *models.Webinar) (string, error) {
	provCtx, cancel := context.WithTimeout(ctx, l.ProvisionTimeout)
	defer cancel()

	callID, err := l.Provisioner.ProvisionAndGoLive(provCtx, w.ID, w.PresenterID)
	if err == nil {
		return callID, nil
	}
	l.logger.Error("stream provisioning failed", zap.Error(err), zap.String("webinar_id", w.ID.String()))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(provCtx.Err(), context.DeadlineExceeded) {
		// best effort: a call may exist remotely
		l.stopQuietly(ctx, w.ID)
		return "", apperrors.Provisioning(apperrors.CodeProvisioningTimeout,
			"Starting the stream took too long. Please try again.", err)
	}
	return "", apperrors.Provisioning(apperrors.CodeProvisioningFailed,
		"Failed to start the stream. Please try again.", err)
}

// afterFailedGoLive rolls back the remote stream when the status write did not land.
func (l *Lifecycle) afterFailedGoLive(ctx context.Context, w *models.Webinar, writeErr error) (*models.Webinar, error) {
	current, loadErr := l.load(ctx, w.ID)
	if loadErr == nil && current.Status == models.WebinarStatusLive {
		return current, nil
	}
	l.stopQuietly(ctx, w.ID)

	if database.IsUniqueViolation(writeErr, OneLiveIndex) {
		if err := l.checkNoOtherLive(ctx, w); err != nil {
			return nil, err
		}
		return nil, apperrors.Conflict(apperrors.CodeLiveSessionExists,
			"You already have a live stream running. Please end it before starting a new one.", nil)
	}
	if writeErr != nil {
		return nil, writeErr
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return nil, invalidTransition(current.Status, models.WebinarStatusLive)
}

func (l *Lifecycle) afterGoLive(ctx context.Context, w *models.Webinar, callID string, at time.Time) {
	log := l.logger.With(zap.String("webinar_id", w.ID.String()))
	if l.Streams != nil {
		if err := l.Streams.Start(ctx, w.ID, callID, at); err != nil {
			log.Warn("record stream session failed", zap.Error(err))
		}
	}
	if l.Events != nil {
		if err := l.Events.PublishStartLive(ctx, w.ID); err != nil {
			log.Warn("publish start_live failed", zap.Error(err))
		}
	}
	if l.Outbox != nil {
		payload := queue.WebinarStartedPayload{WebinarID: w.ID, PresenterID: w.PresenterID, Title: w.Title, StartedAt: at}
		if err := l.Outbox.EnqueueWebinarStarted(ctx, payload); err != nil {
			log.Error("enqueue webinar started notification failed", zap.Error(err))
		}
	}
	log.Info("webinar is live", zap.String("call_id", callID))
}

func (l *Lifecycle) checkNoOtherLive(ctx context.Context, w *models.Webinar) error {
	live, err := l.Store.ListLiveByPresenter(ctx, w.PresenterID)
	if err != nil {
		return err
	}
	var titles, ids []string
	for _, other := range live {
		if other.ID == w.ID {
			continue
		}
		titles = append(titles, other.Title)
		ids = append(ids, other.ID.String())
	}
	if len(titles) == 0 {
		return nil
	}
	msg := fmt.Sprintf("You already have %d live stream(s) running: %s. Please end your current stream(s) before starting a new one.",
		len(titles), apperrors.JoinTitles(titles))
	return apperrors.Conflict(apperrors.CodeLiveSessionExists, msg, map[string]string{
		"webinar_ids": strings.Join(ids, ","),
	})
}

// End stops the stream and marks w ENDED. Callers must have checked the actor.
func (l *Lifecycle) End(ctx context.Context, w *models.Webinar) (_ *models.Webinar, err error) {
	noop, err := CheckTransition(w.Status, models.WebinarStatusEnded)
	if err != nil {
		return nil, err
	}
	if noop {
		return w, nil
	}
	defer func() { l.observe(models.WebinarStatusEnded, err) }()

	stopCtx, cancel := context.WithTimeout(ctx, l.ProvisionTimeout)
	defer cancel()
	if err := l.Provisioner.Stop(stopCtx, w.ID); err != nil {
		l.logger.Error("stop stream failed", zap.Error(err), zap.String("webinar_id", w.ID.String()))
		return nil, apperrors.Provisioning(apperrors.CodeStreamStopFailed, "Failed to end the stream. Please try again.", err)
	}
	return l.markEnded(ctx, w)
}

func (l *Lifecycle) markEnded(ctx context.Context, w *models.Webinar) (*models.Webinar, error) {
	now := l.Now()
	ok, err := l.Store.UpdateStatus(ctx, w.ID, []models.WebinarStatus{models.WebinarStatusLive}, models.WebinarStatusEnded, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := l.load(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.WebinarStatusEnded {
			return current, nil
		}
		return nil, invalidTransition(current.Status, models.WebinarStatusEnded)
	}
	w.Status = models.WebinarStatusEnded
	w.EndedAt = &now
	w.UpdatedAt = now
	if l.Streams != nil {
		if err := l.Streams.End(ctx, w.ID, now); err != nil {
			l.logger.Warn("close stream session failed", zap.Error(err), zap.String("webinar_id", w.ID.String()))
		}
	}
	return w, nil
}

// Cancel marks w CANCELLED, stopping its stream first if it is live.
func (l *Lifecycle) Cancel(ctx context.Context, w *models.Webinar) (_ *models.Webinar, err error) {
	noop, err := CheckTransition(w.Status, models.WebinarStatusCancelled)
	if err != nil {
		return nil, err
	}
	if noop {
		return w, nil
	}
	defer func() { l.observe(models.WebinarStatusCancelled, err) }()

	if w.Status == models.WebinarStatusLive {
		l.stopQuietly(ctx, w.ID)
	}
	from := []models.WebinarStatus{
		models.WebinarStatusScheduled, models.WebinarStatusWaitingRoom, models.WebinarStatusLive, models.WebinarStatusEnded,
	}
	now := l.Now()
	ok, err := l.Store.UpdateStatus(ctx, w.ID, from, models.WebinarStatusCancelled, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return l.load(ctx, w.ID)
	}
	w.Status = models.WebinarStatusCancelled
	w.UpdatedAt = now
	return w, nil
}

// PromoteIfDue moves a SCHEDULED webinar whose start time has passed into the waiting
// room. The update is conditional on the current status so it never reverts a webinar
// that has already moved on.
func (l *Lifecycle) PromoteIfDue(ctx context.Context, w *models.Webinar) (*models.Webinar, error) {
	now := l.Now()
	if w.Status != models.WebinarStatusScheduled || now.Before(w.StartTime) {
		return w, nil
	}
	ok, err := l.Store.UpdateStatus(ctx, w.ID, []models.WebinarStatus{models.WebinarStatusScheduled}, models.WebinarStatusWaitingRoom, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return l.load(ctx, w.ID)
	}
	l.observe(models.WebinarStatusWaitingRoom, nil)
	promoted := *w
	promoted.Status = models.WebinarStatusWaitingRoom
	promoted.UpdatedAt = now
	return &promoted, nil
}

// ForceEndResult reports the outcome for one webinar in ForceEndAll.
type ForceEndResult struct {
	WebinarID uuid.UUID `json:"webinar_id"`
	Title     string    `json:"title"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// ForceEndAll ends every LIVE webinar of the presenter. A failed remote stop is
// reported but the webinar is still marked ENDED, so the presenter can start again.
func (l *Lifecycle) ForceEndAll(ctx context.Context, presenterID uuid.UUID) ([]ForceEndResult, error) {
	live, err := l.Store.ListLiveByPresenter(ctx, presenterID)
	if err != nil {
		return nil, err
	}
	results := make([]ForceEndResult, 0, len(live))
	for i := range live {
		w := &live[i]
		res := ForceEndResult{WebinarID: w.ID, Title: w.Title}
		stopCtx, cancel := context.WithTimeout(ctx, l.ProvisionTimeout)
		stopErr := l.Provisioner.Stop(stopCtx, w.ID)
		cancel()
		if stopErr != nil {
			l.logger.Warn("force end: stop stream failed", zap.Error(stopErr), zap.String("webinar_id", w.ID.String()))
			res.Error = "stream could not be stopped remotely"
		}
		if _, err := l.markEnded(ctx, w); err != nil {
			res.Error = "failed to mark webinar as ended"
			results = append(results, res)
			continue
		}
		l.observe(models.WebinarStatusEnded, nil)
		res.Success = stopErr == nil
		results = append(results, res)
	}
	l.logger.Info("force ended live webinars", zap.String("presenter_id", presenterID.String()), zap.Int("count", len(results)))
	return results, nil
}

func (l *Lifecycle) stopQuietly(ctx context.Context, id uuid.UUID) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.ProvisionTimeout)
	defer cancel()
	if err := l.Provisioner.Stop(stopCtx, id); err != nil {
		l.logger.Warn("rollback stop stream failed", zap.Error(err), zap.String("webinar_id", id.String()))
	}
}

func (l *Lifecycle) load(ctx context.Context, id uuid.UUID) (*models.Webinar, error) {
	w, err := l.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperrors.NotFound("webinar")
	}
	return w, nil
}

func (l *Lifecycle) observe(to models.WebinarStatus, err error) {
	result := "ok"
	if err != nil {
		result = strings.ToLower(string(apperrors.KindOf(err)))
	}
	l.Metrics.Transitions.WithLabelValues(string(to), result).Inc()
}
