package webinars

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/queue"
)

type fakeStore struct {
	mu        sync.Mutex
	webinars  map[uuid.UUID]*models.Webinar
	updateErr error
	created   []*models.Webinar
}

func newFakeStore(ws ...*models.Webinar) *fakeStore {
	s := &fakeStore{webinars: map[uuid.UUID]*models.Webinar{}}
	for _, w := range ws {
		s.webinars[w.ID] = w
	}
	return s
}

func (s *fakeStore) Create(_ context.Context, w *models.Webinar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = uuid.New()
	cp := *w
	s.webinars[w.ID] = &cp
	s.created = append(s.created, &cp)
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Webinar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.webinars[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (s *fakeStore) ListLiveByPresenter(_ context.Context, presenterID uuid.UUID) ([]models.Webinar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Webinar
	for _, w := range s.webinars {
		if w.PresenterID == presenterID && w.Status == models.WebinarStatusLive {
			out = append(out, *w)
		}
	}
	return out, nil
}

// UpdateStatus mirrors the conditional update and the partial unique index.
func (s *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, from []models.WebinarStatus, to models.WebinarStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return false, s.updateErr
	}
	w, ok := s.webinars[id]
	if !ok {
		return false, nil
	}
	match := false
	for _, f := range from {
		if w.Status == f {
			match = true
		}
	}
	if !match {
		return false, nil
	}
	if to == models.WebinarStatusLive {
		for _, other := range s.webinars {
			if other.ID != id && other.PresenterID == w.PresenterID && other.Status == models.WebinarStatusLive {
				return false, &pgconn.PgError{Code: "23505", ConstraintName: OneLiveIndex}
			}
		}
	}
	w.Status = to
	w.UpdatedAt = at
	if to == models.WebinarStatusEnded {
		w.EndedAt = &at
	}
	return true, nil
}

func (s *fakeStore) status(id uuid.UUID) models.WebinarStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webinars[id].Status
}

type fakeProvisioner struct {
	mu         sync.Mutex
	provisions []uuid.UUID
	stops      []uuid.UUID
	err        error
	stopErr    error
	block      bool
}

func (p *fakeProvisioner) ProvisionAndGoLive(ctx context.Context, webinarID, _ uuid.UUID) (string, error) {
	p.mu.Lock()
	p.provisions = append(p.provisions, webinarID)
	block, err := p.block, p.err
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return "livestream:" + webinarID.String(), nil
}

func (p *fakeProvisioner) Stop(_ context.Context, webinarID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops = append(p.stops, webinarID)
	return p.stopErr
}

func (p *fakeProvisioner) provisionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.provisions)
}

func (p *fakeProvisioner) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stops)
}

type fakeSideEffects struct {
	mu         sync.Mutex
	startLive  []uuid.UUID
	notified   []queue.WebinarStartedPayload
	streams    []string
	ended      []uuid.UUID
	outboxErr  error
	publishErr error
}

func (f *fakeSideEffects) PublishStartLive(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startLive = append(f.startLive, id)
	return f.publishErr
}

func (f *fakeSideEffects) EnqueueWebinarStarted(_ context.Context, p queue.WebinarStartedPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outboxErr != nil {
		return f.outboxErr
	}
	f.notified = append(f.notified, p)
	return nil
}

func (f *fakeSideEffects) Start(_ context.Context, _ uuid.UUID, callID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, callID)
	return nil
}

func (f *fakeSideEffects) End(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, id)
	return nil
}

func (f *fakeSideEffects) notifiedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notified)
}

type fakeAgents struct {
	owned map[uuid.UUID]uuid.UUID
}

func (a fakeAgents) OwnedBy(_ context.Context, agentID, userID uuid.UUID) (bool, error) {
	owner, ok := a.owned[agentID]
	return ok && owner == userID, nil
}

var errBoom = errors.New("boom")

func webinar(presenter uuid.UUID, title string, status models.WebinarStatus, start time.Time) *models.Webinar {
	return &models.Webinar{
		ID:          uuid.New(),
		PresenterID: presenter,
		Title:       title,
		Status:      status,
		StartTime:   start,
		CtaType:     models.CtaTypeBuyNow,
		CtaLabel:    "Buy",
		Tags:        []string{},
	}
}
