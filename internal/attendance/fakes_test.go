package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/spotlight/internal/models"
)

type pair struct{ attendee, webinar uuid.UUID }

type fakeStore struct {
	mu          sync.Mutex
	attendees   map[uuid.UUID]*models.Attendee
	byEmail     map[string]uuid.UUID
	attendances map[pair]*models.Attendance
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		attendees:   map[uuid.UUID]*models.Attendee{},
		byEmail:     map[string]uuid.UUID{},
		attendances: map[pair]*models.Attendance{},
	}
}

func (s *fakeStore) UpsertAttendee(_ context.Context, email, name string) (*models.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byEmail[email]; ok {
		cp := *s.attendees[id]
		return &cp, nil
	}
	a := &models.Attendee{ID: uuid.New(), Email: email, Name: name, CallStatus: models.CallStatusPending}
	s.attendees[a.ID] = a
	s.byEmail[email] = a.ID
	cp := *a
	return &cp, nil
}

func (s *fakeStore) GetAttendee(_ context.Context, id uuid.UUID) (*models.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendees[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) CreateAttendance(_ context.Context, attendeeID, webinarID uuid.UUID, at time.Time) (*models.Attendance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{attendeeID, webinarID}
	if a, ok := s.attendances[k]; ok {
		cp := *a
		return &cp, false, nil
	}
	a := &models.Attendance{ID: uuid.New(), AttendeeID: attendeeID, WebinarID: webinarID,
		AttendedType: models.AttendedTypeRegistered, JoinedAt: at, CreatedAt: at, UpdatedAt: at}
	s.attendances[k] = a
	cp := *a
	return &cp, true, nil
}

func (s *fakeStore) GetAttendance(_ context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendances[pair{attendeeID, webinarID}]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) UpsertStage(_ context.Context, attendeeID, webinarID uuid.UUID, stage models.AttendedType, at time.Time) (*models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{attendeeID, webinarID}
	a, ok := s.attendances[k]
	if !ok {
		a = &models.Attendance{ID: uuid.New(), AttendeeID: attendeeID, WebinarID: webinarID, JoinedAt: at, CreatedAt: at}
		s.attendances[k] = a
	}
	a.AttendedType = stage
	a.UpdatedAt = at
	cp := *a
	return &cp, nil
}

func (s *fakeStore) PromoteStage(_ context.Context, attendeeID, webinarID uuid.UUID, from []models.AttendedType, stage models.AttendedType, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendances[pair{attendeeID, webinarID}]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if a.AttendedType == f {
			a.AttendedType = stage
			a.UpdatedAt = at
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CountByStage(_ context.Context, webinarID uuid.UUID) (map[models.AttendedType]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[models.AttendedType]int{}
	for k, a := range s.attendances {
		if k.webinar == webinarID {
			out[a.AttendedType]++
		}
	}
	return out, nil
}

func (s *fakeStore) UsersByStage(_ context.Context, webinarID uuid.UUID, stages []models.AttendedType, limit int) ([]StageUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StageUser
	for k, a := range s.attendances {
		if k.webinar != webinarID {
			continue
		}
		for _, st := range stages {
			if a.AttendedType == st {
				p := s.attendees[k.attendee]
				out = append(out, StageUser{ID: p.ID, Name: p.Name, Email: p.Email, AttendedAt: a.JoinedAt, CallStatus: p.CallStatus})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttendedAt.After(out[j].AttendedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) SetCallStatus(_ context.Context, attendeeID uuid.UUID, status models.CallStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendees[attendeeID]
	if !ok {
		return false, nil
	}
	a.CallStatus = status
	return true, nil
}

func (s *fakeStore) LeadsByPresenter(context.Context, uuid.UUID) ([]Lead, error) {
	return []Lead{}, nil
}

func (s *fakeStore) stage(attendeeID, webinarID uuid.UUID) models.AttendedType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attendances[pair{attendeeID, webinarID}].AttendedType
}

type fakeWebinars map[uuid.UUID]*models.Webinar

func (f fakeWebinars) GetByID(_ context.Context, id uuid.UUID) (*models.Webinar, error) {
	w, ok := f[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func newWebinar(cta models.CtaType, status models.WebinarStatus) *models.Webinar {
	return &models.Webinar{ID: uuid.New(), PresenterID: uuid.New(), Title: "Demo", CtaType: cta, Status: status, Tags: []string{"saas"}}
}
