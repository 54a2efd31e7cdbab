// Package access decides what a viewer sees when opening a webinar page.
package access

import (
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/spotlight/internal/models"
)

// Kind names the page a viewer is shown.
type Kind string

const (
	KindCancelled         Kind = "CANCELLED"
	KindRecordingPlayback Kind = "RECORDING_PLAYBACK"
	KindPresenter         Kind = "PRESENTER"
	KindParticipant       Kind = "PARTICIPANT"
	KindWaitingRoom       Kind = "WAITING_ROOM"
	KindPresenterStart    Kind = "PRESENTER_START"
)

// Waiting room variants.
const (
	VariantScheduled = "scheduled"
	VariantJoin      = "join"
)

const (
	msgCancelled   = "This webinar has been cancelled."
	msgNoRecording = "This webinar has ended. No recording is available."
	msgRegister    = "This webinar is live. Register to join."
)

// Viewer is who is looking at the page. Both IDs are zero for nobody.
type Viewer struct {
	UserID     uuid.UUID
	AttendeeID uuid.UUID
	Attendance *models.Attendance
}

// Registered reports whether the viewer holds an attendance for webinarID.
func (v Viewer) Registered(webinarID uuid.UUID) bool {
	return v.Attendance != nil && v.Attendance.WebinarID == webinarID && v.Attendance.AttendeeID == v.AttendeeID
}

// Recording is the playback source of an ended webinar.
type Recording struct {
	ID  uuid.UUID `json:"id"`
	URL string    `json:"url"`
}

// View is the resolved page.
type View struct {
	Kind            Kind            `json:"view"`
	Variant         string          `json:"variant,omitempty"`
	Webinar         *models.Webinar `json:"webinar"`
	RecordingURL    string          `json:"recording_url,omitempty"`
	Message         string          `json:"message,omitempty"`
	StartsInSeconds int64           `json:"starts_in_seconds,omitempty"`
}

// ResolveView applies the access table to one webinar; the first matching row wins.
func ResolveView(w *models.Webinar, v Viewer, rec *Recording, now time.Time) View {
	view := View{Webinar: w}
	switch {
	case w.Status == models.WebinarStatusCancelled:
		view.Kind = KindCancelled
		view.Message = msgCancelled
	case w.Status == models.WebinarStatusEnded:
		view.Kind = KindRecordingPlayback
		if rec != nil && rec.URL != "" {
			view.RecordingURL = rec.URL
		} else {
			view.Message = msgNoRecording
		}
	case w.Status == models.WebinarStatusLive && w.IsPresenter(v.UserID):
		view.Kind = KindPresenter
	case w.Status == models.WebinarStatusLive && v.Registered(w.ID):
		view.Kind = KindParticipant
	case w.Status == models.WebinarStatusLive:
		view.Kind = KindWaitingRoom
		view.Variant = VariantJoin
		view.Message = msgRegister
	case w.Status == models.WebinarStatusWaitingRoom && w.IsPresenter(v.UserID):
		view.Kind = KindPresenterStart
	default:
		view.Kind = KindWaitingRoom
		view.Variant = VariantScheduled
		if d := w.StartTime.Sub(now); d > 0 {
			view.StartsInSeconds = int64(d.Round(time.Second) / time.Second)
		}
	}
	return view
}
