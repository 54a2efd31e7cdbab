package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/internal/notify"
	"github.com/aura-webinar/spotlight/pkg/queue"
)

// Recipients lists the attendees of a webinar.
type Recipients interface {
	AttendeeEmails(ctx context.Context, webinarID uuid.UUID) ([]models.Attendee, error)
}

// EmailLog records delivery attempts.
type EmailLog interface {
	Create(ctx context.Context, l *models.EmailLog) error
	SentTo(ctx context.Context, webinarID uuid.UUID, emailType string) (map[uuid.UUID]bool, error)
}

// AttendeeTokens issues the token embedded in join links.
type AttendeeTokens interface {
	GenerateAttendee(attendeeID, webinarID uuid.UUID) (string, error)
}

// Notifier sends the "Webinar Has Started" email to every attendee of a webinar.
type Notifier struct {
	recipients Recipients
	logs       EmailLog
	tokens     AttendeeTokens
	mailer     notify.Mailer
	publicURL  string
	now        func() time.Time
	logger     *zap.Logger
}

// NewNotifier creates the webinar_started processor.
func NewNotifier(recipients Recipients, logs EmailLog, tokens AttendeeTokens, mailer notify.Mailer, publicURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		recipients: recipients,
		logs:       logs,
		tokens:     tokens,
		mailer:     mailer,
		publicURL:  publicURL,
		now:        time.Now,
		logger:     logger,
	}
}

// Process fans the email out. Attendees that already got it are skipped, so a retried
// job only resends to the ones that failed.
func (n *Notifier) Process(ctx context.Context, job *queue.Job) error {
	var p queue.WebinarStartedPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	attendees, err := n.recipients.AttendeeEmails(ctx, p.WebinarID)
	if err != nil {
		return err
	}
	sent, err := n.logs.SentTo(ctx, p.WebinarID, models.EmailTypeWebinarStarted)
	if err != nil {
		return err
	}

	var errs []error
	delivered := 0
	for _, a := range attendees {
		if sent[a.ID] {
			continue
		}
		if err := n.send(ctx, p, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.ID, err))
			continue
		}
		delivered++
	}
	n.logger.Info("webinar started emails sent",
		zap.String("webinar_id", p.WebinarID.String()),
		zap.Int("attendees", len(attendees)),
		zap.Int("delivered", delivered),
		zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func (n *Notifier) send(ctx context.Context, p queue.WebinarStartedPayload, a models.Attendee) error {
	token, err := n.tokens.GenerateAttendee(a.ID, p.WebinarID)
	if err != nil {
		return fmt.Errorf("attendee token: %w", err)
	}
	msg, err := notify.WebinarStarted{
		Name:    a.Name,
		Title:   p.Title,
		JoinURL: notify.JoinURL(n.publicURL, p.WebinarID.String(), token),
	}.Render(a.Email)
	if err != nil {
		return err
	}

	webinarID, attendeeID := p.WebinarID, a.ID
	entry := &models.EmailLog{
		WebinarID:      &webinarID,
		AttendeeID:     &attendeeID,
		EmailType:      models.EmailTypeWebinarStarted,
		RecipientEmail: a.Email,
		Subject:        msg.Subject,
	}
	providerID, sendErr := n.mailer.Send(ctx, msg)
	if sendErr != nil {
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		at := n.now()
		entry.Status = models.EmailLogStatusSent
		entry.ProviderID = providerID
		entry.SentAt = &at
	}
	if err := n.logs.Create(ctx, entry); err != nil {
		n.logger.Error("write email log failed", zap.Error(err), zap.String("attendee_id", a.ID.String()))
	}
	return sendErr
}
