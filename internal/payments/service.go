package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
	"github.com/aura-webinar/spotlight/pkg/telemetry"
)

// Checkout metadata keys, shared with the webhook.
const (
	MetaAttendeeID = "attendeeId"
	MetaWebinarID  = "webinarId"
	MetaUserID     = "userId"
)

// Sessions creates hosted checkout sessions. *session.Client from stripe-go satisfies it.
type Sessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Webinars reads webinars.
type Webinars interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// Presenters reads presenter accounts and their subscription flag.
type Presenters interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetSubscription(ctx context.Context, customerID string, active bool) (bool, error)
	SetSubscriptionForUser(ctx context.Context, userID uuid.UUID, active bool) (bool, error)
}

// Funnel reads and moves attendance stages.
type Funnel interface {
	Attendance(ctx context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendance, error)
	AdvanceStage(ctx context.Context, attendeeID, webinarID uuid.UUID, stage models.AttendedType) (*models.Attendance, bool, error)
}

// Ledger records completed payments.
type Ledger interface {
	Record(ctx context.Context, p *models.Payment) (bool, error)
}

// Config holds the URLs and secret the service needs.
type Config struct {
	WebhookSecret string
	PublicURL     string
}

// Service creates checkout links and applies webhook events.
type Service struct {
	cfg        Config
	sessions   Sessions
	webinars   Webinars
	presenters Presenters
	funnel     Funnel
	ledger     Ledger
	logger     *zap.Logger
}

// NewService creates a payments service.
func NewService(cfg Config, sessions Sessions, webinars Webinars, presenters Presenters, funnel Funnel, ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:        cfg,
		sessions:   sessions,
		webinars:   webinars,
		presenters: presenters,
		funnel:     funnel,
		ledger:     ledger,
		logger:     logger,
	}
}

// CreateCheckout opens a one-item checkout for the webinar's price on the presenter's
// connected account and moves the attendee to ADDED_TO_CART. A converted attendee
// keeps its stage. A non-nil presenterID means a presenter acts for the attendee and
// must own the webinar.
func (s *Service) CreateCheckout(ctx context.Context, webinarID, attendeeID, presenterID uuid.UUID) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "payments.CreateCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("webinar.id", webinarID.String()))

	w, err := s.webinars.GetByID(ctx, webinarID)
	if err != nil {
		return "", err
	}
	if w == nil {
		return "", apperrors.NotFound("webinar")
	}
	if presenterID != uuid.Nil && !w.IsPresenter(presenterID) {
		return "", apperrors.Unauthorized()
	}
	if w.Status == models.WebinarStatusCancelled {
		return "", apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidInput, "This webinar has been cancelled")
	}
	if w.PriceID == nil || *w.PriceID == "" {
		return "", apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidInput, "This webinar has no offer to buy")
	}

	a, err := s.funnel.Attendance(ctx, attendeeID, webinarID)
	if err != nil {
		return "", err
	}
	if a == nil {
		return "", apperrors.NotFound("attendee")
	}

	presenter, err := s.presenters.GetByID(ctx, w.PresenterID)
	if err != nil {
		return "", err
	}
	if presenter == nil || presenter.StripeConnectID == nil || *presenter.StripeConnectID == "" {
		return "", apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidInput, "The presenter has not connected a payment account")
	}

	returnURL := s.cfg.PublicURL + "/live-webinar/" + webinarID.String()
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: w.PriceID, Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(returnURL),
		CancelURL:  stripe.String(returnURL),
	}
	params.AddMetadata(MetaAttendeeID, attendeeID.String())
	params.AddMetadata(MetaWebinarID, webinarID.String())
	params.SetStripeAccount(*presenter.StripeConnectID)
	params.Context = ctx

	session, err := s.sessions.New(params)
	if err != nil {
		span.RecordError(err)
		return "", apperrors.Provisioning(apperrors.CodeProvisioningFailed, "Error creating checkout link", err)
	}

	if a.AttendedType != models.AttendedTypeConverted {
		if _, _, err := s.funnel.AdvanceStage(ctx, attendeeID, webinarID, models.AttendedTypeAddedToCart); err != nil {
			return "", err
		}
	}
	s.logger.Info("checkout created",
		zap.String("webinar_id", webinarID.String()),
		zap.String("attendee_id", attendeeID.String()),
		zap.String("session_id", session.ID))
	return session.URL, nil
}

// HandleWebhook verifies payload against signature and applies the event. Irrelevant
// events and events of connected accounts are acknowledged without effect.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.logger.Warn("stripe webhook rejected", zap.Error(err))
		return apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidInput, "invalid webhook signature", err)
	}
	log := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		if connectedAccountEvent(session.Metadata) {
			log.Info("skipping connected account event")
			return nil
		}
		return s.completeCheckout(ctx, &session, log)

	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		if connectedAccountEvent(sub.Metadata) {
			log.Info("skipping connected account event")
			return nil
		}
		return s.updateSubscription(ctx, &sub, log)

	default:
		log.Debug("ignoring stripe event")
		return nil
	}
}

func connectedAccountEvent(metadata map[string]string) bool {
	return metadata["connectAccountPayments"] != "" || metadata["connectAccountSubscriptions"] != ""
}

func (s *Service) completeCheckout(ctx context.Context, session *stripe.CheckoutSession, log *zap.Logger) error {
	attendeeID, err1 := uuid.Parse(session.Metadata[MetaAttendeeID])
	webinarID, err2 := uuid.Parse(session.Metadata[MetaWebinarID])
	if err := errors.Join(err1, err2); err != nil {
		log.Warn("checkout session without webinar metadata", zap.String("session_id", session.ID), zap.Error(err))
		return nil
	}

	if _, _, err := s.funnel.AdvanceStage(ctx, attendeeID, webinarID, models.AttendedTypeConverted); err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			log.Warn("checkout session for unknown attendance", zap.String("session_id", session.ID), zap.Error(err))
			return nil
		}
		return err
	}
	payment := &models.Payment{
		WebinarID:         webinarID,
		AttendeeID:        &attendeeID,
		ProviderSessionID: session.ID,
		AmountCents:       session.AmountTotal,
		Currency:          string(session.Currency),
		Status:            models.PaymentStatusCompleted,
	}
	inserted, err := s.ledger.Record(ctx, payment)
	if err != nil {
		return err
	}
	log.Info("attendee converted",
		zap.String("webinar_id", webinarID.String()),
		zap.String("attendee_id", attendeeID.String()),
		zap.Bool("first_delivery", inserted))
	return nil
}

func (s *Service) updateSubscription(ctx context.Context, sub *stripe.Subscription, log *zap.Logger) error {
	active := sub.Status == stripe.SubscriptionStatusActive
	var (
		matched bool
		err     error
	)
	if userID, parseErr := uuid.Parse(sub.Metadata[MetaUserID]); parseErr == nil {
		matched, err = s.presenters.SetSubscriptionForUser(ctx, userID, active)
	} else if sub.Customer != nil && sub.Customer.ID != "" {
		matched, err = s.presenters.SetSubscription(ctx, sub.Customer.ID, active)
	}
	if err != nil {
		return err
	}
	if !matched {
		log.Warn("subscription event matched no presenter", zap.String("subscription_id", sub.ID))
		return nil
	}
	log.Info("subscription updated", zap.String("subscription_id", sub.ID), zap.Bool("active", active))
	return nil
}
