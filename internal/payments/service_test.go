package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
)

const whsec = "whsec_test"

type fakeSessions struct {
	params []*stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) New(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

type fakeWebinars map[uuid.UUID]*models.Webinar

func (f fakeWebinars) GetByID(_ context.Context, id uuid.UUID) (*models.Webinar, error) {
	return f[id], nil
}

type fakePresenters struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*models.User
	byCustomer map[string]bool
	byUser     map[uuid.UUID]bool
}

func (f *fakePresenters) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakePresenters) SetSubscription(_ context.Context, customerID string, active bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byCustomer[customerID] = active
	return true, nil
}

func (f *fakePresenters) SetSubscriptionForUser(_ context.Context, userID uuid.UUID, active bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[userID] = active
	return true, nil
}

type key struct{ attendee, webinar uuid.UUID }

type fakeFunnel struct {
	stages     map[key]models.AttendedType
	advanceErr error
}

func (f *fakeFunnel) Attendance(_ context.Context, a, w uuid.UUID) (*models.Attendance, error) {
	stage, ok := f.stages[key{a, w}]
	if !ok {
		return nil, nil
	}
	return &models.Attendance{AttendeeID: a, WebinarID: w, AttendedType: stage}, nil
}

func (f *fakeFunnel) AdvanceStage(_ context.Context, a, w uuid.UUID, stage models.AttendedType) (*models.Attendance, bool, error) {
	if f.advanceErr != nil {
		return nil, false, f.advanceErr
	}
	f.stages[key{a, w}] = stage
	return &models.Attendance{AttendeeID: a, WebinarID: w, AttendedType: stage}, true, nil
}

type fakeLedger struct {
	payments map[string]*models.Payment
}

func (f *fakeLedger) Record(_ context.Context, p *models.Payment) (bool, error) {
	if _, ok := f.payments[p.ProviderSessionID]; ok {
		return false, nil
	}
	f.payments[p.ProviderSessionID] = p
	return true, nil
}

type fixture struct {
	svc        *Service
	sessions   *fakeSessions
	presenters *fakePresenters
	funnel     *fakeFunnel
	ledger     *fakeLedger
	webinar    *models.Webinar
	attendee   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	presenter := &models.User{ID: uuid.New(), StripeConnectID: stripe.String("acct_123")}
	w := &models.Webinar{
		ID: uuid.New(), PresenterID: presenter.ID, Status: models.WebinarStatusLive,
		CtaType: models.CtaTypeBuyNow, PriceID: stripe.String("price_1"),
	}
	attendee := uuid.New()
	f := &fixture{
		sessions:   &fakeSessions{},
		presenters: &fakePresenters{users: map[uuid.UUID]*models.User{presenter.ID: presenter}, byCustomer: map[string]bool{}, byUser: map[uuid.UUID]bool{}},
		funnel:     &fakeFunnel{stages: map[key]models.AttendedType{{attendee, w.ID}: models.AttendedTypeAttended}},
		ledger:     &fakeLedger{payments: map[string]*models.Payment{}},
		webinar:    w,
		attendee:   attendee,
	}
	f.svc = NewService(Config{WebhookSecret: whsec, PublicURL: "https://app.example"},
		f.sessions, fakeWebinars{w.ID: w}, f.presenters, f.funnel, f.ledger, nil)
	return f
}

func TestCreateCheckoutOnConnectedAccount(t *testing.T) {
	f := newFixture(t)

	url, err := f.svc.CreateCheckout(context.Background(), f.webinar.ID, f.attendee, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_test_1", url)

	require.Len(t, f.sessions.params, 1)
	p := f.sessions.params[0]
	assert.Equal(t, "acct_123", *p.StripeAccount)
	assert.Equal(t, "price_1", *p.LineItems[0].Price)
	assert.Equal(t, f.attendee.String(), p.Metadata[MetaAttendeeID])
	assert.Equal(t, f.webinar.ID.String(), p.Metadata[MetaWebinarID])
	assert.Equal(t, models.AttendedTypeAddedToCart, f.funnel.stages[key{f.attendee, f.webinar.ID}])
}

func TestCreateCheckoutKeepsConvertedStage(t *testing.T) {
	f := newFixture(t)
	f.funnel.stages[key{f.attendee, f.webinar.ID}] = models.AttendedTypeConverted

	_, err := f.svc.CreateCheckout(context.Background(), f.webinar.ID, f.attendee, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, models.AttendedTypeConverted, f.funnel.stages[key{f.attendee, f.webinar.ID}])
}

func TestCreateCheckoutPreconditions(t *testing.T) {
	t.Run("unregistered attendee", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateCheckout(context.Background(), f.webinar.ID, uuid.New(), uuid.Nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
	t.Run("no price", func(t *testing.T) {
		f := newFixture(t)
		f.webinar.PriceID = nil
		_, err := f.svc.CreateCheckout(context.Background(), f.webinar.ID, f.attendee, uuid.Nil)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})
	t.Run("presenter not connected", func(t *testing.T) {
		f := newFixture(t)
		f.presenters.users[f.webinar.PresenterID].StripeConnectID = nil
		_, err := f.svc.CreateCheckout(context.Background(), f.webinar.ID, f.attendee, uuid.Nil)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})
	t.Run("provider failure leaves stage", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.err = errors.New("card network down")
		_, err := f.svc.CreateCheckout(context.Background(), f.webinar.ID, f.attendee, uuid.Nil)
		assert.ErrorIs(t, err, apperrors.ErrProvisioningFailed)
		assert.Equal(t, models.AttendedTypeAttended, f.funnel.stages[key{f.attendee, f.webinar.ID}])
	})
}

func signedEvent(t *testing.T, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_" + uuid.NewString(),
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: whsec, Timestamp: time.Now()})
	return signed.Payload, signed.Header
}

func TestWebhookCheckoutCompletedConvertsOnce(t *testing.T) {
	f := newFixture(t)
	payload, header := signedEvent(t, "checkout.session.completed", map[string]interface{}{
		"id": "cs_live_9", "object": "checkout.session", "amount_total": 4900, "currency": "usd",
		"metadata": map[string]string{MetaAttendeeID: f.attendee.String(), MetaWebinarID: f.webinar.ID.String()},
	})

	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, header))
	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, header))

	assert.Equal(t, models.AttendedTypeConverted, f.funnel.stages[key{f.attendee, f.webinar.ID}])
	require.Len(t, f.ledger.payments, 1)
	p := f.ledger.payments["cs_live_9"]
	assert.Equal(t, int64(4900), p.AmountCents)
	assert.Equal(t, "usd", p.Currency)
}

func TestCreateCheckoutRequiresOwningPresenter(t *testing.T) {
	f := newFixture(t)
	f.funnel.stages[key{f.attendee, f.webinar.ID}] = models.AttendedTypeFollowUp

	_, err := f.svc.CreateCheckout(context.Background(), f.webinar.ID, f.attendee, uuid.New())
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
	assert.Empty(t, f.sessions.params)
	assert.Equal(t, models.AttendedTypeFollowUp, f.funnel.stages[key{f.attendee, f.webinar.ID}])

	url, err := f.svc.CreateCheckout(context.Background(), f.webinar.ID, f.attendee, f.webinar.PresenterID)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, models.AttendedTypeAddedToCart, f.funnel.stages[key{f.attendee, f.webinar.ID}])
}

func TestWebhookAcknowledgesUnknownAttendance(t *testing.T) {
	f := newFixture(t)
	f.funnel.advanceErr = apperrors.Wrap(apperrors.KindNotFound, apperrors.CodeNotFound, "attendee or webinar not found", errors.New("fk"))
	payload, header := signedEvent(t, "checkout.session.completed", map[string]interface{}{
		"id": "cs_gone", "object": "checkout.session",
		"metadata": map[string]string{MetaAttendeeID: uuid.NewString(), MetaWebinarID: uuid.NewString()},
	})

	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, header))
	assert.Empty(t, f.ledger.payments)

	f.funnel.advanceErr = errors.New("connection reset")
	assert.Error(t, f.svc.HandleWebhook(context.Background(), payload, header))
}

func TestWebhookSkipsConnectedAccountEvents(t *testing.T) {
	f := newFixture(t)
	payload, header := signedEvent(t, "checkout.session.completed", map[string]interface{}{
		"id": "cs_1", "object": "checkout.session",
		"metadata": map[string]string{"connectAccountPayments": "true", MetaAttendeeID: f.attendee.String(), MetaWebinarID: f.webinar.ID.String()},
	})
	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, header))
	assert.Equal(t, models.AttendedTypeAttended, f.funnel.stages[key{f.attendee, f.webinar.ID}])
	assert.Empty(t, f.ledger.payments)
}

func TestWebhookSubscriptionFlag(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	payload, header := signedEvent(t, "customer.subscription.updated", map[string]interface{}{
		"id": "sub_1", "object": "subscription", "status": "active", "customer": "cus_1",
		"metadata": map[string]string{MetaUserID: userID.String()},
	})
	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, header))
	assert.True(t, f.presenters.byUser[userID])

	payload, header = signedEvent(t, "customer.subscription.deleted", map[string]interface{}{
		"id": "sub_2", "object": "subscription", "status": "canceled", "customer": "cus_2",
	})
	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, header))
	active, seen := f.presenters.byCustomer["cus_2"]
	assert.True(t, seen)
	assert.False(t, active)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	payload, _ := signedEvent(t, "checkout.session.completed", map[string]interface{}{"id": "cs_1"})

	err := f.svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Empty(t, f.ledger.payments)
}

func TestCheckoutHandlerUsesTokenAttendee(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	h := NewHandler(f.svc, nil)

	newRouter := func(attendee uuid.UUID) *gin.Engine {
		r := gin.New()
		r.POST("/webinars/:id/checkout", func(c *gin.Context) { c.Set(middleware.ContextAttendeeID, attendee) }, h.Checkout)
		r.POST("/webhooks/stripe", h.Webhook)
		return r
	}

	w := httptest.NewRecorder()
	newRouter(f.attendee).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webinars/"+f.webinar.ID.String()+"/checkout", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cs_test_1")

	w = httptest.NewRecorder()
	body := strings.NewReader(`{"attendee_id":"` + uuid.NewString() + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/webinars/"+f.webinar.ID.String()+"/checkout", body)
	req.Header.Set("Content-Type", "application/json")
	newRouter(f.attendee).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	asPresenter := func(userID uuid.UUID) *gin.Engine {
		r := gin.New()
		r.POST("/webinars/:id/checkout", func(c *gin.Context) { c.Set(middleware.ContextUserID, userID) }, h.Checkout)
		return r
	}
	onBehalf := `{"attendee_id":"` + f.attendee.String() + `"}`

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webinars/"+f.webinar.ID.String()+"/checkout", strings.NewReader(onBehalf))
	req.Header.Set("Content-Type", "application/json")
	asPresenter(uuid.New()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webinars/"+f.webinar.ID.String()+"/checkout", strings.NewReader(onBehalf))
	req.Header.Set("Content-Type", "application/json")
	asPresenter(f.webinar.PresenterID).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=00")
	newRouter(f.attendee).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
