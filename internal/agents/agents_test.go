package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/spotlight/internal/middleware"
	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
)

type memStore struct {
	agents map[uuid.UUID]*models.AIAgent
}

func (m *memStore) Create(_ context.Context, a *models.AIAgent) error {
	a.ID = uuid.New()
	cp := *a
	m.agents[a.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.AIAgent, error) {
	a, ok := m.agents[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.AIAgent, error) {
	var out []models.AIAgent
	for _, a := range m.agents {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) UpdateScript(_ context.Context, id uuid.UUID, firstMessage, prompt string) error {
	m.agents[id].FirstMessage, m.agents[id].Prompt = firstMessage, prompt
	return nil
}

func newVapiStub(t *testing.T) (*VapiClient, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer vapi-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body assistantBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		seen = append(seen, r.Method+" "+r.URL.Path+" "+body.Model.Model)
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"asst_42"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return NewVapiClient("vapi-key", srv.URL, srv.Client()), &seen
}

func TestCreateAgentRegistersAssistant(t *testing.T) {
	vapi, seen := newVapiStub(t)
	store := &memStore{agents: map[uuid.UUID]*models.AIAgent{}}
	svc := NewService(store, vapi, nil)
	owner := uuid.New()

	a, err := svc.Create(context.Background(), owner, CreateInput{Name: " Sam "})
	require.NoError(t, err)
	assert.Equal(t, "asst_42", a.AssistantID)
	assert.Equal(t, "Sam", a.Name)
	assert.Contains(t, a.FirstMessage, "this is Sam")
	assert.Equal(t, []string{"POST /assistant gpt-4o"}, *seen)

	updated, err := svc.UpdateScript(context.Background(), owner, a.ID, UpdateInput{FirstMessage: "Hello", Prompt: "Be brief"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", updated.FirstMessage)
	assert.Equal(t, "PATCH /assistant/asst_42 gpt-4o", (*seen)[1])

	_, err = svc.UpdateScript(context.Background(), uuid.New(), a.ID, UpdateInput{FirstMessage: "x", Prompt: "y"})
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
}

func TestUpdateAssistantEscapesID(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	vapi := NewVapiClient("vapi-key", srv.URL, srv.Client())

	require.NoError(t, vapi.UpdateAssistant(context.Background(), "asst/../call?x=1", AssistantSpec{Prompt: "p"}))
	assert.Equal(t, "/assistant/asst%2F..%2Fcall%3Fx=1", path)
}

func TestCreateAgentValidatesAndWrapsProviderErrors(t *testing.T) {
	store := &memStore{agents: map[uuid.UUID]*models.AIAgent{}}
	_, err := NewService(store, nil, nil).Create(context.Background(), uuid.New(), CreateInput{})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	bad := NewVapiClient("wrong", "http://127.0.0.1:1", nil)
	_, err = NewService(store, bad, nil).Create(context.Background(), uuid.New(), CreateInput{Name: "Sam"})
	assert.ErrorIs(t, err, apperrors.ErrProvisioningFailed)
	assert.Empty(t, store.agents)
}

type callStatuses map[uuid.UUID]models.CallStatus

func (c callStatuses) ChangeCallStatus(_ context.Context, attendeeID uuid.UUID, status models.CallStatus) error {
	if !status.Valid() {
		return apperrors.Validation("bad status", map[string]string{"status": "unknown"})
	}
	if _, ok := c[attendeeID]; !ok {
		return apperrors.NotFound("attendee")
	}
	c[attendeeID] = status
	return nil
}

func TestCallStatusWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	attendee := uuid.New()
	calls := callStatuses{attendee: models.CallStatusPending}
	h := NewHandler(nil, calls, "s3cret", nil)
	r := gin.New()
	r.POST("/webhooks/voice/call-status", h.CallStatusWebhook)
	r.POST("/webinars/:id/call/status", func(c *gin.Context) { c.Set(middleware.ContextAttendeeID, attendee) }, h.ReportCallStatus)

	post := func(path, secret, body string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Vapi-Secret", secret)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	body := `{"attendee_id":"` + attendee.String() + `","status":"IN_PROGRESS"}`
	assert.Equal(t, http.StatusUnauthorized, post("/webhooks/voice/call-status", "nope", body))
	assert.Equal(t, http.StatusOK, post("/webhooks/voice/call-status", "s3cret", body))
	assert.Equal(t, models.CallStatusInProgress, calls[attendee])

	assert.Equal(t, http.StatusNotFound, post("/webhooks/voice/call-status", "s3cret", `{"attendee_id":"`+uuid.NewString()+`","status":"COMPLETED"}`))
	assert.Equal(t, http.StatusBadRequest, post("/webinars/x/call/status", "", `{"status":"DONE"}`))

	assert.Equal(t, http.StatusOK, post("/webinars/x/call/status", "", `{"status":"COMPLETED"}`))
	assert.Equal(t, models.CallStatusCompleted, calls[attendee])
}

