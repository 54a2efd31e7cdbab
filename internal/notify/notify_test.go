package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEscapesInput(t *testing.T) {
	msg, err := WebinarStarted{Name: "<b>Ada</b>", Title: "Launch", JoinURL: JoinURL("https://app.example", "w1", "tok")}.Render("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, SubjectWebinarStarted, msg.Subject)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Contains(t, msg.HTML, "&lt;b&gt;Ada&lt;/b&gt;")
	assert.Contains(t, msg.HTML, "https://app.example/live-webinar/w1?token=tok")
	assert.Contains(t, msg.Text, "Launch is live now")
}

func TestResendMailerSend(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	t.Cleanup(srv.Close)

	m, err := NewResendMailer("re_test", "Spotlight <noreply@example.com>", srv.URL+"/", srv.Client(), nil)
	require.NoError(t, err)

	id, err := m.Send(context.Background(), Message{To: "ada@example.com", Subject: "Hi", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, "email_1", id)
	assert.Equal(t, "Spotlight <noreply@example.com>", got["from"])
	assert.Equal(t, []interface{}{"ada@example.com"}, got["to"])
}

func TestResendMailerSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"bad to"}`))
	}))
	t.Cleanup(srv.Close)

	m, err := NewResendMailer("re_test", "noreply@example.com", srv.URL+"/", srv.Client(), nil)
	require.NoError(t, err)
	_, err = m.Send(context.Background(), Message{To: "x", Subject: "Hi"})
	assert.Error(t, err)
}
