package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/internal/notify"
	"github.com/aura-webinar/spotlight/pkg/metrics"
	"github.com/aura-webinar/spotlight/pkg/queue"
)

func newQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.NewQueue(client, nil), mr
}

type funcProcessor func(ctx context.Context, job *queue.Job) error

func (f funcProcessor) Process(ctx context.Context, job *queue.Job) error { return f(ctx, job) }

func TestRunOnceRetriesThenDeadLetters(t *testing.T) {
	q, mr := newQueue(t)
	ctx := context.Background()
	m := metrics.Nop()
	r := NewRunner(q, []string{queue.QueueNotifications}, m, nil)
	r.Handle(queue.JobTypeWebinarStarted, funcProcessor(func(context.Context, *queue.Job) error {
		return errors.New("smtp down")
	}))

	require.NoError(t, q.EnqueueWebinarStarted(ctx, queue.WebinarStartedPayload{WebinarID: uuid.New()}))
	for i := 0; i < queue.MaxRetries; i++ {
		job, err := q.Dequeue(ctx, time.Second, queue.QueueNotifications)
		require.NoError(t, err)
		require.NotNil(t, job, "attempt %d", i)
		assert.Error(t, r.RunOnce(ctx, job))
	}

	dlq, err := mr.List(queue.QueueDLQ)
	require.NoError(t, err)
	assert.Len(t, dlq, 1)
	assert.False(t, mr.Exists(queue.QueueNotifications))
	assert.Equal(t, float64(queue.MaxRetries), testutil.ToFloat64(m.OutboxJobs.WithLabelValues(queue.QueueNotifications, "error")))
}

func TestRunDispatchesByType(t *testing.T) {
	q, _ := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan queue.JobType, 2)
	record := funcProcessor(func(_ context.Context, job *queue.Job) error {
		got <- job.Type
		return nil
	})
	r := NewRunner(q, []string{queue.QueueNotifications, queue.QueueRecordings}, nil, nil)
	r.poll = 100 * time.Millisecond
	r.Handle(queue.JobTypeWebinarStarted, record)
	r.Handle(queue.JobTypeRecordingUpload, record)

	require.NoError(t, q.EnqueueRecordingUpload(ctx, queue.RecordingUploadPayload{RecordingID: uuid.New()}))
	require.NoError(t, q.EnqueueWebinarStarted(ctx, queue.WebinarStartedPayload{WebinarID: uuid.New()}))

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	seen := map[queue.JobType]bool{}
	for len(seen) < 2 {
		select {
		case typ := <-got:
			seen[typ] = true
		case <-time.After(3 * time.Second):
			t.Fatalf("jobs not processed, saw %v", seen)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not stop")
	}
}

type staticRecipients []models.Attendee

func (s staticRecipients) AttendeeEmails(context.Context, uuid.UUID) ([]models.Attendee, error) {
	return s, nil
}

type memEmailLog struct {
	mu      sync.Mutex
	entries []models.EmailLog
}

func (m *memEmailLog) Create(_ context.Context, l *models.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *l)
	return nil
}

func (m *memEmailLog) SentTo(_ context.Context, webinarID uuid.UUID, emailType string) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for _, e := range m.entries {
		if *e.WebinarID == webinarID && e.EmailType == emailType && e.Status == models.EmailLogStatusSent {
			out[*e.AttendeeID] = true
		}
	}
	return out, nil
}

type fakeTokens struct{}

func (fakeTokens) GenerateAttendee(attendeeID, _ uuid.UUID) (string, error) {
	return "tok-" + attendeeID.String()[:8], nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	fail map[string]bool
}

func (f *fakeMailer) Send(_ context.Context, msg notify.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[msg.To] {
		return "", errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return "re_" + msg.To, nil
}

func startedJob(t *testing.T, webinarID uuid.UUID) *queue.Job {
	t.Helper()
	body, err := json.Marshal(queue.WebinarStartedPayload{WebinarID: webinarID, Title: "Growth Masterclass"})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeWebinarStarted, Queue: queue.QueueNotifications, Payload: body}
}

func TestNotifierSendsToEveryAttendee(t *testing.T) {
	ada := models.Attendee{ID: uuid.New(), Email: "ada@example.com", Name: "Ada"}
	bob := models.Attendee{ID: uuid.New(), Email: "bob@example.com"}
	logs, mailer := &memEmailLog{}, &fakeMailer{}
	n := NewNotifier(staticRecipients{ada, bob}, logs, fakeTokens{}, mailer, "https://app.example.com", nil)
	webinarID := uuid.New()

	require.NoError(t, n.Process(context.Background(), startedJob(t, webinarID)))

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, notify.SubjectWebinarStarted, mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "https://app.example.com/live-webinar/"+webinarID.String()+"?token=tok-")
	assert.Contains(t, mailer.sent[0].Text, "Growth Masterclass")
	require.Len(t, logs.entries, 2)
	for _, e := range logs.entries {
		assert.Equal(t, models.EmailLogStatusSent, e.Status)
		assert.NotNil(t, e.SentAt)
		assert.Equal(t, "re_"+e.RecipientEmail, e.ProviderID)
	}
}

func TestNotifierRetryOnlyResendsFailures(t *testing.T) {
	ada := models.Attendee{ID: uuid.New(), Email: "ada@example.com"}
	bob := models.Attendee{ID: uuid.New(), Email: "bob@example.com"}
	logs := &memEmailLog{}
	mailer := &fakeMailer{fail: map[string]bool{"bob@example.com": true}}
	n := NewNotifier(staticRecipients{ada, bob}, logs, fakeTokens{}, mailer, "https://app.example.com", nil)
	job := startedJob(t, uuid.New())

	err := n.Process(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox unavailable")
	require.Len(t, logs.entries, 2)
	assert.Equal(t, models.EmailLogStatusFailed, logs.entries[1].Status)
	assert.Equal(t, "mailbox unavailable", logs.entries[1].ErrorMessage)

	mailer.fail = nil
	require.NoError(t, n.Process(context.Background(), job))
	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "ada@example.com", mailer.sent[0].To)
	assert.Equal(t, "bob@example.com", mailer.sent[1].To)
}

type memRecordings struct {
	mu     sync.Mutex
	rec    *models.Recording
	failed bool
}

func (m *memRecordings) GetByID(_ context.Context, id uuid.UUID) (*models.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil || m.rec.ID != id {
		return nil, nil
	}
	cp := *m.rec
	return &cp, nil
}

func (m *memRecordings) MarkArchived(_ context.Context, _ uuid.UUID, key string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.S3Key, m.rec.FileSize, m.rec.Status = key, size, models.RecordingStatusCompleted
	return nil
}

func (m *memRecordings) MarkFailed(context.Context, uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = true
	return nil
}

type memUploader struct {
	objects map[string]string
}

func (u *memUploader) UploadRecording(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if u.objects == nil {
		u.objects = map[string]string{}
	}
	u.objects[key] = string(b)
	return nil
}

func uploadJob(t *testing.T, rec *models.Recording, url string, attempt int) *queue.Job {
	t.Helper()
	body, err := json.Marshal(queue.RecordingUploadPayload{RecordingID: rec.ID, WebinarID: rec.WebinarID, OriginalURL: url})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeRecordingUpload, Queue: queue.QueueRecordings, Payload: body, Attempt: attempt}
}

func TestArchiverCopiesToBucket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/webm")
		_, _ = io.WriteString(w, "frames")
	}))
	defer srv.Close()

	rec := &models.Recording{ID: uuid.New(), WebinarID: uuid.New(), Filename: "rec-1.webm", Status: models.RecordingStatusProcessing}
	store, up := &memRecordings{rec: rec}, &memUploader{}
	a := NewArchiver(store, up, srv.Client(), nil)

	require.NoError(t, a.Process(context.Background(), uploadJob(t, rec, srv.URL+"/rec-1.webm", 0)))
	key := "recordings/" + rec.WebinarID.String() + "/" + rec.ID.String() + ".webm"
	assert.Equal(t, "frames", up.objects[key])
	assert.Equal(t, models.RecordingStatusCompleted, store.rec.Status)
	assert.Equal(t, key, store.rec.S3Key)

	// Already archived: a redelivered job is a no-op.
	up.objects = nil
	require.NoError(t, a.Process(context.Background(), uploadJob(t, rec, srv.URL+"/rec-1.webm", 0)))
	assert.Empty(t, up.objects)
}

func TestArchiverMarksFailedOnLastAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	rec := &models.Recording{ID: uuid.New(), WebinarID: uuid.New(), Status: models.RecordingStatusProcessing}
	store := &memRecordings{rec: rec}
	a := NewArchiver(store, &memUploader{}, srv.Client(), nil)

	err := a.Process(context.Background(), uploadJob(t, rec, srv.URL, 0))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "403"))
	assert.False(t, store.failed)

	require.Error(t, a.Process(context.Background(), uploadJob(t, rec, srv.URL, queue.MaxRetries-1)))
	assert.True(t, store.failed)
}
