package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/queue"
	"github.com/aura-webinar/spotlight/pkg/storage"
)

// RecordingStore reads and finalizes recording rows.
type RecordingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	MarkArchived(ctx context.Context, id uuid.UUID, key string, fileSize int64) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// Uploader writes recordings to object storage.
type Uploader interface {
	UploadRecording(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
}

// Archiver copies provider recordings into the recordings bucket.
type Archiver struct {
	store    RecordingStore
	uploader Uploader
	http     *http.Client
	logger   *zap.Logger
}

// NewArchiver creates the recording_upload processor.
func NewArchiver(store RecordingStore, uploader Uploader, httpClient *http.Client, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Archiver{store: store, uploader: uploader, http: httpClient, logger: logger}
}

// Process streams the provider file into S3 and marks the row completed. On the last
// attempt a failure marks the row failed; its provider URL stays playable.
func (a *Archiver) Process(ctx context.Context, job *queue.Job) error {
	var p queue.RecordingUploadPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	rec, err := a.store.GetByID(ctx, p.RecordingID)
	if err != nil {
		return err
	}
	if rec == nil {
		a.logger.Warn("recording gone, dropping job", zap.String("recording_id", p.RecordingID.String()))
		return nil
	}
	if rec.Status == models.RecordingStatusCompleted {
		a.logger.Info("recording already archived", zap.String("recording_id", rec.ID.String()))
		return nil
	}

	key, size, err := a.copy(ctx, rec, p.OriginalURL)
	if err != nil {
		if job.Attempt+1 >= queue.MaxRetries {
			if mErr := a.store.MarkFailed(ctx, rec.ID); mErr != nil {
				a.logger.Error("mark recording failed", zap.Error(mErr), zap.String("recording_id", rec.ID.String()))
			}
		}
		return err
	}
	if err := a.store.MarkArchived(ctx, rec.ID, key, size); err != nil {
		return fmt.Errorf("update db: %w", err)
	}
	a.logger.Info("recording archived", zap.String("recording_id", rec.ID.String()), zap.String("s3_key", key), zap.Int64("bytes", size))
	return nil
}

func (a *Archiver) copy(ctx context.Context, rec *models.Recording, url string) (string, int64, error) {
	if url == "" {
		url = rec.OriginalURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	key := storage.RecordingKey(rec.WebinarID.String(), rec.ID.String(), rec.Filename)
	if err := a.uploader.UploadRecording(ctx, key, contentType, resp.Body, resp.ContentLength); err != nil {
		return "", 0, fmt.Errorf("s3 upload: %w", err)
	}
	return key, resp.ContentLength, nil
}
