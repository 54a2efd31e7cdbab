package recordings

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/internal/streaming"
	"github.com/aura-webinar/spotlight/pkg/queue"
	"github.com/aura-webinar/spotlight/pkg/response"
)

const maxWebhookBody = 1 << 20

// Store is the recording persistence the webhook needs.
type Store interface {
	Upsert(ctx context.Context, rec *models.Recording) error
}

// Archiver schedules the copy of a provider recording into object storage.
type Archiver interface {
	EnqueueRecordingUpload(ctx context.Context, payload queue.RecordingUploadPayload) error
}

// Verifier checks provider webhook signatures.
type Verifier interface {
	VerifyWebhook(body []byte, signature string) bool
}

// WebhookHandler handles recording webhooks from the video provider.
type WebhookHandler struct {
	store    Store
	archiver Archiver
	verifier Verifier
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(store Store, archiver Archiver, verifier Verifier, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{store: store, archiver: archiver, verifier: verifier, logger: logger}
}

// RecordingReady handles POST /webhooks/recordings. Events other than
// call.recording_ready are acknowledged and ignored.
func (h *WebhookHandler) RecordingReady(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "could not read body")
		return
	}
	if !h.verifier.VerifyWebhook(body, c.GetHeader(streaming.SignatureHeader)) {
		response.Unauthorized(c, "invalid signature")
		return
	}
	var ev streaming.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if ev.Type != streaming.EventRecordingReady {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if ev.CallRecording == nil || ev.CallRecording.URL == "" {
		response.BadRequest(c, "call_recording.url required")
		return
	}
	webinarID, err := streaming.WebinarIDFromCID(ev.CallCID)
	if err != nil {
		response.BadRequest(c, "invalid call_cid")
		return
	}

	r := ev.CallRecording
	rec := &models.Recording{
		WebinarID:   webinarID,
		Filename:    r.Filename,
		OriginalURL: r.URL,
	}
	if !r.StartTime.IsZero() && r.EndTime.After(r.StartTime) {
		rec.Duration = int(r.EndTime.Sub(r.StartTime).Seconds())
	}
	ctx := c.Request.Context()
	if err := h.store.Upsert(ctx, rec); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if rec.Status != models.RecordingStatusCompleted {
		if err := h.archiver.EnqueueRecordingUpload(ctx, queue.RecordingUploadPayload{
			RecordingID: rec.ID,
			WebinarID:   rec.WebinarID,
			OriginalURL: rec.OriginalURL,
		}); err != nil {
			// The row keeps the provider URL, which is enough for playback.
			h.logger.Error("enqueue recording upload failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		}
	}

	h.logger.Info("recording ready", zap.String("recording_id", rec.ID.String()), zap.String("webinar_id", webinarID.String()), zap.String("filename", rec.Filename))
	c.JSON(http.StatusOK, gin.H{"received": true, "recording_id": rec.ID, "status": rec.Status})
}
