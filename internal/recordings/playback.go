package recordings

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/access"
	"github.com/aura-webinar/spotlight/internal/models"
)

// Latest finds the newest playable recording of a webinar.
type Latest interface {
	LatestPlayable(ctx context.Context, webinarID uuid.UUID) (*models.Recording, error)
}

// Presigner signs archived recording keys.
type Presigner interface {
	PresignRecording(ctx context.Context, key string) (string, error)
}

// Playback resolves the URL an ended webinar page plays.
type Playback struct {
	latest Latest
	signer Presigner
	logger *zap.Logger
}

// NewPlayback creates a playback resolver. signer may be nil when no bucket is configured.
func NewPlayback(latest Latest, signer Presigner, logger *zap.Logger) *Playback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Playback{latest: latest, signer: signer, logger: logger}
}

// Playback returns a presigned URL for the archived copy, else the provider URL, or nil
// when the webinar has no recording.
func (p *Playback) Playback(ctx context.Context, webinarID uuid.UUID) (*access.Recording, error) {
	rec, err := p.latest.LatestPlayable(ctx, webinarID)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.S3Key != "" && p.signer != nil {
		url, err := p.signer.PresignRecording(ctx, rec.S3Key)
		if err == nil {
			return &access.Recording{ID: rec.ID, URL: url}, nil
		}
		p.logger.Warn("presign recording failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
	}
	if rec.OriginalURL == "" {
		return nil, nil
	}
	return &access.Recording{ID: rec.ID, URL: rec.OriginalURL}, nil
}
