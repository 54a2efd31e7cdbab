package streaming

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Webhook event types the provider sends.
const (
	EventRecordingReady = "call.recording_ready"
	EventLiveEnded      = "call.live_ended"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature"

// WebhookEvent is the subset of provider webhook bodies the service reads.
type WebhookEvent struct {
	Type          string     `json:"type"`
	CallCID       string     `json:"call_cid"`
	CallRecording *Recording `json:"call_recording,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// VerifyWebhook reports whether signature is the HMAC of body under the API secret.
func (c *Client) VerifyWebhook(body []byte, signature string) bool {
	if c.cfg.APISecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}

// WebinarIDFromCID extracts the webinar id from a "type:id" call cid.
func WebinarIDFromCID(cid string) (uuid.UUID, error) {
	_, id, ok := strings.Cut(cid, ":")
	if !ok {
		id = cid
	}
	webinarID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("call cid %q: %w", cid, err)
	}
	return webinarID, nil
}
