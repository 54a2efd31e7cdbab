package streaming

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhook(t *testing.T) {
	c, _ := newTestClient(t)
	body := []byte(`{"type":"call.recording_ready"}`)

	assert.True(t, c.VerifyWebhook(body, sign(body)))
	assert.False(t, c.VerifyWebhook(body, sign([]byte("other"))))
	assert.False(t, c.VerifyWebhook(body, ""))
}

func TestWebinarIDFromCID(t *testing.T) {
	id := uuid.New()

	got, err := WebinarIDFromCID("livestream:" + id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = WebinarIDFromCID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = WebinarIDFromCID("livestream:nope")
	assert.Error(t, err)
}
