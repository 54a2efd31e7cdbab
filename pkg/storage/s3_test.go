package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordingKey(t *testing.T) {
	assert.Equal(t, "recordings/w1/r1.mp4", RecordingKey("w1", "r1", "call_2024.MP4"))
	assert.Equal(t, "recordings/w1/r1.webm", RecordingKey("w1", "r1", "x.webm"))
	assert.Equal(t, "recordings/w1/r1.mp4", RecordingKey("w1", "r1", ""))
}
