package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Conflict(CodeLiveSessionExists, "already live", map[string]string{"webinar_ids": "a"})
	wrapped := fmt.Errorf("start: %w", err)

	assert.True(t, errors.Is(wrapped, ErrLiveSessionExists))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("webinar")))
	assert.Equal(t, KindProvisioning, KindOf(fmt.Errorf("x: %w", Provisioning(CodeProvisioningTimeout, "timed out", nil))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Provisioning(CodeProvisioningFailed, "failed to start stream", errors.New("502"))
	assert.Equal(t, "failed to start stream: 502", err.Error())
	assert.Equal(t, "webinar not found", NotFound("webinar").Error())
}

func TestJoinTitlesIsStable(t *testing.T) {
	assert.Equal(t, "Alpha, Beta", JoinTitles([]string{"Beta", "Alpha"}))
}
