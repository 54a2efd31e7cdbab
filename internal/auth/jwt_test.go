package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPresenterTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()

	token, err := svc.Generate(id, "p@example.com", "presenter")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "presenter", claims.Role)
}

func TestAttendeeTokenIsNotAPresenterToken(t *testing.T) {
	svc := NewJWTService("secret", 1)
	attendee, webinar := uuid.New(), uuid.New()

	token, err := svc.GenerateAttendee(attendee, webinar)
	require.NoError(t, err)

	claims, err := svc.ValidateAttendee(token)
	require.NoError(t, err)
	assert.Equal(t, attendee, claims.AttendeeID)
	assert.Equal(t, webinar, claims.WebinarID)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	presenter, err := svc.Generate(uuid.New(), "p@example.com", "presenter")
	require.NoError(t, err)
	_, err = svc.ValidateAttendee(presenter)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredAndForeignTokensRejected(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.Generate(uuid.New(), "p@example.com", "presenter")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTService("other", 1)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	passwordCost = bcrypt.MinCost
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword("correct horse", hash))
	assert.False(t, CheckPassword("wrong", hash))
}
