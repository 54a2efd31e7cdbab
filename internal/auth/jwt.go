package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

const (
	audiencePresenter = "presenter"
	audienceAttendee  = "attendee"

	attendeeTokenTTL = 30 * 24 * time.Hour
)

// Claims holds presenter JWT claims.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// AttendeeClaims identify a registered attendee for one webinar. They are issued at
// registration and let the attendee open the live page without an account.
type AttendeeClaims struct {
	AttendeeID uuid.UUID `json:"attendee_id"`
	WebinarID  uuid.UUID `json:"webinar_id"`
	jwt.RegisteredClaims
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
	now         func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
		now:         time.Now,
	}
}

// Generate creates a new JWT for the presenter.
func (s *JWTService) Generate(userID uuid.UUID, email, role string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audiencePresenter},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a presenter JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := s.parse(tokenString, claims, audiencePresenter); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateAttendee issues an attendee token for webinarID.
func (s *JWTService) GenerateAttendee(attendeeID, webinarID uuid.UUID) (string, error) {
	now := s.now()
	claims := AttendeeClaims{
		AttendeeID: attendeeID,
		WebinarID:  webinarID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceAttendee},
			Subject:   attendeeID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(attendeeTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateAttendee parses an attendee token.
func (s *JWTService) ValidateAttendee(tokenString string) (*AttendeeClaims, error) {
	claims := &AttendeeClaims{}
	if err := s.parse(tokenString, claims, audienceAttendee); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithAudience(audience), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
