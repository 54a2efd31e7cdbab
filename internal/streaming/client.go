// Package streaming talks to the hosted video provider that carries the live stream.
package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/pkg/telemetry"
)

// UserTokenTTL is how long viewer and host tokens stay valid.
const UserTokenTTL = 60 * time.Hour

// Config holds the provider credentials.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	CallType  string
}

// Client is a REST client for the video provider. One Client is created at startup and
// injected wherever it is needed.
type Client struct {
	cfg    Config
	http   *http.Client
	now    func() time.Time
	logger *zap.Logger
}

// NewClient creates a provider client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.CallType == "" {
		cfg.CallType = "livestream"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, now: time.Now, logger: logger}
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status  int    `json:"StatusCode"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("video provider: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Call is the provider state of one call.
type Call struct {
	ID        string `json:"id"`
	CID       string `json:"cid"`
	Backstage bool   `json:"backstage"`
	Recording bool   `json:"recording"`
}

// Live reports whether the call is broadcasting.
func (c *Call) Live() bool {
	return !c.Backstage
}

// Recording is a finished recording of a call.
type Recording struct {
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// CallID is the provider id of the call carrying webinarID.
func CallID(webinarID uuid.UUID) string {
	return webinarID.String()
}

// CID is the fully qualified call id, "<type>:<id>".
func (c *Client) CID(webinarID uuid.UUID) string {
	return c.cfg.CallType + ":" + CallID(webinarID)
}

// APIKey is the public key clients need next to a user token.
func (c *Client) APIKey() string {
	return c.cfg.APIKey
}

// CallType is the configured call type.
func (c *Client) CallType() string {
	return c.cfg.CallType
}

func (c *Client) serverToken() (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"server": true}).SignedString([]byte(c.cfg.APISecret))
}

// UserToken signs a client token for userID.
func (c *Client) UserToken(userID string) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Add(-5 * time.Second).Unix(),
		"exp":     now.Add(UserTokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.APISecret))
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	u := c.cfg.BaseURL + path + "?api_key=" + url.QueryEscape(c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	token, err := c.serverToken()
	if err != nil {
		return fmt.Errorf("sign server token: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("stream-auth-type", "jwt")
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 300 {
		apiErr := &APIError{}
		_ = json.Unmarshal(payload, apiErr)
		apiErr.Status = res.StatusCode
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return apiErr
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) callPath(callID string) string {
	return "/api/v2/video/call/" + url.PathEscape(c.cfg.CallType) + "/" + url.PathEscape(callID)
}

// UpsertUser registers or updates a user on the provider.
func (c *Client) UpsertUser(ctx context.Context, id, name, role string) error {
	body := map[string]interface{}{
		"users": map[string]interface{}{
			id: map[string]string{"id": id, "name": name, "role": role},
		},
	}
	return c.do(ctx, http.MethodPost, "/api/v2/users", body, nil)
}

// GetOrCreateCall makes sure the call exists with hostID as its host.
func (c *Client) GetOrCreateCall(ctx context.Context, callID, hostID string) (*Call, error) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"created_by_id": hostID,
			"members":       []map[string]string{{"user_id": hostID, "role": "host"}},
		},
	}
	var out struct {
		Call Call `json:"call"`
	}
	if err := c.do(ctx, http.MethodPost, c.callPath(callID), body, &out); err != nil {
		return nil, err
	}
	return &out.Call, nil
}

// GetCall returns the provider state of callID.
func (c *Client) GetCall(ctx context.Context, callID string) (*Call, error) {
	var out struct {
		Call Call `json:"call"`
	}
	if err := c.do(ctx, http.MethodGet, c.callPath(callID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Call, nil
}

// GoLive takes the call out of backstage and starts recording.
func (c *Client) GoLive(ctx context.Context, callID string) error {
	body := map[string]interface{}{"start_recording": true}
	return c.do(ctx, http.MethodPost, c.callPath(callID)+"/go_live", body, nil)
}

// StopLive puts the call back into backstage.
func (c *Client) StopLive(ctx context.Context, callID string) error {
	return c.do(ctx, http.MethodPost, c.callPath(callID)+"/stop_live", map[string]interface{}{}, nil)
}

// ListRecordings returns the finished recordings of callID.
func (c *Client) ListRecordings(ctx context.Context, callID string) ([]Recording, error) {
	var out struct {
		Recordings []Recording `json:"recordings"`
	}
	if err := c.do(ctx, http.MethodGet, c.callPath(callID)+"/recordings", nil, &out); err != nil {
		return nil, err
	}
	return out.Recordings, nil
}

// ProvisionAndGoLive creates the webinar call with the presenter as host and takes it
// live. A call that is already live counts as success, which makes retries after a
// partial attempt safe.
func (c *Client) ProvisionAndGoLive(ctx context.Context, webinarID, presenterID uuid.UUID) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "streaming.ProvisionAndGoLive")
	defer span.End()
	span.SetAttributes(attribute.String("webinar.id", webinarID.String()))

	callID := CallID(webinarID)
	log := c.logger.With(zap.String("webinar_id", webinarID.String()), zap.String("call_id", callID))

	if existing, err := c.GetCall(ctx, callID); err == nil && existing.Live() {
		log.Info("call already live")
		return c.CID(webinarID), nil
	} else if err != nil && !IsNotFound(err) {
		span.RecordError(err)
		return "", fmt.Errorf("get call: %w", err)
	}

	if _, err := c.GetOrCreateCall(ctx, callID, presenterID.String()); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("create call: %w", err)
	}
	if err := c.GoLive(ctx, callID); err != nil {
		// the provider may have applied it before failing the response
		if current, getErr := c.GetCall(ctx, callID); getErr == nil && current.Live() {
			log.Warn("go live reported an error but the call is live", zap.Error(err))
			return c.CID(webinarID), nil
		}
		span.RecordError(err)
		return "", fmt.Errorf("go live: %w", err)
	}
	log.Info("call is live")
	return c.CID(webinarID), nil
}

// Stop ends the broadcast of webinarID. A call the provider does not know is
// already stopped.
func (c *Client) Stop(ctx context.Context, webinarID uuid.UUID) error {
	err := c.StopLive(ctx, CallID(webinarID))
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("stop live: %w", err)
	}
	return nil
}
