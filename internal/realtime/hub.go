package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Chat channel events.
const (
	EventOpenCTA       = "open_cta_dialog"
	EventStartLive     = "start_live"
	EventJoin          = "join"
	EventLeave         = "leave"
	EventAudienceCount = "audience_count"
	EventChatMessage   = "chat_message"
	EventError         = "error"
)

// AudienceChangeHandler is called when audience count changes for a webinar (e.g. for peak tracking).
type AudienceChangeHandler func(webinarID uuid.UUID, count int)

// Publisher publishes webinar events for every instance, this one included.
type Publisher interface {
	PublishWebinarEvent(ctx context.Context, webinarID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to webinar channels and invokes handler for incoming events.
type Subscriber interface {
	SubscribeWebinar(webinarID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains webinar_id -> set of connections and broadcasts messages. It is the
// connection manager for chat: handlers register a client for the lifetime of its
// socket and unregister it on close.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// webinarID -> map[clientID]*Client
	webinars   map[uuid.UUID]map[string]*Client
	subs       map[uuid.UUID]func() // cancel Redis subscription per webinar
	mu         sync.RWMutex
	logger     *zap.Logger
	redis      Publisher
	redisSub   Subscriber
	onAudience AudienceChangeHandler
	metrics    *metrics.Metrics
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Hub{
		webinars: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    pub,
		redisSub: sub,
		metrics:  m,
	}
}

// SetAudienceChangeHandler sets the callback for audience count changes.
func (h *Hub) SetAudienceChangeHandler(fn AudienceChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAudience = fn
}

// Register adds a client to a webinar room. Starts Redis subscription for this webinar if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.webinars[c.WebinarID] == nil {
		h.webinars[c.WebinarID] = make(map[string]*Client)
		if h.redisSub != nil {
			webinarID := c.WebinarID
			cancel, err := h.redisSub.SubscribeWebinar(webinarID, func(event string, payload []byte) {
				h.BroadcastToWebinar(webinarID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("redis subscribe failed", zap.Error(err), zap.String("webinar_id", webinarID.String()))
			} else {
				h.subs[webinarID] = cancel
			}
		}
	}
	h.webinars[c.WebinarID][c.ID] = c
	count := len(h.webinars[c.WebinarID])
	onAudience := h.onAudience
	h.mu.Unlock()

	h.metrics.ChatConnected.Inc()
	if onAudience != nil {
		onAudience(c.WebinarID, count)
	}
	h.logger.Debug("client joined webinar", zap.String("client_id", c.ID), zap.String("webinar_id", c.WebinarID.String()))
}

// Unregister removes a client from a webinar room and closes its send channel. Cancels
// the Redis subscription when the last client leaves. Unregistering twice is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.webinars[c.WebinarID]
	if !ok || m[c.ID] == nil {
		h.mu.Unlock()
		return
	}
	delete(m, c.ID)
	close(c.send)
	count := len(m)
	if count == 0 {
		delete(h.webinars, c.WebinarID)
		if cancel, ok := h.subs[c.WebinarID]; ok {
			cancel()
			delete(h.subs, c.WebinarID)
		}
	}
	onAudience := h.onAudience
	h.mu.Unlock()

	h.metrics.ChatConnected.Dec()
	if onAudience != nil && count > 0 {
		onAudience(c.WebinarID, count)
	}
	h.logger.Debug("client left webinar", zap.String("client_id", c.ID), zap.String("webinar_id", c.WebinarID.String()))
}

func encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}

// BroadcastToWebinar sends a message to all clients in a webinar (local only).
func (h *Hub) BroadcastToWebinar(webinarID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode broadcast failed", zap.Error(err), zap.String("event", event))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.webinars[webinarID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToWebinarAndPublish sends to local clients and publishes to Redis for other instances.
// Subscribed instances, this one included, rebroadcast what they receive, so it is
// only used when no Redis subscriber is configured.
func (h *Hub) BroadcastToWebinarAndPublish(ctx context.Context, webinarID uuid.UUID, event string, payload interface{}) error {
	if h.redisSub != nil {
		return h.PublishToWebinarOnly(ctx, webinarID, event, payload)
	}
	h.BroadcastToWebinar(webinarID, event, payload)
	if h.redis == nil {
		return nil
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}
	return h.redis.PublishWebinarEvent(ctx, webinarID, event, data)
}

// PublishToWebinarOnly publishes to Redis only (no local broadcast), so the Redis
// subscriber callback performs the broadcast once for all instances including this one.
// Without Redis it falls back to a local broadcast.
func (h *Hub) PublishToWebinarOnly(ctx context.Context, webinarID uuid.UUID, event string, payload interface{}) error {
	if h.redis == nil {
		h.BroadcastToWebinar(webinarID, event, payload)
		return nil
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}
	return h.redis.PublishWebinarEvent(ctx, webinarID, event, data)
}

// SendToClient sends a message to a single client in a webinar.
func (h *Hub) SendToClient(webinarID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.webinars[webinarID][clientID]
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// AudienceCount returns the number of connected clients in a webinar on this instance.
func (h *Hub) AudienceCount(webinarID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.webinars[webinarID])
}

// StartLivePayload tells viewers to reload into the live page.
type StartLivePayload struct {
	WebinarID uuid.UUID `json:"webinar_id"`
}

// OpenCTAPayload asks viewers to open the call-to-action dialog.
type OpenCTAPayload struct {
	WebinarID  uuid.UUID      `json:"webinar_id"`
	CtaType    models.CtaType `json:"cta_type"`
	CtaLabel   string         `json:"cta_label"`
	PriceID    *string        `json:"price_id,omitempty"`
	CouponCode *string        `json:"coupon_code,omitempty"`
}

// PublishStartLive emits start_live on the webinar channel.
func (h *Hub) PublishStartLive(ctx context.Context, webinarID uuid.UUID) error {
	return h.PublishToWebinarOnly(ctx, webinarID, EventStartLive, StartLivePayload{WebinarID: webinarID})
}

// PublishOpenCTA emits open_cta_dialog on the webinar channel.
func (h *Hub) PublishOpenCTA(ctx context.Context, w *models.Webinar) error {
	p := OpenCTAPayload{WebinarID: w.ID, CtaType: w.CtaType, CtaLabel: w.CtaLabel, PriceID: w.PriceID}
	if w.CouponEnabled {
		p.CouponCode = w.CouponCode
	}
	return h.PublishToWebinarOnly(ctx, w.ID, EventOpenCTA, p)
}
