package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxMessageBytes = 65536
	maxChatRunes    = 1000
	sendBuffer      = 256
)

// Chat roles.
const (
	RolePresenter = "presenter"
	RoleAttendee  = "attendee"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is a relayed chat line.
type ChatMessage struct {
	SenderID string    `json:"sender_id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// Client represents a single WebSocket connection in a webinar. Exactly one of UserID
// (presenter) and AttendeeID is set.
type Client struct {
	ID         string
	WebinarID  uuid.UUID
	UserID     uuid.UUID
	AttendeeID uuid.UUID
	Name       string
	Role       string
	LockChat   bool
	JoinedAt   time.Time
	hub        *Hub
	conn       *websocket.Conn
	send       chan WSMessage
	logger     *zap.Logger
}

// NewClient builds a client for conn. The caller registers it on the hub.
func NewClient(hub *Hub, conn *websocket.Conn, webinarID uuid.UUID, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		ID:        uuid.NewString(),
		WebinarID: webinarID,
		JoinedAt:  time.Now(),
		hub:       hub,
		conn:      conn,
		send:      make(chan WSMessage, sendBuffer),
		logger:    logger,
	}
}

func (c *Client) senderID() string {
	if c.Role == RolePresenter {
		return c.UserID.String()
	}
	return c.AttendeeID.String()
}

// readPump reads until the socket closes.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.Error(err), zap.String("client_id", c.ID))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.handle(ctx, msg)
	}
}

func (c *Client) handle(ctx context.Context, msg WSMessage) {
	switch msg.Event {
	case EventJoin:
		_ = c.hub.BroadcastToWebinarAndPublish(ctx, c.WebinarID, EventAudienceCount, map[string]int{
			"count": c.hub.AudienceCount(c.WebinarID),
		})
	case EventChatMessage:
		if c.LockChat && c.Role != RolePresenter {
			c.hub.SendToClient(c.WebinarID, c.ID, EventError, map[string]string{"message": "chat is locked"})
			return
		}
		var in struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			return
		}
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return
		}
		if r := []rune(text); len(r) > maxChatRunes {
			text = string(r[:maxChatRunes])
		}
		out := ChatMessage{SenderID: c.senderID(), Name: c.Name, Role: c.Role, Text: text, SentAt: time.Now().UTC()}
		if err := c.hub.PublishToWebinarOnly(ctx, c.WebinarID, EventChatMessage, out); err != nil {
			c.logger.Warn("publish chat message failed", zap.Error(err), zap.String("webinar_id", c.WebinarID.String()))
		}
	case EventOpenCTA, EventStartLive:
		// server-issued only
	default:
		// ignore
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
