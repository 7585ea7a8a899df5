package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// wireEvent is the JSON frame format the bridge emits.
type wireEvent struct {
	Event    string       `json:"event"`
	Code     string       `json:"code,omitempty"`
	Identity string       `json:"identity,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	State    string       `json:"state,omitempty"`
	Message  *wireMessage `json:"message,omitempty"`
}

type wireMessage struct {
	ID         string `json:"id"`
	ChatID     string `json:"chat_id"`
	SenderName string `json:"sender_name,omitempty"`
	Text       string `json:"text,omitempty"`
	FromSelf   bool   `json:"from_self,omitempty"`
	Media      bool   `json:"media,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	Data       []byte `json:"data,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// wireCommand is the JSON frame format the supervisor sends.
type wireCommand struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id,omitempty"`
	Text   string `json:"text,omitempty"`
}

// BridgeClient is a Client backed by a websocket connection to a
// protocol-bridge process.
type BridgeClient struct {
	sessionID string
	url       string
	events    chan Event
	destroy   func(ctx context.Context) error

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// DialBridge connects to a bridge's websocket endpoint. The destroy
// callback tears down the bridge process itself (container stop) and is
// invoked from Destroy after the socket is closed; it may be nil.
func DialBridge(ctx context.Context, sessionID, url string, destroy func(ctx context.Context) error) (*BridgeClient, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", url, err)
	}
	// Media payloads arrive inline on the event frame.
	conn.SetReadLimit(32 << 20)

	return &BridgeClient{
		sessionID: sessionID,
		url:       url,
		conn:      conn,
		events:    make(chan Event, 32),
		destroy:   destroy,
	}, nil
}

// Start launches the read loop. Lifecycle progress arrives on Events.
func (c *BridgeClient) Start(ctx context.Context) error {
	go c.readLoop(ctx)
	return nil
}

// Events returns the per-session event channel.
func (c *BridgeClient) Events() <-chan Event {
	return c.events
}

func (c *BridgeClient) readLoop(ctx context.Context) {
	defer close(c.events)
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				slog.Debug("Bridge read loop ended", "session_id", c.sessionID, "error", err)
				c.events <- Event{Type: EventDisconnected, Reason: err.Error()}
			}
			return
		}

		var we wireEvent
		if err := json.Unmarshal(data, &we); err != nil {
			slog.Warn("Malformed bridge frame", "session_id", c.sessionID, "error", err)
			continue
		}

		ev, ok := translate(we)
		if !ok {
			slog.Debug("Unknown bridge event", "session_id", c.sessionID, "event", we.Event)
			continue
		}
		c.events <- ev
	}
}

func translate(we wireEvent) (Event, bool) {
	switch EventType(we.Event) {
	case EventPairingCode:
		return Event{Type: EventPairingCode, PairingCode: we.Code}, true
	case EventAuthenticated:
		return Event{Type: EventAuthenticated}, true
	case EventReady:
		return Event{Type: EventReady, Identity: we.Identity}, true
	case EventDisconnected:
		return Event{Type: EventDisconnected, Reason: we.Reason}, true
	case EventAuthFailed:
		return Event{Type: EventAuthFailed, Reason: we.Reason}, true
	case EventError:
		return Event{Type: EventError, Reason: we.Reason}, true
	case EventStateChanged:
		return Event{Type: EventStateChanged, State: we.State}, true
	case EventMessage:
		if we.Message == nil {
			return Event{}, false
		}
		return Event{Type: EventMessage, Message: &Message{
			ID:         we.Message.ID,
			ChatID:     we.Message.ChatID,
			SenderName: we.Message.SenderName,
			Text:       we.Message.Text,
			FromSelf:   we.Message.FromSelf,
			Media:      we.Message.Media,
			MimeType:   we.Message.MimeType,
			Data:       we.Message.Data,
			Timestamp:  time.Unix(we.Message.Timestamp, 0),
		}}, true
	}
	return Event{}, false
}

// Send delivers one outbound text message through the bridge.
func (c *BridgeClient) Send(ctx context.Context, chatID, text string) error {
	data, err := json.Marshal(wireCommand{Type: "send", ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal send command: %w", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send to bridge: %w", err)
	}
	return nil
}

// Liveness pings the bridge within the context deadline.
func (c *BridgeClient) Liveness(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("bridge liveness ping: %w", err)
	}
	return nil
}

// Destroy closes the socket and stops the bridge process. Idempotent;
// destroy errors are reported but callers proceed regardless.
func (c *BridgeClient) Destroy(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.conn.Close(websocket.StatusNormalClosure, "session destroyed"); err != nil {
		slog.Debug("Bridge socket close", "session_id", c.sessionID, "error", err)
	}
	if c.destroy != nil {
		if err := c.destroy(ctx); err != nil {
			return fmt.Errorf("destroy bridge %s: %w", c.sessionID, err)
		}
	}
	return nil
}
