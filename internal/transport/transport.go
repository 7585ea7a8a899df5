// Package transport defines the port to the opaque per-session protocol
// client and its websocket bridge implementation.
//
// The bridge process owns pairing cryptography and the wire protocol; this
// package only carries its lifecycle events and send/receive primitives.
// Events arrive on a single per-session channel, so consumers get total
// per-session ordering for free.
package transport

import (
	"context"
	"strings"
	"time"
)

// EventType identifies a lifecycle or traffic event from the client.
type EventType string

const (
	EventPairingCode   EventType = "pairing-code"
	EventAuthenticated EventType = "authenticated"
	EventReady         EventType = "ready"
	EventDisconnected  EventType = "disconnected"
	EventAuthFailed    EventType = "auth-failed"
	EventError         EventType = "error"
	EventStateChanged  EventType = "state-changed"
	EventMessage       EventType = "message"
)

// Event is one item on a session's event channel.
type Event struct {
	Type        EventType
	PairingCode string
	Identity    string // messaging identity, set on ready
	Reason      string
	State       string
	Message     *Message
}

// Message is an inbound chat message.
type Message struct {
	ID         string
	ChatID     string
	SenderName string
	Text       string
	FromSelf   bool
	Media      bool
	MimeType   string
	Data       []byte
	Timestamp  time.Time
}

// Client is one live connection to the messaging network. Exactly one
// live client exists per session; the old client must be fully destroyed
// before a replacement is attached.
type Client interface {
	// Start begins the connect/handshake sequence. Progress is reported
	// through Events; Start only fails on immediate setup errors.
	Start(ctx context.Context) error

	// Events returns the per-session event channel. It is closed when
	// the client is destroyed or the underlying connection is lost.
	Events() <-chan Event

	// Send delivers one outbound text message.
	Send(ctx context.Context, chatID, text string) error

	// Liveness probes the connection within the context deadline.
	Liveness(ctx context.Context) error

	// Destroy tears the connection down. It is idempotent and respects
	// the context deadline; callers proceed regardless of its error.
	Destroy(ctx context.Context) error
}

// Factory creates and purges clients for session ids.
type Factory interface {
	// New builds a fresh client bound to the session's persistent
	// identity artifacts.
	New(ctx context.Context, sessionID string) (Client, error)

	// Purge removes the session's local identity artifacts so the next
	// client starts from a clean pairing.
	Purge(ctx context.Context, sessionID string) error
}

// fatalSignatures mark transport errors that indicate the connection
// engine itself died rather than a recoverable hiccup.
var fatalSignatures = []string{
	"protocol error",
	"target closed",
	"session closed",
	"connection closed",
}

// IsFatalReason reports whether an error reason belongs to the
// transport-fatal class that warrants a scheduled reconnection.
func IsFatalReason(reason string) bool {
	lower := strings.ToLower(reason)
	for _, sig := range fatalSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
