// Package events fans session lifecycle notifications out to the owning
// tenant's WebSocket subscribers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
)

// Event names carried on the wire.
const (
	SessionCreated = "created"
	SessionUpdated = "updated"
	SessionDeleted = "deleted"
)

const writeTimeout = 5 * time.Second

// Publisher notifies a tenant's subscribers about a session change.
// Implementations must never block the caller on slow subscribers beyond
// a bounded write timeout.
type Publisher interface {
	Publish(ownerID, event string, payload domain.SessionView)
}

// envelope is one notification frame.
type envelope struct {
	Event   string             `json:"event"`
	Session domain.SessionView `json:"session"`
}

// Hub tracks live subscriber connections per owner.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*websocket.Conn]struct{})}
}

// Subscribe upgrades the request to a WebSocket and streams the owner's
// session events until the client disconnects or the hub closes.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, ownerID string) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept event subscriber", "owner_id", ownerID, "error", err)
		return
	}

	h.register(ownerID, ws)
	defer h.unregister(ownerID, ws)

	// Subscribers only listen; the read loop exists to notice the close.
	ctx := r.Context()
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			_ = ws.Close(websocket.StatusNormalClosure, "subscriber gone")
			return
		}
	}
}

func (h *Hub) register(ownerID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ownerID]; !ok {
		h.subs[ownerID] = make(map[*websocket.Conn]struct{})
	}
	h.subs[ownerID][conn] = struct{}{}
	slog.Info("Event subscriber registered", "owner_id", ownerID)
}

func (h *Hub) unregister(ownerID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.subs[ownerID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subs, ownerID)
		}
	}
}

// Publish sends one event to every subscriber of the owning tenant.
// Subscribers that fail the write are dropped.
func (h *Hub) Publish(ownerID, event string, payload domain.SessionView) {
	data, err := json.Marshal(envelope{Event: event, Session: payload})
	if err != nil {
		slog.Error("Failed to marshal session event", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.subs[ownerID]))
	for conn := range h.subs[ownerID] {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("Dropping stalled event subscriber", "owner_id", ownerID, "error", err)
			_ = conn.Close(websocket.StatusPolicyViolation, "write failed")
			h.unregister(ownerID, conn)
		}
	}
}

// CloseAll terminates every subscriber connection during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ownerID, conns := range h.subs {
		for conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(h.subs, ownerID)
	}
}

var _ Publisher = (*Hub)(nil)
