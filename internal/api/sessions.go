package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/events"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/identity"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/registry"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/store"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/supervisor"
)

// SessionHandler exposes session lifecycle operations to the owning
// tenant. Stop, restart, pair and delete are idempotent: acting on an
// unknown session or one already in the target state succeeds quietly.
type SessionHandler struct {
	sup  *supervisor.Supervisor
	reg  *registry.Registry
	repo store.Repository
	hub  *events.Hub
}

// NewSessionHandler creates the handler.
func NewSessionHandler(sup *supervisor.Supervisor, reg *registry.Registry, repo store.Repository, hub *events.Hub) *SessionHandler {
	return &SessionHandler{sup: sup, reg: reg, repo: repo, hub: hub}
}

// RegisterRoutes mounts the session API and the event subscription
// endpoint.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/{id}/stop", h.stop)
		r.Post("/{id}/restart", h.restart)
		r.Post("/{id}/pair", h.pair)
		r.Delete("/{id}", h.delete)
	})
	r.Get("/api/health", h.health)
	r.Get("/ws/events", h.subscribe)
}

type createRequest struct {
	Name           string `json:"name"`
	AssistantLabel string `json:"assistant_label"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	ownerID := identity.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		Error(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.AssistantLabel == "" {
		req.AssistantLabel = "assistant"
	}

	id, err := h.sup.CreateSession(r.Context(), req.Name, req.AssistantLabel, ownerID)
	if err != nil {
		// The session record exists and is in the error state; the
		// caller gets it back along with the failure detail.
		slog.Error("Session created but failed to connect", "session_id", id, "error", err)
	}

	sess := h.reg.Get(id)
	if sess == nil {
		Error(w, http.StatusInternalServerError, "session creation failed")
		return
	}
	JSON(w, http.StatusCreated, sess.View())
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	ownerID := identity.OwnerIDFromContext(r.Context())
	sessions := h.reg.ByOwner(ownerID)

	views := make([]domain.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sess.View())
	}
	JSON(w, http.StatusOK, views)
}

// owned returns the session when it exists and belongs to the requester.
// The bool distinguishes "absent" (idempotent no-op territory) from
// "present but foreign" (not found to this tenant).
func (h *SessionHandler) owned(r *http.Request) (*registry.Session, bool) {
	id := chi.URLParam(r, "id")
	sess := h.reg.Get(id)
	if sess == nil {
		return nil, true
	}
	if sess.OwnerID != identity.OwnerIDFromContext(r.Context()) {
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.owned(r)
	if sess == nil || !ok {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, sess.View())
}

func (h *SessionHandler) act(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	sess, ok := h.owned(r)
	if !ok {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if sess == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := op(r.Context(), sess.ID); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.sup.StopSession)
}

func (h *SessionHandler) restart(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.sup.RestartSession)
}

func (h *SessionHandler) pair(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.sup.ForcePair)
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.sup.DeleteSession)
}

func (h *SessionHandler) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	database := "ok"
	code := http.StatusOK
	if err := h.repo.Ping(r.Context()); err != nil {
		status = "degraded"
		database = err.Error()
		code = http.StatusServiceUnavailable
	}
	JSON(w, code, map[string]interface{}{
		"status":   status,
		"database": database,
		"sessions": h.reg.Len(),
	})
}

func (h *SessionHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	ownerID := identity.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		Error(w, http.StatusUnauthorized, "missing identity")
		return
	}
	h.hub.Subscribe(w, r, ownerID)
}
