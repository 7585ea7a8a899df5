package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/config"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/delivery"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/events"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/gate"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/identity"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/registry"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/supervisor"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/transport"
)

const testOwnerCookie = "owner_0123456789abcdef0123456789abcdef"

type stubClient struct {
	events chan transport.Event
	once   sync.Once
}

func (c *stubClient) Start(context.Context) error                { return nil }
func (c *stubClient) Events() <-chan transport.Event             { return c.events }
func (c *stubClient) Send(context.Context, string, string) error { return nil }
func (c *stubClient) Liveness(context.Context) error             { return errors.New("no pong") }
func (c *stubClient) Destroy(context.Context) error {
	c.once.Do(func() { close(c.events) })
	return nil
}

type stubFactory struct{}

func (stubFactory) New(context.Context, string) (transport.Client, error) {
	return &stubClient{events: make(chan transport.Event, 1)}, nil
}
func (stubFactory) Purge(context.Context, string) error { return nil }

type memRepo struct {
	mu    sync.Mutex
	saved map[string]*domain.SessionRecord
	down  bool
}

func (r *memRepo) SaveSession(_ context.Context, rec *domain.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		r.saved = make(map[string]*domain.SessionRecord)
	}
	r.saved[rec.ID] = rec
	return nil
}

func (r *memRepo) LoadSessions(context.Context) ([]*domain.SessionRecord, error) { return nil, nil }

func (r *memRepo) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saved, id)
	return nil
}

func (r *memRepo) Ping(context.Context) error {
	if r.down {
		return errors.New("database offline")
	}
	return nil
}

func (r *memRepo) Close() error { return nil }

func newTestRouter(repo *memRepo) http.Handler {
	cfg := &config.Config{
		Port:   "0",
		DBPath: "unused",
		Reconnect: config.ReconnectConfig{
			MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond,
			DisconnectDelay: time.Millisecond, FatalErrorDelay: time.Millisecond,
			LivenessTimeout: 10 * time.Millisecond,
		},
		Gate: config.GateConfig{
			PairingCodeMinInterval: 30 * time.Second,
			FirstConnectWindow:     30 * time.Second,
			OfflineRecoveryCeiling: 24 * time.Hour,
			CatchupBuffer:          5 * time.Minute,
			LongOfflineWindow:      2 * time.Hour,
			MinMessageSpacing:      2 * time.Second,
			MinResponseSpacing:     3 * time.Second,
			DedupCacheSize:         100,
			ChatTrackLimit:         50,
		},
		Delivery: config.DeliveryConfig{ChunkLimit: 4000, MinChunkDelay: time.Millisecond, MaxChunkDelay: 2 * time.Millisecond},
		Shutdown: config.ShutdownConfig{DestroyTimeout: 50 * time.Millisecond, GlobalTimeout: 200 * time.Millisecond},
	}

	reg := registry.New()
	hub := events.NewHub()
	g := gate.New(cfg.Gate, nil, nil, delivery.NewSender(cfg.Delivery), slog.Default())
	sup := supervisor.New(context.Background(), cfg, reg, repo, stubFactory{}, hub, g, slog.Default())

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	NewSessionHandler(sup, reg, repo, hub).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: identity.OwnerCookieName, Value: testOwnerCookie})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionCRUD(t *testing.T) {
	t.Parallel()

	repo := &memRepo{}
	router := newTestRouter(repo)

	// Create.
	rec := doRequest(t, router, http.MethodPost, "/api/sessions", `{"name":"My Bot"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.SessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("create: bad response body: %v", err)
	}
	if created.ID == "" || created.Name != "My Bot" {
		t.Fatalf("create: unexpected view %+v", created)
	}
	if created.Status != domain.StatusInitializing {
		t.Fatalf("create: expected initializing, got %s", created.Status)
	}

	// List shows it for the same owner.
	rec = doRequest(t, router, http.MethodGet, "/api/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var views []domain.SessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("list: bad response body: %v", err)
	}
	if len(views) != 1 || views[0].ID != created.ID {
		t.Fatalf("list: expected the created session, got %+v", views)
	}

	// Get by id.
	rec = doRequest(t, router, http.MethodGet, "/api/sessions/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	// Unknown id is not found.
	rec = doRequest(t, router, http.MethodGet, "/api/sessions/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown: expected 404, got %d", rec.Code)
	}

	// Stop is idempotent.
	for i := 0; i < 2; i++ {
		rec = doRequest(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/stop", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("stop %d: expected 204, got %d", i+1, rec.Code)
		}
	}
	rec = doRequest(t, router, http.MethodPost, "/api/sessions/no-such-id/stop", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("stop unknown: expected 204, got %d", rec.Code)
	}

	// Delete, then the list is empty and delete stays idempotent.
	rec = doRequest(t, router, http.MethodDelete, "/api/sessions/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodDelete, "/api/sessions/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("repeated delete: expected 204, got %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodGet, "/api/sessions", "")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("list after delete: expected empty array, got %s", body)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&memRepo{})

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", `{"name":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name: expected 400, got %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodPost, "/api/sessions", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestTenantIsolation(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&memRepo{})

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", `{"name":"Mine"}`)
	var created domain.SessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("create: bad response body: %v", err)
	}

	// Another tenant cannot see or act on the session.
	otherCookie := "owner_ffffffffffffffffffffffffffffffff"
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+created.ID, nil)
	req.AddCookie(&http.Cookie{Name: identity.OwnerCookieName, Value: otherCookie})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign get: expected 404, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.ID+"/stop", nil)
	req.AddCookie(&http.Cookie{Name: identity.OwnerCookieName, Value: otherCookie})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign stop: expected 404, got %d", w.Code)
	}
}

func TestHealthReflectsDatabase(t *testing.T) {
	t.Parallel()

	repo := &memRepo{}
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}

	repo.down = true
	rec = doRequest(t, router, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health with database down: expected 503, got %d", rec.Code)
	}
}
