package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/config"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/delivery"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/gate"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/registry"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/transport"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:   "0",
		DBPath: "unused",
		Reconnect: config.ReconnectConfig{
			MaxAttempts:     3,
			BaseDelay:       5 * time.Millisecond,
			MaxDelay:        40 * time.Millisecond,
			Cooldown:        0,
			DisconnectDelay: 5 * time.Millisecond,
			FatalErrorDelay: 5 * time.Millisecond,
			LivenessTimeout: 20 * time.Millisecond,
		},
		Restore: config.RestoreConfig{
			BaseTimeout:  30 * time.Millisecond,
			TimeoutStep:  10 * time.Millisecond,
			PurgeAfter:   2,
			RebuildAfter: 3,
		},
		Probe: config.ProbeConfig{
			StuckSweepInterval: time.Hour,
			StuckThreshold:     time.Hour,
			KeepAliveInterval:  time.Hour,
			KeepAliveTimeout:   20 * time.Millisecond,
			KeepAliveFailures:  3,
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
		Delivery: config.DeliveryConfig{
			ChunkLimit:    4000,
			MinChunkDelay: time.Millisecond,
			MaxChunkDelay: 2 * time.Millisecond,
		},
		Shutdown: config.ShutdownConfig{
			DestroyTimeout: 50 * time.Millisecond,
			GlobalTimeout:  200 * time.Millisecond,
		},
	}
}

type fakeClient struct {
	mu           sync.Mutex
	events       chan transport.Event
	destroyed    bool
	blockDestroy bool
}

func newFakeClient(blockDestroy bool) *fakeClient {
	return &fakeClient{
		events:       make(chan transport.Event, 16),
		blockDestroy: blockDestroy,
	}
}

func (c *fakeClient) Start(context.Context) error                { return nil }
func (c *fakeClient) Events() <-chan transport.Event             { return c.events }
func (c *fakeClient) Send(context.Context, string, string) error { return nil }
func (c *fakeClient) Liveness(context.Context) error             { return errors.New("no pong") }

func (c *fakeClient) Destroy(ctx context.Context) error {
	if c.blockDestroy {
		<-ctx.Done()
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.destroyed {
		c.destroyed = true
		close(c.events)
	}
	return nil
}

func (c *fakeClient) emit(ev transport.Event) { c.events <- ev }

type fakeFactory struct {
	mu           sync.Mutex
	clients      []*fakeClient
	calls        int
	purges       int
	failNew      bool
	blockDestroy bool
}

func (f *fakeFactory) New(_ context.Context, _ string) (transport.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNew {
		return nil, errors.New("bridge unavailable")
	}
	c := newFakeClient(f.blockDestroy)
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeFactory) Purge(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
	return nil
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFactory) purgeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purges
}

func (f *fakeFactory) last() *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

type fakeRepo struct {
	mu        sync.Mutex
	saved     map[string]*domain.SessionRecord
	deletes   int
	panicNext bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{saved: make(map[string]*domain.SessionRecord)}
}

func (r *fakeRepo) panicOnNextSave() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panicNext = true
}

func (r *fakeRepo) SaveSession(_ context.Context, rec *domain.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panicNext {
		r.panicNext = false
		panic("session store corrupted")
	}
	r.saved[rec.ID] = rec
	return nil
}

func (r *fakeRepo) LoadSessions(context.Context) ([]*domain.SessionRecord, error) {
	return nil, nil
}

func (r *fakeRepo) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saved, id)
	r.deletes++
	return nil
}

func (r *fakeRepo) Ping(context.Context) error { return nil }
func (r *fakeRepo) Close() error               { return nil }

func (r *fakeRepo) savedStatus(id string) domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.saved[id]; ok {
		return rec.Status
	}
	return ""
}

func newTestSupervisor(factory *fakeFactory) (*Supervisor, *fakeRepo) {
	cfg := testConfig()
	repo := newFakeRepo()
	g := gate.New(cfg.Gate, nil, nil, delivery.NewSender(cfg.Delivery), slog.Default())
	sup := New(context.Background(), cfg, registry.New(), repo, factory, nil, g, slog.Default())
	return sup, repo
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestCreateSessionLifecycle(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	sup, repo := newTestSupervisor(factory)

	id, err := sup.CreateSession(context.Background(), "Test Bot", "assistant", "owner-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sess := sup.reg.Get(id)
	if sess == nil {
		t.Fatal("session not registered")
	}
	if sess.Status() != domain.StatusInitializing {
		t.Fatalf("expected initializing, got %s", sess.Status())
	}

	client := factory.last()
	client.emit(transport.Event{Type: transport.EventPairingCode, PairingCode: "CODE-1"})
	waitFor(t, func() bool { return sess.PairingCode() == "CODE-1" }, "pairing code never recorded")
	if sess.Status() != domain.StatusWaitingForPairing {
		t.Fatalf("expected waiting_for_pairing, got %s", sess.Status())
	}

	// A second code inside the throttle interval is suppressed.
	client.emit(transport.Event{Type: transport.EventPairingCode, PairingCode: "CODE-2"})
	time.Sleep(50 * time.Millisecond)
	if got := sess.PairingCode(); got != "CODE-1" {
		t.Fatalf("throttled pairing code should not replace the current one, got %q", got)
	}

	client.emit(transport.Event{Type: transport.EventAuthenticated})
	waitFor(t, func() bool { return sess.Status() == domain.StatusAuthenticated }, "never authenticated")

	client.emit(transport.Event{Type: transport.EventReady, Identity: "5511999990000"})
	waitFor(t, func() bool { return sess.Status() == domain.StatusReady && sess.IsActive() }, "never ready")

	waitFor(t, func() bool { return repo.savedStatus(id) == domain.StatusReady }, "ready state never persisted")
	if sess.PairingCode() != "" {
		t.Fatal("pairing code should clear on ready")
	}
}

func TestDisconnectTriggersReconnect(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	sup, _ := newTestSupervisor(factory)

	id, err := sup.CreateSession(context.Background(), "Bot", "a", "owner-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sess := sup.reg.Get(id)

	first := factory.last()
	first.emit(transport.Event{Type: transport.EventReady, Identity: "x"})
	waitFor(t, func() bool { return sess.Status() == domain.StatusReady }, "never ready")

	first.emit(transport.Event{Type: transport.EventDisconnected, Reason: "network blip"})
	waitFor(t, func() bool { return factory.callCount() >= 2 }, "reconnect never created a new client")

	second := factory.last()
	second.emit(transport.Event{Type: transport.EventReady, Identity: "x"})
	waitFor(t, func() bool { return sess.Status() == domain.StatusReady && sess.IsActive() }, "never ready after reconnect")

	sup.mu.Lock()
	attempts := sup.recon[id].attempts
	sup.mu.Unlock()
	if attempts != 0 {
		t.Fatalf("attempts should reset on ready, got %d", attempts)
	}
}

func TestStopSuppressesReconnect(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	sup, _ := newTestSupervisor(factory)

	id, err := sup.CreateSession(context.Background(), "Bot", "a", "owner-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sess := sup.reg.Get(id)

	factory.last().emit(transport.Event{Type: transport.EventReady, Identity: "x"})
	waitFor(t, func() bool { return sess.Status() == domain.StatusReady }, "never ready")

	if err := sup.StopSession(context.Background(), id); err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}
	if sess.Status() != domain.StatusStopped {
		t.Fatalf("expected stopped, got %s", sess.Status())
	}

	time.Sleep(100 * time.Millisecond)
	if factory.callCount() != 1 {
		t.Fatalf("stopped session must not reconnect, factory calls = %d", factory.callCount())
	}

	// Stopping again, or stopping an unknown id, is a no-op.
	if err := sup.StopSession(context.Background(), id); err != nil {
		t.Fatalf("repeated stop should be a no-op: %v", err)
	}
	if err := sup.StopSession(context.Background(), "no-such-session"); err != nil {
		t.Fatalf("stopping unknown session should be a no-op: %v", err)
	}
}

func TestAuthFailureDoesNotRetry(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	sup, repo := newTestSupervisor(factory)

	id, err := sup.CreateSession(context.Background(), "Bot", "a", "owner-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sess := sup.reg.Get(id)

	factory.last().emit(transport.Event{Type: transport.EventAuthFailed, Reason: "pairing rejected"})
	waitFor(t, func() bool { return sess.Status() == domain.StatusAuthFailed }, "never auth_failed")

	time.Sleep(100 * time.Millisecond)
	if factory.callCount() != 1 {
		t.Fatalf("auth failure must not auto-retry, factory calls = %d", factory.callCount())
	}
	if repo.savedStatus(id) != domain.StatusAuthFailed {
		t.Fatalf("auth_failed never persisted, got %s", repo.savedStatus(id))
	}
}

func TestReconnectionAttemptsExhausted(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{failNew: true}
	sup, _ := newTestSupervisor(factory)

	id, err := sup.CreateSession(context.Background(), "Bot", "a", "owner-1")
	if err == nil {
		t.Fatal("expected create error when the bridge is unavailable")
	}
	sess := sup.reg.Get(id)
	if sess.Status() != domain.StatusError {
		t.Fatalf("failed create should leave the session in error, got %s", sess.Status())
	}

	sup.scheduleReconnect(sess, "bridge unavailable")
	waitFor(t, func() bool {
		return sess.View().LastError == "reconnection attempts exhausted"
	}, "attempts never exhausted")

	sup.mu.Lock()
	pending := sup.recon[id].pendingTimer != nil
	sup.mu.Unlock()
	if pending {
		t.Fatal("no further reconnection may be pending after exhaustion")
	}
}

func TestReconnectCooldownDelaysNextAttempt(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{failNew: true}
	sup, _ := newTestSupervisor(factory)
	sup.cfg.Reconnect.Cooldown = time.Second

	id, err := sup.CreateSession(context.Background(), "Bot", "a", "owner-1")
	if err == nil {
		t.Fatal("expected create error when the bridge is unavailable")
	}
	sess := sup.reg.Get(id)

	start := time.Now()
	sup.scheduleReconnect(sess, "bridge unavailable")

	// The first attempt fires after the short backoff and fails; its
	// immediate reschedule lands inside the cooldown.
	waitFor(t, func() bool { return factory.callCount() == 2 }, "first reconnection attempt never ran")
	waitFor(t, func() bool {
		sup.mu.Lock()
		defer sup.mu.Unlock()
		return sup.recon[id].pendingTimer != nil
	}, "re-delay timer never armed inside the cooldown")

	sup.mu.Lock()
	attempts := sup.recon[id].attempts
	sup.mu.Unlock()
	if attempts != 1 {
		t.Fatalf("a reschedule inside the cooldown must not consume an attempt, got %d", attempts)
	}

	// The second attempt may only run once the cooldown has elapsed.
	waitFor(t, func() bool { return factory.callCount() >= 3 }, "second attempt never ran")
	if elapsed := time.Since(start); elapsed < sup.cfg.Reconnect.Cooldown {
		t.Fatalf("attempts ran %v apart, less than the %v cooldown", elapsed, sup.cfg.Reconnect.Cooldown)
	}
}

func TestBackoffDelayMonotonicAndCapped(t *testing.T) {
	t.Parallel()

	base := 2 * time.Second
	max := 10 * time.Minute

	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		raw := base << (attempt - 1)
		if raw > max || raw <= 0 {
			raw = max
		}
		got := backoffDelay(base, max, attempt)

		lo := time.Duration(float64(raw) * 0.9)
		hi := time.Duration(float64(raw) * 1.1)
		if got < lo || got > hi {
			t.Fatalf("attempt %d: delay %v outside jitter bounds [%v, %v]", attempt, got, lo, hi)
		}
		if got < time.Duration(float64(prev)*0.8) {
			t.Fatalf("attempt %d: delay %v decreased too far below previous %v", attempt, got, prev)
		}
		prev = got
	}
}

func TestRestorationPurgesAfterRepeatedTimeouts(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	sup, _ := newTestSupervisor(factory)

	last := time.Now().Add(-time.Hour)
	rec := &domain.SessionRecord{
		ID:             "restore-1",
		DisplayName:    "Bot",
		AssistantLabel: "a",
		OwnerID:        "owner-1",
		Status:         domain.StatusReady,
		PhoneIdentity:  "5511999990000",
		LastActivityAt: &last,
		CreatedAt:      time.Now().Add(-24 * time.Hour),
	}
	if err := sup.RestoreSession(context.Background(), rec); err != nil {
		t.Fatalf("RestoreSession failed: %v", err)
	}
	sess := sup.reg.Get("restore-1")
	if !sess.IsRestoring() {
		t.Fatal("session should be restoring")
	}

	// No ready event arrives; deadlines expire until the purge threshold.
	waitFor(t, func() bool { return factory.purgeCount() >= 1 }, "identity never purged")

	factory.last().emit(transport.Event{Type: transport.EventReady, Identity: "5511999990000"})
	waitFor(t, func() bool { return sess.Status() == domain.StatusReady && !sess.IsRestoring() }, "never recovered")
}

func TestShutdownBoundedByGlobalTimeout(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{blockDestroy: true}
	sup, _ := newTestSupervisor(factory)

	if _, err := sup.CreateSession(context.Background(), "Bot", "a", "owner-1"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), sup.cfg.Shutdown.GlobalTimeout)
	defer cancel()
	sup.Shutdown(ctx)

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("shutdown exceeded its bound: %v", elapsed)
	}
	if !sup.shuttingDown.Load() {
		t.Fatal("shutdown flag not set")
	}

	// No reconnection may be scheduled once shutdown started.
	before := factory.callCount()
	for _, sess := range sup.reg.All() {
		sup.scheduleReconnect(sess, "late disconnect")
	}
	time.Sleep(100 * time.Millisecond)
	if factory.callCount() != before {
		t.Fatal("reconnection scheduled during shutdown")
	}
}

func TestDeleteSessionRemovesEverything(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	sup, repo := newTestSupervisor(factory)

	id, err := sup.CreateSession(context.Background(), "Bot", "a", "owner-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := sup.DeleteSession(context.Background(), id); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if sup.reg.Get(id) != nil {
		t.Fatal("session still registered after delete")
	}
	if repo.savedStatus(id) != "" {
		t.Fatal("persisted record still present after delete")
	}
	if factory.purgeCount() != 1 {
		t.Fatalf("expected 1 identity purge, got %d", factory.purgeCount())
	}

	if err := sup.DeleteSession(context.Background(), id); err != nil {
		t.Fatalf("deleting twice should be a no-op: %v", err)
	}
}

func TestEventLoopPanicEscalatesToShutdown(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	sup, repo := newTestSupervisor(factory)

	id, err := sup.CreateSession(context.Background(), "Bot", "a", "owner-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sess := sup.reg.Get(id)

	repo.panicOnNextSave()
	factory.last().emit(transport.Event{Type: transport.EventReady, Identity: "x"})

	select {
	case <-sup.Fatal():
	case <-time.After(3 * time.Second):
		t.Fatal("panic in the event loop never escalated to a fatal shutdown")
	}
	if !sup.shuttingDown.Load() {
		t.Fatal("shutdown flag not latched after escalation")
	}

	// Once fatal, no further reconnection may be scheduled.
	before := factory.callCount()
	sup.scheduleReconnect(sess, "late disconnect")
	time.Sleep(50 * time.Millisecond)
	if factory.callCount() != before {
		t.Fatal("reconnection scheduled after fatal shutdown")
	}
}

func TestStuckSweepMeasuresFromCreation(t *testing.T) {
	t.Parallel()

	factory := &fakeFactory{}
	sup, _ := newTestSupervisor(factory)
	sup.cfg.Probe.StuckThreshold = 50 * time.Millisecond

	if _, err := sup.CreateSession(context.Background(), "Bot", "a", "owner-1"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// A fresh session has no recorded activity yet; it is not stuck.
	sup.sweepStuck()
	if factory.callCount() != 1 {
		t.Fatalf("fresh session must not be recycled, factory calls = %d", factory.callCount())
	}

	// Past the threshold with no progress it is recycled.
	time.Sleep(80 * time.Millisecond)
	sup.sweepStuck()
	waitFor(t, func() bool { return factory.callCount() >= 2 }, "stuck session never recycled")
}
