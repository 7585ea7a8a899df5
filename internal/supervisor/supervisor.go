// Package supervisor owns the lifecycle of bot sessions: creation,
// restoration, transport event handling, reconnection scheduling, health
// probing and graceful shutdown.
//
// Each session's transport events are consumed by one goroutine, so a
// single session's lifecycle is processed in arrival order. Recovery
// sequences are exclusive per session: a pending reconnection timer is
// checked and cleared before a new one may be scheduled.
package supervisor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/config"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/events"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/gate"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/registry"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/store"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/transport"
)

// reconState tracks one session's reconnection bookkeeping. Access is
// guarded by the supervisor mutex.
type reconState struct {
	attempts      int
	lastAttemptAt time.Time
	pendingTimer  *time.Timer
}

// Supervisor coordinates sessions, their transport clients and every
// recovery mechanism around them.
type Supervisor struct {
	cfg       *config.Config
	reg       *registry.Registry
	repo      store.Repository
	factory   transport.Factory
	publisher events.Publisher
	gate      *gate.Gate
	logger    *slog.Logger
	now       func() time.Time

	baseCtx context.Context

	mu       sync.Mutex
	clients  map[string]transport.Client
	recon    map[string]*reconState
	restores map[string]*time.Timer

	shuttingDown atomic.Bool
	wg           sync.WaitGroup

	fatalOnce sync.Once
	fatal     chan struct{}
}

// New creates a Supervisor. baseCtx bounds all background work; it is
// usually the process context.
func New(baseCtx context.Context, cfg *config.Config, reg *registry.Registry, repo store.Repository, factory transport.Factory, publisher events.Publisher, g *gate.Gate, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:       cfg,
		reg:       reg,
		repo:      repo,
		factory:   factory,
		publisher: publisher,
		gate:      g,
		logger:    logger,
		now:       time.Now,
		baseCtx:   baseCtx,
		clients:   make(map[string]transport.Client),
		recon:     make(map[string]*reconState),
		restores:  make(map[string]*time.Timer),
		fatal:     make(chan struct{}),
	}
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func (s *Supervisor) limits() registry.Limits {
	return registry.Limits{
		DedupCacheSize: s.cfg.Gate.DedupCacheSize,
		ChatTrackLimit: s.cfg.Gate.ChatTrackLimit,
	}
}

// CreateSession allocates, persists and connects a new session. The
// session id is returned even when the transport client failed to come
// up; in that case the session is left in the error state and the error
// is surfaced alongside the id.
func (s *Supervisor) CreateSession(ctx context.Context, displayName, assistantLabel, ownerID string) (string, error) {
	id := newSessionID()
	sess := registry.NewSession(id, displayName, assistantLabel, ownerID, s.limits())
	s.reg.Put(sess)
	s.persist(sess)
	s.publish(sess, events.SessionCreated)

	if err := s.attach(ctx, sess); err != nil {
		sess.MarkDown(domain.EventFatalError, err.Error())
		s.persist(sess)
		s.publish(sess, events.SessionUpdated)
		return id, fmt.Errorf("connect session %s: %w", id, err)
	}
	return id, nil
}

// RestoreSession reconnects a persisted session after a process restart.
// Restoration runs under a growing deadline per attempt; see
// restoreDeadline for the recycle policy when it expires.
func (s *Supervisor) RestoreSession(ctx context.Context, rec *domain.SessionRecord) error {
	sess := registry.NewSession(rec.ID, rec.DisplayName, rec.AssistantLabel, rec.OwnerID, s.limits())
	sess.Seed(rec)
	s.reg.Put(sess)

	return s.restoreAttempt(ctx, sess)
}

// restoreAttempt runs one restoration cycle: connect, then arm the
// force-recycle deadline.
func (s *Supervisor) restoreAttempt(ctx context.Context, sess *registry.Session) error {
	attempt := sess.BeginRestore()

	if attempt > s.cfg.Restore.RebuildAfter {
		return s.rebuildSession(ctx, sess)
	}
	if attempt > s.cfg.Restore.PurgeAfter {
		s.logger.Warn("Purging session identity before restoration retry",
			"session_id", sess.ID, "attempt", attempt)
		if err := s.factory.Purge(ctx, sess.ID); err != nil {
			s.logger.Warn("Identity purge failed", "session_id", sess.ID, "error", err)
		}
	}

	if err := s.attach(ctx, sess); err != nil {
		sess.EndRestore()
		sess.SetLastError(err.Error())
		s.logger.Error("Restoration attach failed", "session_id", sess.ID, "attempt", attempt, "error", err)
		s.scheduleReconnect(sess, err.Error())
		return err
	}

	s.armRestoreDeadline(sess, attempt)
	return nil
}

// armRestoreDeadline schedules the force-recycle that fires when neither
// authenticated nor ready arrives within the attempt's deadline.
func (s *Supervisor) armRestoreDeadline(sess *registry.Session, attempt int) {
	deadline := s.cfg.Restore.BaseTimeout + time.Duration(attempt)*s.cfg.Restore.TimeoutStep

	s.mu.Lock()
	if old := s.restores[sess.ID]; old != nil {
		old.Stop()
	}
	s.restores[sess.ID] = time.AfterFunc(deadline, func() {
		s.onRestoreTimeout(sess)
	})
	s.mu.Unlock()

	s.logger.Info("Restoration deadline armed",
		"session_id", sess.ID, "attempt", attempt, "deadline", deadline)
}

func (s *Supervisor) onRestoreTimeout(sess *registry.Session) {
	if s.shuttingDown.Load() {
		return
	}
	if !sess.EndRestore() {
		// A ready or authenticated event landed first.
		return
	}

	s.logger.Warn("Restoration timed out, recycling session",
		"session_id", sess.ID, "attempts", sess.RestorationAttempts())

	s.destroyClient(sess.ID)
	if err := s.restoreAttempt(s.baseCtx, sess); err != nil {
		s.logger.Error("Restoration retry failed", "session_id", sess.ID, "error", err)
	}
}

// rebuildSession tears a repeatedly unrestorable session down and
// recreates it from scratch under the same id and owner.
func (s *Supervisor) rebuildSession(ctx context.Context, sess *registry.Session) error {
	s.logger.Warn("Rebuilding session from scratch after failed restorations",
		"session_id", sess.ID, "attempts", sess.RestorationAttempts())

	s.cancelTimers(sess.ID)
	s.destroyClient(sess.ID)
	if err := s.factory.Purge(ctx, sess.ID); err != nil {
		s.logger.Warn("Identity purge during rebuild failed", "session_id", sess.ID, "error", err)
	}

	sess.ResetRestoration()
	sess.ClearStop()
	sess.Apply(domain.EventClientAttached)

	if err := s.attach(ctx, sess); err != nil {
		sess.MarkDown(domain.EventFatalError, err.Error())
		s.persist(sess)
		s.publish(sess, events.SessionUpdated)
		return fmt.Errorf("rebuild session %s: %w", sess.ID, err)
	}
	s.persist(sess)
	s.publish(sess, events.SessionUpdated)
	return nil
}

// attach creates a fresh transport client for the session, registers it
// as the session's only live client and starts consuming its events.
func (s *Supervisor) attach(ctx context.Context, sess *registry.Session) error {
	client, err := s.factory.New(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("create transport client: %w", err)
	}

	s.mu.Lock()
	old := s.clients[sess.ID]
	s.clients[sess.ID] = client
	s.mu.Unlock()
	if old != nil {
		// Factory.New recycles the bridge; only the socket needs closing.
		dctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.Shutdown.DestroyTimeout)
		_ = old.Destroy(dctx)
		cancel()
	}

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start transport client: %w", err)
	}

	s.wg.Add(1)
	go s.consume(sess, client)
	return nil
}

// consume drains one client's event channel. It exits when the channel
// closes (client destroyed or connection lost).
func (s *Supervisor) consume(sess *registry.Session, client transport.Client) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in session event loop, escalating to shutdown",
				"session_id", sess.ID, "panic", r)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Shutdown.GlobalTimeout)
				defer cancel()
				s.Shutdown(ctx)
				s.fatalOnce.Do(func() { close(s.fatal) })
			}()
		}
	}()

	for ev := range client.Events() {
		s.handleEvent(sess, client, ev)
	}
}

func (s *Supervisor) handleEvent(sess *registry.Session, client transport.Client, ev transport.Event) {
	switch ev.Type {
	case transport.EventPairingCode:
		if sess.AcceptPairingCode(ev.PairingCode, s.cfg.Gate.PairingCodeMinInterval, s.now()) {
			s.logger.Info("Pairing code issued", "session_id", sess.ID)
			s.persist(sess)
			s.publish(sess, events.SessionUpdated)
		} else {
			s.logger.Debug("Pairing code suppressed", "session_id", sess.ID)
		}

	case transport.EventAuthenticated:
		s.cancelRestoreTimer(sess.ID)
		if sess.MarkAuthenticated() {
			s.logger.Info("Session authenticated", "session_id", sess.ID)
			s.publish(sess, events.SessionUpdated)
		}

	case transport.EventReady:
		s.cancelRestoreTimer(sess.ID)
		s.resetReconnect(sess.ID)
		if sess.MarkReady(ev.Identity, s.now()) {
			s.logger.Info("Session ready", "session_id", sess.ID, "identity", ev.Identity)
			s.persist(sess)
			s.publish(sess, events.SessionUpdated)
		}

	case transport.EventAuthFailed:
		s.logger.Warn("Authentication rejected", "session_id", sess.ID, "reason", ev.Reason)
		sess.MarkDown(domain.EventAuthFailed, ev.Reason)
		s.persist(sess)
		s.publish(sess, events.SessionUpdated)
		s.destroyClient(sess.ID)

	case transport.EventDisconnected:
		s.logger.Warn("Session disconnected", "session_id", sess.ID, "reason", ev.Reason)
		sess.MarkDown(domain.EventDisconnected, ev.Reason)
		s.persist(sess)
		s.publish(sess, events.SessionUpdated)
		if !s.shuttingDown.Load() && !sess.StopRequested() {
			s.requestReconnect(sess, ev.Reason, s.cfg.Reconnect.DisconnectDelay)
		}

	case transport.EventError:
		if transport.IsFatalReason(ev.Reason) {
			s.logger.Error("Fatal transport error", "session_id", sess.ID, "reason", ev.Reason)
			sess.MarkDown(domain.EventFatalError, ev.Reason)
			s.persist(sess)
			s.publish(sess, events.SessionUpdated)
			if !s.shuttingDown.Load() && !sess.StopRequested() {
				s.requestReconnect(sess, ev.Reason, s.cfg.Reconnect.FatalErrorDelay)
			}
		} else {
			s.logger.Warn("Transport error", "session_id", sess.ID, "reason", ev.Reason)
			sess.SetLastError(ev.Reason)
			s.publish(sess, events.SessionUpdated)
		}

	case transport.EventStateChanged:
		s.logger.Debug("Bridge state changed", "session_id", sess.ID, "state", ev.State)
		sess.Touch(s.now())

	case transport.EventMessage:
		if ev.Message != nil {
			go s.gate.Handle(s.baseCtx, sess, client, ev.Message)
		}
	}
}

// StopSession halts a session on operator request. A stopped session
// stays registered and persisted; Restart brings it back. Stopping an
// unknown or already stopped session is a no-op.
func (s *Supervisor) StopSession(ctx context.Context, id string) error {
	sess := s.reg.Get(id)
	if sess == nil || sess.Status() == domain.StatusStopped {
		return nil
	}

	sess.RequestStop()
	s.cancelTimers(id)
	s.destroyClientCtx(ctx, id)
	s.persist(sess)
	s.publish(sess, events.SessionUpdated)
	s.logger.Info("Session stopped", "session_id", id)
	return nil
}

// RestartSession reconnects a stopped (or errored) session with the same
// persistent identity. Restarting an unknown session is a no-op.
func (s *Supervisor) RestartSession(ctx context.Context, id string) error {
	sess := s.reg.Get(id)
	if sess == nil {
		return nil
	}

	s.cancelTimers(id)
	s.destroyClientCtx(ctx, id)
	sess.ClearStop()
	sess.Apply(domain.EventClientAttached)

	if err := s.attach(ctx, sess); err != nil {
		sess.MarkDown(domain.EventFatalError, err.Error())
		s.persist(sess)
		s.publish(sess, events.SessionUpdated)
		return fmt.Errorf("restart session %s: %w", id, err)
	}

	s.resetReconnect(id)
	s.persist(sess)
	s.publish(sess, events.SessionUpdated)
	s.logger.Info("Session restarted", "session_id", id)
	return nil
}

// ForcePair resets an auth_failed session for a fresh pairing: identity
// artifacts are purged and a new client is attached. No-op for unknown
// sessions.
func (s *Supervisor) ForcePair(ctx context.Context, id string) error {
	sess := s.reg.Get(id)
	if sess == nil {
		return nil
	}

	s.cancelTimers(id)
	s.destroyClientCtx(ctx, id)
	if err := s.factory.Purge(ctx, id); err != nil {
		s.logger.Warn("Identity purge before fresh pairing failed", "session_id", id, "error", err)
	}

	sess.ClearStop()
	sess.Apply(domain.EventClientAttached)

	if err := s.attach(ctx, sess); err != nil {
		sess.MarkDown(domain.EventFatalError, err.Error())
		s.persist(sess)
		s.publish(sess, events.SessionUpdated)
		return fmt.Errorf("force pair session %s: %w", id, err)
	}

	s.resetReconnect(id)
	s.persist(sess)
	s.publish(sess, events.SessionUpdated)
	s.logger.Info("Session reset for fresh pairing", "session_id", id)
	return nil
}

// DeleteSession removes a session entirely: client, identity artifacts,
// persisted record and registry entry. Deleting an unknown session is a
// no-op.
func (s *Supervisor) DeleteSession(ctx context.Context, id string) error {
	sess := s.reg.Get(id)
	if sess == nil {
		return nil
	}

	sess.RequestStop()
	s.cancelTimers(id)
	s.destroyClientCtx(ctx, id)

	if err := s.factory.Purge(ctx, id); err != nil {
		s.logger.Warn("Identity purge during delete failed", "session_id", id, "error", err)
	}
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		s.logger.Error("Failed to delete persisted session", "session_id", id, "error", err)
	}

	view := sess.View()
	s.reg.Delete(id)
	if s.publisher != nil {
		s.publisher.Publish(sess.OwnerID, events.SessionDeleted, view)
	}
	s.logger.Info("Session deleted", "session_id", id)
	return nil
}

// Fatal is closed once a panic-escalated shutdown has finished tearing
// sessions down. The process owner must exit when it fires; the shutdown
// flag is latched and no reconnection will ever be scheduled again.
func (s *Supervisor) Fatal() <-chan struct{} {
	return s.fatal
}

// Client returns the session's live transport client, or nil.
func (s *Supervisor) Client(id string) transport.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[id]
}

// destroyClient tears down the session's client under the configured
// destroy bound.
func (s *Supervisor) destroyClient(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Shutdown.DestroyTimeout)
	defer cancel()
	s.destroyClientCtx(ctx, id)
}

func (s *Supervisor) destroyClientCtx(ctx context.Context, id string) {
	s.mu.Lock()
	client := s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()
	if client == nil {
		return
	}
	if err := client.Destroy(ctx); err != nil {
		s.logger.Warn("Transport destroy failed, proceeding", "session_id", id, "error", err)
	}
}

// cancelTimers stops the session's pending reconnection and restoration
// timers.
func (s *Supervisor) cancelTimers(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs := s.recon[id]; rs != nil && rs.pendingTimer != nil {
		rs.pendingTimer.Stop()
		rs.pendingTimer = nil
	}
	if t := s.restores[id]; t != nil {
		t.Stop()
		delete(s.restores, id)
	}
}

func (s *Supervisor) cancelRestoreTimer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.restores[id]; t != nil {
		t.Stop()
		delete(s.restores, id)
	}
}

// persist writes the session's current fields. Persistence faults are
// logged; the session keeps operating from memory.
func (s *Supervisor) persist(sess *registry.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.repo.SaveSession(ctx, sess.Record()); err != nil {
		s.logger.Error("Failed to persist session", "session_id", sess.ID, "error", err)
	}
}

func (s *Supervisor) publish(sess *registry.Session, event string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(sess.OwnerID, event, sess.View())
}
