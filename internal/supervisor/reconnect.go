package supervisor

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/events"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/registry"
)

// requestReconnect invokes the scheduler after an initial grace delay
// (short for plain disconnects, longer for fatal transport errors).
func (s *Supervisor) requestReconnect(sess *registry.Session, reason string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.scheduleReconnect(sess, reason)
	})
}

// scheduleReconnect is the reconnection scheduler entry point. At most
// one pending reconnection exists per session; the pending-timer handle
// is checked before anything new is armed.
func (s *Supervisor) scheduleReconnect(sess *registry.Session, reason string) {
	if s.shuttingDown.Load() || sess.StopRequested() {
		return
	}

	// A session that still answers its liveness probe does not need the
	// reconnection it was scheduled for.
	if sess.IsActive() {
		if client := s.Client(sess.ID); client != nil {
			ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.Reconnect.LivenessTimeout)
			err := client.Liveness(ctx)
			cancel()
			if err == nil {
				s.logger.Info("Reconnection canceled, session is healthy", "session_id", sess.ID)
				return
			}
		}
	}

	s.mu.Lock()
	rs := s.recon[sess.ID]
	if rs == nil {
		rs = &reconState{}
		s.recon[sess.ID] = rs
	}
	if rs.pendingTimer != nil {
		s.mu.Unlock()
		s.logger.Debug("Reconnection already pending", "session_id", sess.ID)
		return
	}

	now := s.now()
	if !rs.lastAttemptAt.IsZero() {
		if since := now.Sub(rs.lastAttemptAt); since < s.cfg.Reconnect.Cooldown {
			wait := s.cfg.Reconnect.Cooldown - since
			rs.pendingTimer = time.AfterFunc(wait, func() {
				s.clearPendingTimer(sess.ID)
				s.scheduleReconnect(sess, reason)
			})
			s.mu.Unlock()
			s.logger.Info("Reconnection re-delayed by cooldown",
				"session_id", sess.ID, "wait", wait)
			return
		}
	}

	rs.attempts++
	rs.lastAttemptAt = now
	attempts := rs.attempts

	if attempts > s.cfg.Reconnect.MaxAttempts {
		s.mu.Unlock()
		s.logger.Error("Reconnection attempts exhausted",
			"session_id", sess.ID, "attempts", attempts-1)
		sess.MarkDown(domain.EventFatalError, "reconnection attempts exhausted")
		s.persist(sess)
		s.publish(sess, events.SessionUpdated)
		return
	}

	delay := backoffDelay(s.cfg.Reconnect.BaseDelay, s.cfg.Reconnect.MaxDelay, attempts)
	rs.pendingTimer = time.AfterFunc(delay, func() {
		s.clearPendingTimer(sess.ID)
		s.attemptReconnect(sess, reason)
	})
	s.mu.Unlock()

	s.logger.Info("Reconnection scheduled",
		"session_id", sess.ID, "attempt", attempts, "delay", delay, "reason", reason)
}

// backoffDelay computes min(base * 2^(attempt-1), max) with up to ±10%
// jitter. The result never decreases as attempt grows and never exceeds
// max plus its jitter margin.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	jitter := time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
	return delay + jitter
}

// attemptReconnect performs the actual reconnection: tear the old client
// down, attach a fresh one bound to the same identity and let the event
// loop confirm readiness. On failure the scheduler is invoked again.
func (s *Supervisor) attemptReconnect(sess *registry.Session, reason string) {
	if s.shuttingDown.Load() || sess.StopRequested() {
		return
	}

	s.logger.Info("Reconnecting session", "session_id", sess.ID, "reason", reason)
	s.destroyClient(sess.ID)
	sess.MarkDown(domain.EventReconnect, "")
	s.publish(sess, events.SessionUpdated)

	if err := s.attach(s.baseCtx, sess); err != nil {
		s.logger.Error("Reconnection attempt failed", "session_id", sess.ID, "error", err)
		sess.SetLastError(err.Error())
		if !s.shuttingDown.Load() {
			s.scheduleReconnect(sess, err.Error())
		}
		return
	}

	sess.Apply(domain.EventClientAttached)
	s.publish(sess, events.SessionUpdated)
}

func (s *Supervisor) clearPendingTimer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs := s.recon[id]; rs != nil {
		rs.pendingTimer = nil
	}
}

// resetReconnect zeroes the attempt counter after a confirmed ready and
// cancels anything still pending.
func (s *Supervisor) resetReconnect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs := s.recon[id]; rs != nil {
		rs.attempts = 0
		if rs.pendingTimer != nil {
			rs.pendingTimer.Stop()
			rs.pendingTimer = nil
		}
	}
}
