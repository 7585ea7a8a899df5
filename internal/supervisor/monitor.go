package supervisor

import (
	"context"
	"time"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
)

// RunStuckMonitor sweeps for sessions held in initializing beyond the
// configured threshold and recycles them. Blocks until ctx is canceled.
func (s *Supervisor) RunStuckMonitor(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Probe.StuckSweepInterval)
	defer ticker.Stop()

	s.logger.Info("Stuck-state monitor started", "interval", s.cfg.Probe.StuckSweepInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStuck()
		}
	}
}

func (s *Supervisor) sweepStuck() {
	if s.shuttingDown.Load() {
		return
	}

	now := s.now()
	for _, sess := range s.reg.All() {
		if sess.Status() != domain.StatusInitializing {
			continue
		}
		// A session that never saw activity is measured from creation.
		ref := sess.LastActivityAt()
		if ref.IsZero() {
			ref = sess.CreatedAt
		}
		stuck := now.Sub(ref)
		if stuck <= s.cfg.Probe.StuckThreshold {
			continue
		}

		s.logger.Warn("Session stuck in initializing, recycling",
			"session_id", sess.ID, "stuck_for", stuck)

		// Single-session teardown, then a scheduler-driven recovery.
		s.cancelTimers(sess.ID)
		s.destroyClient(sess.ID)
		s.persist(sess)
		s.scheduleReconnect(sess, "stuck in initializing")
	}
}

// RunKeepAliveProber periodically probes ready sessions and triggers a
// preventive reconnect after repeated probe failures. Blocks until ctx
// is canceled.
func (s *Supervisor) RunKeepAliveProber(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Probe.KeepAliveInterval)
	defer ticker.Stop()

	s.logger.Info("Keep-alive prober started", "interval", s.cfg.Probe.KeepAliveInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probeAll(ctx)
		}
	}
}

func (s *Supervisor) probeAll(ctx context.Context) {
	if s.shuttingDown.Load() {
		return
	}

	for _, sess := range s.reg.All() {
		if sess.Status() != domain.StatusReady || !sess.IsActive() {
			continue
		}
		client := s.Client(sess.ID)
		if client == nil {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, s.cfg.Probe.KeepAliveTimeout)
		err := client.Liveness(probeCtx)
		cancel()

		if err == nil {
			sess.KeepAliveOK(s.now())
			continue
		}

		failures := sess.KeepAliveFail()
		s.logger.Warn("Keep-alive probe failed",
			"session_id", sess.ID, "consecutive_failures", failures, "error", err)

		if failures >= s.cfg.Probe.KeepAliveFailures {
			sess.ResetKeepAlive()
			s.logger.Warn("Keep-alive failures exceeded, preventive reconnect",
				"session_id", sess.ID)
			s.scheduleReconnect(sess, "keep-alive probe failures")
		}
	}
}
