package supervisor

import (
	"context"
	"sync"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/registry"
)

// Shutdown tears every session down gracefully. The shutdown flag
// suppresses all future reconnection scheduling first; each session is
// then handled concurrently: pending timers canceled, current fields
// persisted, transport client destroyed under the per-session bound.
// The whole sweep is capped by ctx (the global shutdown bound); sessions
// still busy when it expires are abandoned and the call returns.
func (s *Supervisor) Shutdown(ctx context.Context) {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("Shutdown initiated", "sessions", s.reg.Len())

	var wg sync.WaitGroup
	for _, sess := range s.reg.All() {
		wg.Add(1)
		go func(sess *registry.Session) {
			defer wg.Done()
			s.teardownForShutdown(ctx, sess)
		}(sess)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Shutdown complete")
	case <-ctx.Done():
		s.logger.Warn("Shutdown bound expired, abandoning remaining teardowns")
	}
}

func (s *Supervisor) teardownForShutdown(ctx context.Context, sess *registry.Session) {
	s.cancelTimers(sess.ID)

	sess.Apply(domain.EventShutdown)
	s.persist(sess)

	dctx, cancel := context.WithTimeout(ctx, s.cfg.Shutdown.DestroyTimeout)
	defer cancel()
	s.destroyClientCtx(dctx, sess.ID)

	s.logger.Info("Session torn down", "session_id", sess.ID)
}
