package gate

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/config"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/convo"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/delivery"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/registry"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/transport"
)

func testGateConfig() config.GateConfig {
	return config.GateConfig{
		PairingCodeMinInterval: 30 * time.Second,
		FirstConnectWindow:     30 * time.Second,
		OfflineRecoveryCeiling: 24 * time.Hour,
		CatchupBuffer:          5 * time.Minute,
		LongOfflineWindow:      2 * time.Hour,
		MinMessageSpacing:      2 * time.Second,
		MinResponseSpacing:     3 * time.Second,
		DedupCacheSize:         100,
		ChatTrackLimit:         50,
	}
}

func newTestGate(proc convo.Processor) *Gate {
	sender := delivery.NewSender(config.DeliveryConfig{
		ChunkLimit:    4000,
		MinChunkDelay: time.Millisecond,
		MaxChunkDelay: 2 * time.Millisecond,
	})
	return New(testGateConfig(), proc, nil, sender, slog.Default())
}

func newTestSession() *registry.Session {
	return registry.NewSession("sess-1", "Test Bot", "assistant", "owner-1",
		registry.Limits{DedupCacheSize: 100, ChatTrackLimit: 50})
}

// seedPaired marks the session as previously paired with a known last
// activity time.
func seedPaired(s *registry.Session, lastActivity time.Time) {
	s.Seed(&domain.SessionRecord{
		PhoneIdentity:  "5511999990000",
		LastActivityAt: &lastActivity,
		CreatedAt:      lastActivity.Add(-time.Hour),
	})
}

type fakeClient struct {
	mu   sync.Mutex
	sent []string
}

func (c *fakeClient) Start(context.Context) error    { return nil }
func (c *fakeClient) Events() <-chan transport.Event { return nil }
func (c *fakeClient) Liveness(context.Context) error { return nil }
func (c *fakeClient) Destroy(context.Context) error  { return nil }
func (c *fakeClient) Send(_ context.Context, _, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeClient) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeClient) lastSent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

type fakeProcessor struct {
	mu      sync.Mutex
	calls   int
	reply   *convo.Reply
	err     error
	started chan struct{}
	release chan struct{}
}

func (p *fakeProcessor) Process(context.Context, convo.Request) (*convo.Reply, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}
	return p.reply, p.err
}

func (p *fakeProcessor) Health(context.Context) error { return nil }
func (p *fakeProcessor) Close()                       {}

func (p *fakeProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func textMessage(id, chatID string, ts time.Time) *transport.Message {
	return &transport.Message{
		ID:         id,
		ChatID:     chatID,
		SenderName: "Alice",
		Text:       "hello",
		Timestamp:  ts,
	}
}

func TestAdmitDropsSelfMessages(t *testing.T) {
	t.Parallel()

	g := newTestGate(nil)
	sess := newTestSession()
	now := time.Now()

	msg := textMessage("m1", "chat-1", now)
	msg.FromSelf = true
	if got := g.admit(sess, msg, now); got != dropSelf {
		t.Fatalf("expected self-message drop, got %q", got)
	}
}

func TestAdmitFirstConnectWindow(t *testing.T) {
	t.Parallel()

	g := newTestGate(nil)
	now := time.Now()

	// Never paired: 29s old passes the 30s window, 31s old does not.
	sess := newTestSession()
	if got := g.admit(sess, textMessage("m1", "c", now.Add(-29*time.Second)), now); got != admitted {
		t.Fatalf("29s-old message on first connect should pass, got %q", got)
	}
	if got := g.admit(sess, textMessage("m2", "c", now.Add(-31*time.Second)), now); got != dropStale {
		t.Fatalf("31s-old message on first connect should be stale, got %q", got)
	}
}

func TestAdmitReconnectionCatchup(t *testing.T) {
	t.Parallel()

	g := newTestGate(nil)
	now := time.Now()

	// Offline for 9 minutes: the window is 9min + 5min catch-up.
	sess := newTestSession()
	seedPaired(sess, now.Add(-9*time.Minute))
	if got := g.admit(sess, textMessage("m1", "c", now.Add(-10*time.Minute)), now); got != admitted {
		t.Fatalf("message from the offline gap should pass, got %q", got)
	}
	if got := g.admit(sess, textMessage("m2", "c", now.Add(-3*time.Hour)), now); got != dropStale {
		t.Fatalf("3h-old message after a 9min gap should be stale, got %q", got)
	}
}

func TestAdmitLongOfflineFallback(t *testing.T) {
	t.Parallel()

	g := newTestGate(nil)
	now := time.Now()

	// Offline beyond the recovery ceiling: only the 2h window applies.
	sess := newTestSession()
	seedPaired(sess, now.Add(-30*time.Hour))
	if got := g.admit(sess, textMessage("m1", "c", now.Add(-time.Hour)), now); got != admitted {
		t.Fatalf("1h-old message after long offline should pass, got %q", got)
	}
	if got := g.admit(sess, textMessage("m2", "c", now.Add(-3*time.Hour)), now); got != dropStale {
		t.Fatalf("3h-old message after long offline should be stale, got %q", got)
	}
}

func TestAdmitUnknownActivityFallback(t *testing.T) {
	t.Parallel()

	g := newTestGate(nil)
	now := time.Now()

	// Paired before but no recorded activity: the fixed 2h window
	// applies, not the catch-up window.
	sess := newTestSession()
	sess.Seed(&domain.SessionRecord{
		PhoneIdentity: "5511999990000",
		CreatedAt:     now.Add(-24 * time.Hour),
	})
	if got := g.admit(sess, textMessage("m1", "c", now.Add(-time.Hour)), now); got != admitted {
		t.Fatalf("1h-old message without known activity should pass, got %q", got)
	}
	if got := g.admit(sess, textMessage("m2", "c", now.Add(-3*time.Hour)), now); got != dropStale {
		t.Fatalf("3h-old message without known activity should be stale, got %q", got)
	}
}

func TestAdmitDeduplicates(t *testing.T) {
	t.Parallel()

	g := newTestGate(nil)
	sess := newTestSession()
	now := time.Now()

	msg := textMessage("dup-1", "chat-1", now)
	if got := g.admit(sess, msg, now); got != admitted {
		t.Fatalf("first delivery should pass, got %q", got)
	}
	if got := g.admit(sess, msg, now); got != dropDuplicate {
		t.Fatalf("second delivery should be a duplicate, got %q", got)
	}
}

func TestAdmitSpamCooldown(t *testing.T) {
	t.Parallel()

	g := newTestGate(nil)
	sess := newTestSession()
	now := time.Now()

	// A just-handled exchange in the same chat puts text on cooldown.
	sess.RecordInbound("chat-1", now.Add(-time.Second))
	sess.RecordResponse("chat-1", now.Add(-time.Second))

	if got := g.admit(sess, textMessage("m1", "chat-1", now), now); got != dropSpam {
		t.Fatalf("rapid-fire text should hit the cooldown, got %q", got)
	}

	// Media bypasses the cooldown but not deduplication.
	mediaMsg := textMessage("m2", "chat-1", now)
	mediaMsg.Media = true
	if got := g.admit(sess, mediaMsg, now); got != admitted {
		t.Fatalf("media should bypass the cooldown, got %q", got)
	}
	if got := g.admit(sess, mediaMsg, now); got != dropDuplicate {
		t.Fatalf("replayed media should still deduplicate, got %q", got)
	}

	// A different chat is unaffected.
	if got := g.admit(sess, textMessage("m3", "chat-2", now), now); got != admitted {
		t.Fatalf("other chats should not share the cooldown, got %q", got)
	}
}

func TestHandleFallbackWhenNoProcessor(t *testing.T) {
	t.Parallel()

	g := newTestGate(nil)
	sess := newTestSession()
	client := &fakeClient{}

	g.Handle(context.Background(), sess, client, textMessage("m1", "chat-1", time.Now()))

	if client.lastSent() != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", client.lastSent())
	}
	if sess.Record().MessageCount != 1 {
		t.Fatalf("expected message count 1, got %d", sess.Record().MessageCount)
	}
}

func TestHandleBufferedReplySendsNothing(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{reply: nil}
	g := newTestGate(proc)
	sess := newTestSession()
	client := &fakeClient{}

	g.Handle(context.Background(), sess, client, textMessage("m1", "chat-1", time.Now()))

	if proc.callCount() != 1 {
		t.Fatalf("expected 1 processor call, got %d", proc.callCount())
	}
	if client.sentCount() != 0 {
		t.Fatalf("buffered reply must not send, got %d sends", client.sentCount())
	}
}

func TestHandleSerializesTextButNotMedia(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{
		reply:   &convo.Reply{Text: "answer"},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	g := newTestGate(proc)
	sess := newTestSession()
	client := &fakeClient{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Handle(context.Background(), sess, client, textMessage("m1", "chat-1", time.Now()))
	}()

	select {
	case <-proc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first message never reached the processor")
	}

	// A second text message while the first is in flight is dropped.
	g.Handle(context.Background(), sess, client, textMessage("m2", "chat-1", time.Now()))
	if proc.callCount() != 1 {
		t.Fatalf("second text should be dropped while busy, got %d calls", proc.callCount())
	}

	// Media proceeds concurrently and is acknowledged.
	mediaMsg := textMessage("m3", "chat-2", time.Now())
	mediaMsg.Media = true
	g.Handle(context.Background(), sess, client, mediaMsg)
	if client.lastSent() != mediaAck {
		t.Fatalf("expected media acknowledgment during text processing, got %q", client.lastSent())
	}

	close(proc.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first message never finished")
	}

	// The serialization flag is released; the next text goes through.
	g.Handle(context.Background(), sess, client, textMessage("m4", "chat-3", time.Now()))
	if proc.callCount() != 2 {
		t.Fatalf("expected 2 processor calls after release, got %d", proc.callCount())
	}
}
