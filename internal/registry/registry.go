// Package registry holds the in-memory table of live bot sessions.
//
// The registry is the only shared mutable structure in the process. All
// external references to a session are by id; components never hold a
// session across a recycle. Each Session guards its own fields with a
// mutex, so the supervisor, monitor, prober and gate can touch the same
// record without coordinating beyond these methods.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
)

// Registry maps session id to its owned session record.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for an id, or nil if it does not exist.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Put registers a session record.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	slog.Info("Session registered", "session_id", s.ID, "owner_id", s.OwnerID)
}

// Delete removes a session record. Disconnected sessions stay registered
// for reconnection; only explicit deletion reaches here.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		slog.Info("Session removed", "session_id", id)
	}
}

// All returns a snapshot slice of every registered session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ByOwner returns sessions belonging to one owner.
func (r *Registry) ByOwner(ownerID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Limits bounds the per-session caches.
type Limits struct {
	DedupCacheSize int
	ChatTrackLimit int
}

// Session is one tenant's logical bot connection, independent of the
// transport client currently serving it.
type Session struct {
	ID             string
	DisplayName    string
	AssistantLabel string
	OwnerID        string
	CreatedAt      time.Time

	mu                 sync.Mutex
	status             domain.Status
	isActive           bool
	phoneIdentity      string
	messageCount       int64
	lastActivityAt     time.Time
	pairingCode        string
	lastPairingCodeAt  time.Time
	lastError          string
	hasConnectedBefore bool
	stopRequested      bool

	isRestoring         bool
	restorationAttempts int

	keepAliveFailures int
	lastKeepAliveAt   time.Time

	isProcessing bool

	limits         Limits
	dedup          map[string]struct{}
	dedupFIFO      []string
	chatFIFO       []string
	lastResponseAt map[string]time.Time
	lastInboundAt  map[string]time.Time
}

// NewSession allocates a session record in the initializing state.
func NewSession(id, displayName, assistantLabel, ownerID string, limits Limits) *Session {
	return &Session{
		ID:             id,
		DisplayName:    displayName,
		AssistantLabel: assistantLabel,
		OwnerID:        ownerID,
		CreatedAt:      time.Now(),
		status:         domain.StatusInitializing,
		limits:         limits,
		dedup:          make(map[string]struct{}),
		lastResponseAt: make(map[string]time.Time),
		lastInboundAt:  make(map[string]time.Time),
	}
}

// Seed copies persisted fields onto a freshly allocated session during
// restoration. A prior messaging identity marks the session as having
// connected before, which relaxes the inbound age filter.
func (s *Session) Seed(rec *domain.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phoneIdentity = rec.PhoneIdentity
	s.messageCount = rec.MessageCount
	s.hasConnectedBefore = rec.HasPairedBefore()
	s.CreatedAt = rec.CreatedAt
	if rec.LastActivityAt != nil {
		s.lastActivityAt = *rec.LastActivityAt
	}
}

// Apply runs the pure transition function against the current status and
// commits the result. It returns the new status and whether the event was
// legal from the previous state.
func (s *Session) Apply(ev domain.EventKind) (domain.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := domain.Transition(s.status, ev)
	if ok {
		s.status = next
	}
	return next, ok
}

// Status returns the current lifecycle status.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsActive reports whether the session currently has a live, paired
// transport connection.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isActive
}

// AcceptPairingCode records a new pairing payload if the session is not
// already connected and the previous payload is older than minInterval.
// It returns false when the payload is rejected, leaving the stored code
// untouched.
func (s *Session) AcceptPairingCode(code string, minInterval time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.StatusReady || s.isActive {
		return false
	}
	if !s.lastPairingCodeAt.IsZero() && now.Sub(s.lastPairingCodeAt) < minInterval {
		return false
	}
	next, ok := domain.Transition(s.status, domain.EventPairingCode)
	if !ok {
		return false
	}
	s.status = next
	s.pairingCode = code
	s.lastPairingCodeAt = now
	return true
}

// MarkAuthenticated records pairing acceptance and clears the last error.
func (s *Session) MarkAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := domain.Transition(s.status, domain.EventAuthenticated)
	if !ok {
		return false
	}
	s.status = next
	s.lastError = ""
	s.isRestoring = false
	return true
}

// MarkReady records a completed handshake. The first ready flips
// hasConnectedBefore permanently.
func (s *Session) MarkReady(identity string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := domain.Transition(s.status, domain.EventReady)
	if !ok && s.status != domain.StatusReady {
		return false
	}
	if ok {
		s.status = next
	}
	s.isActive = true
	if identity != "" {
		s.phoneIdentity = identity
	}
	s.hasConnectedBefore = true
	s.lastError = ""
	s.pairingCode = ""
	s.isRestoring = false
	s.restorationAttempts = 0
	s.lastActivityAt = now
	return true
}

// MarkDown applies a disconnect-class event and deactivates the session.
func (s *Session) MarkDown(ev domain.EventKind, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := domain.Transition(s.status, ev)
	if !ok {
		return false
	}
	s.status = next
	s.isActive = false
	if reason != "" {
		s.lastError = reason
	}
	return true
}

// SetLastError records an error string without a status change.
func (s *Session) SetLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// RequestStop marks the session as operator-stopped. Pending-timer
// cancellation is the supervisor's job; the flag here suppresses
// reconnection scheduling on the disconnect that follows.
func (s *Session) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = true
	next, ok := domain.Transition(s.status, domain.EventStop)
	if ok {
		s.status = next
	}
	s.isActive = false
}

// ClearStop re-arms a stopped session for restart.
func (s *Session) ClearStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = false
}

// StopRequested reports whether the disconnect in flight was explicit.
func (s *Session) StopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

// BeginRestore flags the session as restoring and returns the attempt
// number (1-based).
func (s *Session) BeginRestore() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRestoring = true
	s.restorationAttempts++
	return s.restorationAttempts
}

// EndRestore clears the restoring flag, returning whether it was set.
func (s *Session) EndRestore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.isRestoring
	s.isRestoring = false
	return was
}

// IsRestoring reports whether a restoration is in flight.
func (s *Session) IsRestoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRestoring
}

// RestorationAttempts returns the failed-restoration counter.
func (s *Session) RestorationAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restorationAttempts
}

// ResetRestoration zeroes the restoration counter after a rebuild.
func (s *Session) ResetRestoration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRestoring = false
	s.restorationAttempts = 0
}

// KeepAliveOK resets the consecutive-failure counter.
func (s *Session) KeepAliveOK(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepAliveFailures = 0
	s.lastKeepAliveAt = now
}

// KeepAliveFail increments and returns the consecutive-failure counter.
func (s *Session) KeepAliveFail() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepAliveFailures++
	return s.keepAliveFailures
}

// ResetKeepAlive zeroes the failure counter before a preventive reconnect.
func (s *Session) ResetKeepAlive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepAliveFailures = 0
}

// Seen reports whether a message id was already processed, inserting it
// otherwise. The cache is FIFO-bounded; capacity is enforced on every
// insert.
func (s *Session) Seen(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.dedup[messageID]; dup {
		return true
	}
	s.dedup[messageID] = struct{}{}
	s.dedupFIFO = append(s.dedupFIFO, messageID)
	for len(s.dedupFIFO) > s.limits.DedupCacheSize {
		oldest := s.dedupFIFO[0]
		s.dedupFIFO = s.dedupFIFO[1:]
		delete(s.dedup, oldest)
	}
	return false
}

// DedupSize returns the current dedup cache size.
func (s *Session) DedupSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dedup)
}

// OnSpamCooldown reports whether a non-media message in chatID should be
// dropped: the previous inbound message in that chat is younger than
// minMessageSpacing and the bot's last response there is younger than
// minResponseSpacing.
func (s *Session) OnSpamCooldown(chatID string, now time.Time, minMessageSpacing, minResponseSpacing time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lastIn, okIn := s.lastInboundAt[chatID]
	lastResp, okResp := s.lastResponseAt[chatID]
	return okIn && okResp &&
		now.Sub(lastIn) < minMessageSpacing &&
		now.Sub(lastResp) < minResponseSpacing
}

// BeginProcessing marks the session busy for serialized (non-media)
// handling. It returns false when a message is already in flight.
func (s *Session) BeginProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isProcessing {
		return false
	}
	s.isProcessing = true
	return true
}

// EndProcessing releases the serialization flag.
func (s *Session) EndProcessing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isProcessing = false
}

// RecordInbound bumps the message counter, the activity timestamp and the
// chat's last-inbound time for a message that passed the gate.
func (s *Session) RecordInbound(chatID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCount++
	s.lastActivityAt = now
	s.touchChatLocked(chatID)
	s.lastInboundAt[chatID] = now
}

// RecordResponse stamps the chat's last-response time after the handler
// replied.
func (s *Session) RecordResponse(chatID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchChatLocked(chatID)
	s.lastResponseAt[chatID] = now
}

// touchChatLocked keeps the chat tracking maps bounded, evicting the
// oldest chat's cooldown and last-inbound entries together.
func (s *Session) touchChatLocked(chatID string) {
	_, knownIn := s.lastInboundAt[chatID]
	_, knownResp := s.lastResponseAt[chatID]
	if knownIn || knownResp {
		return
	}
	s.chatFIFO = append(s.chatFIFO, chatID)
	for len(s.chatFIFO) > s.limits.ChatTrackLimit {
		oldest := s.chatFIFO[0]
		s.chatFIFO = s.chatFIFO[1:]
		delete(s.lastResponseAt, oldest)
		delete(s.lastInboundAt, oldest)
	}
}

// TrackedChats returns the number of chats with cooldown state.
func (s *Session) TrackedChats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chatFIFO)
}

// AgePolicy returns the inputs the gate's age filter needs in one
// consistent read.
func (s *Session) AgePolicy() (hasConnectedBefore bool, lastActivityAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasConnectedBefore, s.lastActivityAt
}

// Touch updates the activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityAt = now
}

// LastActivityAt returns the last activity timestamp.
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

// PairingCode returns the current pairing payload, empty once paired.
func (s *Session) PairingCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairingCode
}

// Record returns the persistable projection of the session.
func (s *Session) Record() *domain.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &domain.SessionRecord{
		ID:             s.ID,
		DisplayName:    s.DisplayName,
		AssistantLabel: s.AssistantLabel,
		OwnerID:        s.OwnerID,
		Status:         s.status,
		PhoneIdentity:  s.phoneIdentity,
		IsActive:       s.isActive,
		MessageCount:   s.messageCount,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      time.Now(),
	}
	if !s.lastActivityAt.IsZero() {
		t := s.lastActivityAt
		rec.LastActivityAt = &t
	}
	return rec
}

// View returns the public projection of the session.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := domain.SessionView{
		ID:            s.ID,
		Name:          s.DisplayName,
		Status:        s.status,
		PhoneIdentity: s.phoneIdentity,
		IsActive:      s.isActive,
		MessageCount:  s.messageCount,
		CreatedAt:     s.CreatedAt,
		PairingCode:   s.pairingCode,
		LastError:     s.lastError,
	}
	if !s.lastActivityAt.IsZero() {
		t := s.lastActivityAt
		v.LastActivityAt = &t
	}
	return v
}
