package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mission-gateway/internal/models"
)

// endedRetention bounds how long a torn-down session id is remembered so
// requests still in flight for it cannot bring its state back.
const endedRetention = 10 * time.Minute

// SessionStateRegistry keeps the in-memory chat state of every signed-in session.
type SessionStateRegistry struct {
	mu      sync.Mutex
	states  map[string]*SessionState
	expires map[string]time.Time
	ended   map[string]time.Time
	seq     atomic.Uint64
	metrics *MetricsService
	now     func() time.Time
}

// NewSessionStateRegistry constructs an empty registry.
func NewSessionStateRegistry(metrics *MetricsService) *SessionStateRegistry {
	return &SessionStateRegistry{
		states:  make(map[string]*SessionState),
		expires: make(map[string]time.Time),
		ended:   make(map[string]time.Time),
		metrics: metrics,
		now:     time.Now,
	}
}

// For returns the state of sessionID, creating it on first use. A torn-down
// session gets a closed state that is never stored and accepts no writes.
func (r *SessionStateRegistry) For(sessionID string) *SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, gone := r.ended[sessionID]; gone {
		return &SessionState{closed: true}
	}
	state, ok := r.states[sessionID]
	if !ok {
		state = &SessionState{}
		r.states[sessionID] = state
		r.metrics.SetActiveSessions(len(r.states))
	}
	return state
}

// Bind records when sessionID expires so Sweep can reclaim its state.
func (r *SessionStateRegistry) Bind(sessionID string, expiresAt time.Time) {
	if expiresAt.IsZero() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, gone := r.ended[sessionID]; gone {
		return
	}
	r.expires[sessionID] = expiresAt
}

// Teardown discards the state of sessionID. Loads still in flight for it will not commit.
func (r *SessionStateRegistry) Teardown(sessionID string) {
	r.mu.Lock()
	state := r.endLocked(sessionID)
	r.metrics.SetActiveSessions(len(r.states))
	r.mu.Unlock()
	if state != nil {
		state.close()
	}
}

// Sweep tears down every session whose expiry is at or before now and forgets
// ended ids older than the retention window. It returns the number torn down.
func (r *SessionStateRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	for id, deadline := range r.ended {
		if !deadline.After(now) {
			delete(r.ended, id)
		}
	}
	var closed []*SessionState
	swept := 0
	for id, expiresAt := range r.expires {
		if expiresAt.After(now) {
			continue
		}
		swept++
		if state := r.endLocked(id); state != nil {
			closed = append(closed, state)
		}
	}
	r.metrics.SetActiveSessions(len(r.states))
	r.mu.Unlock()

	for _, state := range closed {
		state.close()
	}
	return swept
}

// Run sweeps expired sessions every interval until ctx is done.
func (r *SessionStateRegistry) Run(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				logger.Debug("expired session states swept", zap.Int("count", n))
			}
		}
	}
}

func (r *SessionStateRegistry) endLocked(sessionID string) *SessionState {
	state := r.states[sessionID]
	delete(r.states, sessionID)
	delete(r.expires, sessionID)
	r.ended[sessionID] = r.now().Add(endedRetention)
	return state
}

// Len reports the number of tracked sessions.
func (r *SessionStateRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// NextLocalID returns a token never handed out before by this registry.
func (r *SessionStateRegistry) NextLocalID() string {
	return fmt.Sprintf("local-%d", r.seq.Add(1))
}

// SessionState is the per-session active conversation and its timeline.
type SessionState struct {
	mu         sync.Mutex
	active     *models.Conversation
	timeline   chatTimeline
	generation uint64
	closed     bool
}

// Ticket identifies one load against the session state.
type Ticket uint64

// Active returns a copy of the active conversation, or nil.
func (s *SessionState) Active() *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	conversation := *s.active
	return &conversation
}

// Activate makes conversation the active one and resets the timeline. Pending loads are invalidated.
func (s *SessionState) Activate(conversation models.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.active == nil || s.active.ID != conversation.ID {
		s.timeline = chatTimeline{conversationID: conversation.ID}
	}
	s.active = &conversation
	s.generation++
	return true
}

// Rename updates the active conversation's name when it is id.
func (s *SessionState) Rename(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.ID == id {
		s.active.Name = name
	}
}

// Deactivate clears the active pointer if it refers to id.
func (s *SessionState) Deactivate(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.ID != id {
		return false
	}
	s.active = nil
	s.timeline = chatTimeline{}
	s.generation++
	return true
}

// Begin starts a load and returns its ticket. Any earlier ticket stops being current.
func (s *SessionState) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return Ticket(s.generation)
}

// Current reports whether ticket is still the latest load.
func (s *SessionState) Current(ticket Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && Ticket(s.generation) == ticket
}

// Reconcile commits a history load for conversationID if ticket is still current and
// the conversation is still active.
func (s *SessionState) Reconcile(ticket Ticket, conversationID int64, history []models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || Ticket(s.generation) != ticket || s.timeline.conversationID != conversationID || s.active == nil {
		return false
	}
	s.timeline.reconcile(history)
	return true
}

// Append adds entry to the timeline of conversationID when it is the active conversation.
func (s *SessionState) Append(conversationID int64, entry models.TimelineEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.active == nil || s.timeline.conversationID != conversationID {
		return false
	}
	s.timeline.append(entry)
	return true
}

// Mark sets the delivery state of the pending entry localID.
func (s *SessionState) Mark(localID string, state models.DeliveryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline.mark(localID, state)
}

// Timeline returns a copy of the active conversation's entries.
func (s *SessionState) Timeline() []models.TimelineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.snapshot()
}

func (s *SessionState) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.active = nil
	s.timeline = chatTimeline{}
	s.generation++
}
