package tutor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StoreConfig holds session store configuration.
type StoreConfig struct {
	// TTL evicts sessions idle longer than this duration.
	TTL time.Duration
	// SweepInterval is how often the eviction sweep runs.
	SweepInterval time.Duration
}

// Store maps session ids to conversation state. It is safe for concurrent
// use across session ids and serializes turns on the same session id: at
// most one engine pass per session is in flight at a time.
type Store struct {
	config StoreConfig
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	// now is injectable for tests.
	now func() time.Time
}

type sessionEntry struct {
	// turnMu serializes read-modify-write turns for one session id.
	turnMu sync.Mutex
	state  *ConversationState
}

// NewStore creates a session store.
func NewStore(cfg StoreConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		config:   cfg,
		logger:   logger,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Acquire returns the session state, creating it on first use, with the
// per-session turn lock held. The caller must call release when done
// mutating the state. profileHint selects the profile for a newly created
// session; unknown hints fall back to the general profile.
func (s *Store) Acquire(sessionID string, profileHint string) (*ConversationState, func()) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		profile, valid := ParseProfile(profileHint)
		if !valid {
			profile = ProfileGeneral
		}
		entry = &sessionEntry{state: newConversationState(sessionID, profile, s.now())}
		s.sessions[sessionID] = entry
	}
	s.mu.Unlock()

	// The turn lock is taken outside the map lock so a slow turn on one
	// session never blocks lookups for other sessions.
	entry.turnMu.Lock()
	return entry.state, entry.turnMu.Unlock
}

// Snapshot returns a copy of selected session fields for status reporting,
// without blocking on an in-flight turn for long. Returns false when the
// session does not exist.
func (s *Store) Snapshot(sessionID string) (StatusSnapshot, bool) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return StatusSnapshot{}, false
	}

	entry.turnMu.Lock()
	defer entry.turnMu.Unlock()
	state := entry.state
	return StatusSnapshot{
		SessionID:          state.SessionID,
		Profile:            state.Profile,
		CurrentTopic:       state.CurrentTopic,
		Scaffolding:        state.Scaffolding,
		ConversationLength: len(state.History),
		HasPlan:            state.HasPlan(),
		PlanProgress:       state.PlanProgress(),
	}, true
}

// StatusSnapshot is a read-only view of a session for the status endpoint.
type StatusSnapshot struct {
	SessionID          string           `json:"session_id"`
	Profile            Profile          `json:"user_profile"`
	CurrentTopic       string           `json:"current_topic"`
	Scaffolding        ScaffoldingLevel `json:"scaffolding_level"`
	ConversationLength int              `json:"conversation_length"`
	HasPlan            bool             `json:"has_plan"`
	PlanProgress       float64          `json:"plan_progress_percentage"`
}

// Reset clears the session's topic focus: learning plan, step state,
// objective, and the stored last question, then sets topic as the new
// current topic (empty is fine). Profile and conversation history are
// preserved. Returns false when the session does not exist.
func (s *Store) Reset(sessionID, topic string) bool {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return false
	}

	entry.turnMu.Lock()
	defer entry.turnMu.Unlock()
	state := entry.state
	state.CurrentTopic = topic
	state.LearningObjective = ""
	state.LastQuestion = ""
	state.LearningPlan = nil
	state.CurrentPlanStep = 0
	state.StepCompletion = nil
	state.PlanCreatedAt = time.Time{}
	state.PlanJustCompleted = false
	state.UpdatedAt = s.now()
	return true
}

// Delete removes a session. A turn already holding the session continues
// on the orphaned state and its result is discarded with the map entry.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// SetProfile updates the profile of an existing session. Returns false
// when the session does not exist; the caller then reports that the
// profile will apply to a future session instead.
func (s *Store) SetProfile(sessionID string, profile Profile) bool {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return false
	}

	entry.turnMu.Lock()
	entry.state.Profile = profile
	entry.turnMu.Unlock()
	return true
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep runs the TTL eviction loop until the context is cancelled.
func (s *Store) Sweep(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.evictIdle(); evicted > 0 {
				s.logger.Info("Evicted idle sessions", "count", evicted)
			}
		}
	}
}

// evictIdle removes sessions idle past the TTL and returns the count.
// Sessions with a turn in flight are skipped; their UpdatedAt will be
// fresh by the next sweep anyway.
func (s *Store) evictIdle() int {
	cutoff := s.now().Add(-s.config.TTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, entry := range s.sessions {
		if !entry.turnMu.TryLock() {
			continue
		}
		idle := entry.state.UpdatedAt.Before(cutoff)
		entry.turnMu.Unlock()

		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
