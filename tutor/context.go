// Package tutor implements the tutoring core: per-session conversation
// state, the learning-plan tracker, the scaffolding state machine, intent
// classification, and the per-turn orchestration engine.
package tutor

import (
	"math"
	"time"
)

// Profile identifies the learner audience a session is tuned for.
type Profile string

const (
	ProfileCJStudent     Profile = "cj_student"
	ProfilePoliceOfficer Profile = "police_officer"
	ProfileGeneral       Profile = "general"
)

// ParseProfile validates a profile label. Unknown labels are rejected;
// callers decide whether to default to ProfileGeneral.
func ParseProfile(s string) (Profile, bool) {
	switch Profile(s) {
	case ProfileCJStudent, ProfilePoliceOfficer, ProfileGeneral:
		return Profile(s), true
	}
	return "", false
}

// ScaffoldingLevel is the degree of instructional support, from worked
// examples (high) to open-ended challenge (low).
type ScaffoldingLevel string

const (
	HighSupport   ScaffoldingLevel = "high_support"   // I Do
	GuidedSupport ScaffoldingLevel = "guided_support" // We Do
	LowSupport    ScaffoldingLevel = "low_support"    // You Do
)

// TurnRecord is one completed conversation turn.
type TurnRecord struct {
	UserInput       string    `json:"user_input"`
	InternalThought string    `json:"internal_thought"`
	Response        string    `json:"response"`
	Scaffolding     string    `json:"scaffolding_level"`
	PlanStep        int       `json:"plan_step"`
	Timestamp       time.Time `json:"timestamp"`
}

// ConversationState holds all per-session pedagogical state. It is owned
// by the Store; the engine mutates it only while holding the session lock.
type ConversationState struct {
	SessionID         string
	Profile           Profile
	CurrentTopic      string
	LearningObjective string
	KnowledgeLevel    int // 1-5 scale
	Scaffolding       ScaffoldingLevel
	LastQuestion      string
	History           []TurnRecord

	// LearningPlan is nil when no plan is active.
	LearningPlan    []string
	CurrentPlanStep int
	// StepCompletion always has len(LearningPlan) entries while a plan exists.
	StepCompletion []bool
	PlanCreatedAt  time.Time
	// PlanJustCompleted is visible for exactly the turn in which the final
	// step was marked complete; it is reset at the start of the next turn.
	PlanJustCompleted bool

	UpdatedAt time.Time
}

// newConversationState creates a fresh session with defaults.
func newConversationState(sessionID string, profile Profile, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID:      sessionID,
		Profile:        profile,
		KnowledgeLevel: 1,
		Scaffolding:    HighSupport,
		UpdatedAt:      now,
	}
}

// HasPlan reports whether a learning plan is active.
func (s *ConversationState) HasPlan() bool {
	return len(s.LearningPlan) > 0
}

// PlanProgress returns the percentage of completed plan steps, rounded to
// one decimal place. Returns 0 with no active plan.
func (s *ConversationState) PlanProgress() float64 {
	if !s.HasPlan() {
		return 0
	}
	completed := 0
	for _, done := range s.StepCompletion {
		if done {
			completed++
		}
	}
	pct := float64(completed) / float64(len(s.LearningPlan)) * 100
	return math.Round(pct*10) / 10
}

// DisplayPlanStep returns the 1-indexed current step for presentation,
// or 0 when no plan is active.
func (s *ConversationState) DisplayPlanStep() int {
	if !s.HasPlan() {
		return 0
	}
	return s.CurrentPlanStep + 1
}
