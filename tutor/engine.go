package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wbq321/CyberCJ-multiagent/llm"
)

// agentType labels responses from the strategic tutor.
const agentType = "cj_mentor_strategic"

// Retriever supplies knowledge-base passages relevant to a query.
type Retriever interface {
	Search(query string, k int) []string
}

// EngineConfig holds per-turn orchestration settings.
type EngineConfig struct {
	// ModelTimeout bounds the tutor model call for one turn.
	ModelTimeout time.Duration
	// Temperature is passed to the model on tutor calls.
	Temperature float64
	// TopK is the number of knowledge passages retrieved per turn.
	TopK int
	// MaxHistory caps the per-session turn history; oldest entries are
	// dropped first.
	MaxHistory int
	// ObserveModelCall, when set, receives the wall-clock duration of
	// every strategic model call, successful or not.
	ObserveModelCall func(d time.Duration)
}

// TimeoutError reports a turn abandoned because the model call exceeded
// the configured deadline. Session state is untouched when this is
// returned.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("model call exceeded %s deadline", e.Timeout)
}

// TurnRequest is one student input addressed to a session.
type TurnRequest struct {
	SessionID   string
	Input       string
	ProfileHint string
}

// TurnResponse is the full envelope returned for one completed turn.
type TurnResponse struct {
	Response         string  `json:"response"`
	AgentType        string  `json:"agent_type"`
	ScaffoldingLevel string  `json:"scaffolding_level"`
	UserProfile      string  `json:"user_profile"`
	KnowledgeLevel   int     `json:"knowledge_level"`
	InputIntent      string  `json:"input_intent"`

	LearningObjective string `json:"learning_objective"`
	CurrentTopic      string `json:"current_topic"`
	SessionID         string `json:"session_id"`

	LearningPlan         []string `json:"learning_plan"`
	CurrentPlanStep      int      `json:"current_plan_step"`
	TotalPlanSteps       int      `json:"total_plan_steps"`
	PlanProgress         float64  `json:"plan_progress_percentage"`
	StepCompletionStatus []bool   `json:"step_completion_status"`
	PlanCreatedAt        string   `json:"plan_created_at,omitempty"`

	InternalThought      string `json:"internal_thought"`
	PlanAdaptation       string `json:"plan_adaptation"`
	ScaffoldingReasoning string `json:"scaffolding_reasoning"`

	ConversationLength int `json:"conversation_length"`
}

// Engine runs the per-turn tutoring pipeline: intent classification,
// knowledge retrieval, the strategic model call, and the atomic state
// update that follows.
type Engine struct {
	store      *Store
	completer  llm.Completer
	classifier *Classifier
	retriever  Retriever
	config     EngineConfig
	logger     *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewEngine creates a tutoring engine. retriever may be nil when no
// knowledge base is loaded.
func NewEngine(store *Store, completer llm.Completer, classifier *Classifier, retriever Retriever, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      store,
		completer:  completer,
		classifier: classifier,
		retriever:  retriever,
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Respond processes one student turn. Concurrent turns on the same
// session are serialized by the store; the session is mutated only after
// the model call resolves, so a timeout leaves it exactly as it was.
func (e *Engine) Respond(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, errors.New("empty input")
	}

	state, release := e.store.Acquire(req.SessionID, req.ProfileHint)
	defer release()

	start := e.now()

	// One deadline bounds all model calls for the turn: the intent
	// classification and the strategic call share the budget.
	turnCtx := ctx
	if e.config.ModelTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, e.config.ModelTimeout)
		defer cancel()
	}

	// Intent uses the question stored by the previous turn, before this
	// turn overwrites it.
	intent := e.classifier.Classify(turnCtx, input, state.LastQuestion)

	passages := e.retrieve(input, state)

	decision, err := e.callModel(ctx, turnCtx, state, input, passages)
	if err != nil {
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) {
			e.logger.Warn("Turn abandoned on model deadline",
				"session_id", req.SessionID,
				"timeout", timeoutErr.Timeout)
			return nil, err
		}
		// Non-timeout model failure degrades to a recovery turn so the
		// student is never left without a response.
		e.logger.Error("Model call failed, using recovery decision",
			"session_id", req.SessionID,
			"error", err)
		decision = recoveryDecision()
	}

	e.applyDecision(state, decision, input, intent)

	e.logger.Info("Turn completed",
		"session_id", req.SessionID,
		"intent", intent,
		"plan_step", state.CurrentPlanStep,
		"scaffolding", state.Scaffolding,
		"duration", e.now().Sub(start))

	return e.envelope(state, decision, intent), nil
}

// retrieve builds the retrieval query from the input plus session focus
// and fetches the top passages.
func (e *Engine) retrieve(input string, state *ConversationState) []string {
	if e.retriever == nil {
		return nil
	}
	query := input
	if state.CurrentTopic != "" {
		query += " " + state.CurrentTopic
	}
	if state.LearningObjective != "" {
		query += " " + state.LearningObjective
	}
	return e.retriever.Search(query, e.config.TopK)
}

// callModel runs the strategic tutor prompt under the turn deadline.
// ctx is the request context; turnCtx carries the deadline, so a
// deadline hit with the request still live is reported as a timeout.
func (e *Engine) callModel(ctx, turnCtx context.Context, state *ConversationState, input string, passages []string) (*Decision, error) {
	temp := e.config.Temperature
	start := e.now()
	resp, err := e.completer.Complete(turnCtx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: buildTutorPrompt(state, input, passages)},
		},
		Temperature: &temp,
	})
	if e.config.ObserveModelCall != nil {
		e.config.ObserveModelCall(e.now().Sub(start))
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Timeout: e.config.ModelTimeout}
		}
		return nil, err
	}

	return ParseDecision(resp.Content), nil
}

// recoveryDecision is applied when the model call fails outright: reset
// to high support with a short re-engagement plan and an apologetic
// response.
func recoveryDecision() *Decision {
	step := 0
	return &Decision{
		InternalThought:      "Model call failed, recovering the conversation",
		Plan:                 []string{"Re-establish the conversation", "Continue learning"},
		PlanStep:             &step,
		PlanAdaptation:       "Recovery plan after a model error",
		Scaffolding:          string(HighSupport),
		ScaffoldingReasoning: "Returning to high support while recovering",
		Response: "I apologize, I had trouble generating a response just now. " +
			"Could you rephrase your question, or tell me what you'd like to explore?",
	}
}

// topicMaxLen caps the free-text topic captured from user input.
const topicMaxLen = 100

// truncateOnRune cuts s to at most max bytes without splitting a UTF-8
// sequence.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// applyDecision commits all turn mutations in one place.
func (e *Engine) applyDecision(state *ConversationState, d *Decision, input string, intent Intent) {
	now := e.now()

	if intent == IntentNewQuestion {
		state.CurrentTopic = truncateOnRune(input, topicMaxLen)
	}

	applyPlanUpdate(state, d.Plan, d.PlanStep, now)
	applyScaffolding(state, d.Scaffolding)
	state.LastQuestion = extractLastQuestion(d.Response)

	state.History = append(state.History, TurnRecord{
		UserInput:       input,
		InternalThought: d.InternalThought,
		Response:        d.Response,
		Scaffolding:     string(state.Scaffolding),
		PlanStep:        state.CurrentPlanStep,
		Timestamp:       now,
	})
	if e.config.MaxHistory > 0 && len(state.History) > e.config.MaxHistory {
		state.History = state.History[len(state.History)-e.config.MaxHistory:]
	}

	state.UpdatedAt = now
}

// envelope assembles the response payload from post-update session state.
func (e *Engine) envelope(state *ConversationState, d *Decision, intent Intent) *TurnResponse {
	resp := &TurnResponse{
		Response:             d.Response,
		AgentType:            agentType,
		ScaffoldingLevel:     string(state.Scaffolding),
		UserProfile:          string(state.Profile),
		KnowledgeLevel:       state.KnowledgeLevel,
		InputIntent:          string(intent),
		LearningObjective:    state.LearningObjective,
		CurrentTopic:         state.CurrentTopic,
		SessionID:            state.SessionID,
		LearningPlan:         state.LearningPlan,
		CurrentPlanStep:      state.DisplayPlanStep(),
		TotalPlanSteps:       len(state.LearningPlan),
		PlanProgress:         state.PlanProgress(),
		StepCompletionStatus: state.StepCompletion,
		InternalThought:      d.InternalThought,
		PlanAdaptation:       d.PlanAdaptation,
		ScaffoldingReasoning: d.ScaffoldingReasoning,
		ConversationLength:   len(state.History),
	}
	if state.HasPlan() && !state.PlanCreatedAt.IsZero() {
		resp.PlanCreatedAt = state.PlanCreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// sentenceEnders terminate the clause preceding a question.
const sentenceEnders = ".!?\n"

// extractLastQuestion pulls the final question clause from a tutor
// response, so the next turn's intent classification has the question the
// student is presumed to be answering. A response with no question mark
// clears the stored question.
func extractLastQuestion(response string) string {
	idx := strings.LastIndexByte(response, '?')
	if idx < 0 {
		return ""
	}
	head := response[:idx]
	start := strings.LastIndexAny(head, sentenceEnders)
	clause := strings.TrimSpace(head[start+1:])
	if clause == "" {
		return ""
	}
	return clause + "?"
}
