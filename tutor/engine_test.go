package tutor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/wbq321/CyberCJ-multiagent/llm"
	"github.com/wbq321/CyberCJ-multiagent/llm/testutil"
)

const tutorDecisionJSON = `{
  "internal_thought": "New topic, creating a plan",
  "updated_plan": {
    "plan": ["Define phishing", "Spot indicators", "Respond to an incident"],
    "plan_step": 0,
    "plan_adaptation": "Fresh plan for a new topic"
  },
  "scaffolding_adjustment": {
    "new_scaffolding_level": "high_support",
    "reasoning": "New learner on a new topic"
  },
  "response_to_student": "Let's start with the basics. What do you think phishing means?"
}`

type stubRetriever struct {
	queries []string
	result  []string
}

func (r *stubRetriever) Search(query string, k int) []string {
	r.queries = append(r.queries, query)
	return r.result
}

func newTestEngine(mock *testutil.MockClient, retriever Retriever, cfg EngineConfig) (*Engine, *Store) {
	store := NewStore(StoreConfig{TTL: time.Hour, SweepInterval: time.Minute}, nil)
	classifier := NewClassifier(nil, nil)
	engine := NewEngine(store, mock, classifier, retriever, cfg, nil)
	return engine, store
}

func TestEngine_FullTurn(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: tutorDecisionJSON}},
	}
	retriever := &stubRetriever{result: []string{"Phishing is a social engineering attack."}}
	engine, store := newTestEngine(mock, retriever, EngineConfig{TopK: 5, MaxHistory: 100})

	resp, err := engine.Respond(context.Background(), TurnRequest{
		SessionID:   "s1",
		Input:       "teach me about phishing",
		ProfileHint: "cj_student",
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if resp.AgentType != "cj_mentor_strategic" {
		t.Errorf("AgentType = %q", resp.AgentType)
	}
	if resp.InputIntent != string(IntentNewQuestion) {
		t.Errorf("InputIntent = %q, want new_question on first turn", resp.InputIntent)
	}
	if resp.CurrentPlanStep != 1 || resp.TotalPlanSteps != 3 {
		t.Errorf("plan position = %d/%d, want 1/3 (1-indexed)", resp.CurrentPlanStep, resp.TotalPlanSteps)
	}
	if resp.ConversationLength != 1 {
		t.Errorf("ConversationLength = %d, want 1", resp.ConversationLength)
	}
	if resp.CurrentTopic != "teach me about phishing" {
		t.Errorf("CurrentTopic = %q", resp.CurrentTopic)
	}

	// The prompt must carry the retrieved passage.
	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("model called %d times, want 1", len(reqs))
	}
	if !strings.Contains(reqs[0].Messages[0].Content, "social engineering attack") {
		t.Error("retrieved passage missing from the tutor prompt")
	}

	// The question at the end of the response is stored for the next turn.
	state, release := store.Acquire("s1", "")
	defer release()
	if state.LastQuestion != "What do you think phishing means?" {
		t.Errorf("LastQuestion = %q", state.LastQuestion)
	}
}

func TestEngine_SecondTurnUsesStoredQuestion(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{
			{Content: tutorDecisionJSON},
			{Content: tutorDecisionJSON},
		},
	}
	engine, _ := newTestEngine(mock, nil, EngineConfig{MaxHistory: 100})

	ctx := context.Background()
	if _, err := engine.Respond(ctx, TurnRequest{SessionID: "s1", Input: "teach me about phishing"}); err != nil {
		t.Fatalf("turn 1: %v", err)
	}

	// A short answer to the stored question classifies as answering.
	resp, err := engine.Respond(ctx, TurnRequest{SessionID: "s1", Input: "tricking people by email"})
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if resp.InputIntent != string(IntentAnswering) {
		t.Errorf("InputIntent = %q, want answering", resp.InputIntent)
	}
	if resp.CurrentTopic != "teach me about phishing" {
		t.Errorf("CurrentTopic = %q, want unchanged on an answer", resp.CurrentTopic)
	}
}

func TestEngine_EmptyInputRejected(t *testing.T) {
	engine, _ := newTestEngine(&testutil.MockClient{}, nil, EngineConfig{})
	if _, err := engine.Respond(context.Background(), TurnRequest{SessionID: "s1", Input: "   "}); err == nil {
		t.Fatal("empty input accepted")
	}
}

func TestEngine_TimeoutLeavesStateUntouched(t *testing.T) {
	mock := &testutil.MockClient{
		Delay: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	engine, store := newTestEngine(mock, nil, EngineConfig{ModelTimeout: 20 * time.Millisecond})

	_, err := engine.Respond(context.Background(), TurnRequest{SessionID: "s1", Input: "what is malware?"})

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}

	state, release := store.Acquire("s1", "")
	defer release()
	if len(state.History) != 0 || state.HasPlan() || state.LastQuestion != "" {
		t.Errorf("session mutated by a timed-out turn: %+v", state)
	}
}

func TestEngine_ModelErrorDegradesToRecovery(t *testing.T) {
	mock := &testutil.MockClient{Err: errors.New("upstream down")}
	engine, store := newTestEngine(mock, nil, EngineConfig{MaxHistory: 100})

	resp, err := engine.Respond(context.Background(), TurnRequest{SessionID: "s1", Input: "what is malware?"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.Contains(resp.Response, "apologize") {
		t.Errorf("Response = %q, want apologetic recovery message", resp.Response)
	}
	if resp.ScaffoldingLevel != string(HighSupport) {
		t.Errorf("ScaffoldingLevel = %q, want high_support after recovery", resp.ScaffoldingLevel)
	}

	state, release := store.Acquire("s1", "")
	defer release()
	if len(state.History) != 1 {
		t.Errorf("recovery turn not recorded in history")
	}
}

func TestEngine_HistoryCapped(t *testing.T) {
	mock := &testutil.MockClient{}
	engine, store := newTestEngine(mock, nil, EngineConfig{MaxHistory: 3})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := engine.Respond(ctx, TurnRequest{SessionID: "s1", Input: "tell me more about malware"}); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	state, release := store.Acquire("s1", "")
	defer release()
	if len(state.History) != 3 {
		t.Errorf("History length = %d, want 3", len(state.History))
	}
}

func TestEngine_RetrievalQueryIncludesFocus(t *testing.T) {
	retriever := &stubRetriever{}
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: tutorDecisionJSON}, {Content: tutorDecisionJSON}},
	}
	engine, _ := newTestEngine(mock, retriever, EngineConfig{TopK: 5, MaxHistory: 100})

	ctx := context.Background()
	if _, err := engine.Respond(ctx, TurnRequest{SessionID: "s1", Input: "teach me about phishing"}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Respond(ctx, TurnRequest{SessionID: "s1", Input: "spear variants"}); err != nil {
		t.Fatal(err)
	}

	if len(retriever.queries) != 2 {
		t.Fatalf("retriever called %d times, want 2", len(retriever.queries))
	}
	if !strings.Contains(retriever.queries[1], "phishing") {
		t.Errorf("second query %q does not carry the session topic", retriever.queries[1])
	}
}

func TestExtractLastQuestion(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"question mid-text", "Good. What is phishing? Think about email.", "What is phishing?"},
		{"trailing question", "Let's begin. What do you already know about malware?", "What do you already know about malware?"},
		{"multiple questions", "Why? Because it matters. How would you check the logs?", "How would you check the logs?"},
		{"no question", "Well done, that completes the plan.", ""},
		{"only question mark", "?", ""},
		{"question at start", "What is a worm? It spreads by itself.", "What is a worm?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractLastQuestion(tt.response); got != tt.want {
				t.Errorf("extractLastQuestion(%q) = %q, want %q", tt.response, got, tt.want)
			}
		})
	}
}

func TestEngine_ClassifierSharesTurnDeadline(t *testing.T) {
	var mu sync.Mutex
	var hadDeadline []bool
	mock := &testutil.MockClient{
		Responses: []*llm.Response{
			{Content: "answering"},
			{Content: tutorDecisionJSON},
		},
		Delay: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			mu.Lock()
			hadDeadline = append(hadDeadline, ok)
			mu.Unlock()
			return nil
		},
	}
	store := NewStore(StoreConfig{TTL: time.Hour, SweepInterval: time.Minute}, nil)
	classifier := NewClassifier(mock, nil)
	engine := NewEngine(store, mock, classifier, nil, EngineConfig{
		ModelTimeout: 5 * time.Second,
		MaxHistory:   10,
	}, nil)

	state, release := store.Acquire("s1", "")
	state.LastQuestion = "What is phishing?"
	release()

	_, err := engine.Respond(context.Background(), TurnRequest{
		SessionID: "s1",
		Input:     "I believe it is a deceptive email designed to steal credentials",
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hadDeadline) != 2 {
		t.Fatalf("model called %d times, want 2 (intent + tutor)", len(hadDeadline))
	}
	for i, ok := range hadDeadline {
		if !ok {
			t.Errorf("model call %d ran without a deadline", i)
		}
	}
}

func TestEngine_ObservesModelCallDuration(t *testing.T) {
	var observed []time.Duration
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: tutorDecisionJSON}},
	}
	engine, _ := newTestEngine(mock, nil, EngineConfig{
		MaxHistory: 10,
		ObserveModelCall: func(d time.Duration) {
			observed = append(observed, d)
		},
	})

	if _, err := engine.Respond(context.Background(), TurnRequest{
		SessionID: "s1",
		Input:     "teach me about phishing",
	}); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if len(observed) != 1 {
		t.Fatalf("observer called %d times, want 1", len(observed))
	}
	if observed[0] < 0 {
		t.Errorf("observed duration %v is negative", observed[0])
	}
}

func TestEngine_MalformedStepDoesNotCorruptPlan(t *testing.T) {
	badStep := `{
  "internal_thought": "Lost track of the step",
  "updated_plan": {"plan": ["A", "B"], "plan_step": -1},
  "response_to_student": "Let's continue."
}`
	advance := `{
  "internal_thought": "Moving on",
  "updated_plan": {"plan": ["A", "B"], "plan_step": 0},
  "response_to_student": "Step one, then. What stands out to you?"
}`
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: badStep}, {Content: advance}},
	}
	engine, store := newTestEngine(mock, nil, EngineConfig{MaxHistory: 10})

	resp, err := engine.Respond(context.Background(), TurnRequest{SessionID: "s1", Input: "teach me about malware"})
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if resp.CurrentPlanStep != 1 {
		t.Errorf("turn 1 plan position = %d, want 1 (negative step ignored)", resp.CurrentPlanStep)
	}

	resp, err = engine.Respond(context.Background(), TurnRequest{SessionID: "s1", Input: "go on then with more detail please"})
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if resp.TotalPlanSteps != 2 {
		t.Errorf("turn 2 plan length = %d, want 2", resp.TotalPlanSteps)
	}

	state, release := store.Acquire("s1", "")
	defer release()
	if len(state.StepCompletion) != len(state.LearningPlan) {
		t.Fatalf("completion length %d does not match plan length %d",
			len(state.StepCompletion), len(state.LearningPlan))
	}
}

func TestTruncateOnRune(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exactly max", "hello", 5, "hello"},
		{"ascii cut", "hello world", 8, "hello wo"},
		{"multibyte straddle", strings.Repeat("学", 4), 10, strings.Repeat("学", 3)},
		{"multibyte aligned", strings.Repeat("学", 4), 9, strings.Repeat("学", 3)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := truncateOnRune(tc.in, tc.max)
			if got != tc.want {
				t.Errorf("truncateOnRune(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result %q is not valid UTF-8", got)
			}
		})
	}
}
