package tutor

import (
	"context"
	"errors"
	"testing"

	"github.com/wbq321/CyberCJ-multiagent/llm"
	"github.com/wbq321/CyberCJ-multiagent/llm/testutil"
)

func TestClassify_NoPreviousQuestion(t *testing.T) {
	c := NewClassifier(nil, nil)

	inputs := []string{"yes", "what is malware?", "confidentiality", "tell me about phishing"}
	for _, input := range inputs {
		if got := c.Classify(context.Background(), input, ""); got != IntentNewQuestion {
			t.Errorf("Classify(%q, no previous) = %v, want new_question", input, got)
		}
	}
}

func TestHeuristicIntent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		previous string
		want     Intent
	}{
		{"short declarative", "viruses and worms", "What types of malware exist?", IntentAnswering},
		{"single word", "confidentiality", "Which CIA property is violated?", IntentAnswering},
		{"yes no", "yes I think so", "Is this a phishing attempt?", IntentAnswering},
		{"short with question mark", "what?", "Can you list the steps?", IntentNewQuestion},
		{"long question", "can you explain how ransomware encryption actually works in practice?", "What is malware?", IntentNewQuestion},
		{"trailing question mark", "so how do firewalls fit into all of this picture here?", "What is a virus?", IntentNewQuestion},
		{"cia pattern long", "confidentiality is the property that limits who can read the data", "Which property applies?", IntentAnswering},
		{"data impact phrasing", "the information is stolen by the attacker and then sold on forums", "What happens in a breach?", IntentAnswering},
		{"ambiguous default", "that makes sense to me overall and I will remember it going forward", "Does that help?", IntentAnswering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := heuristicIntent(tt.input, tt.previous); got != tt.want {
				t.Errorf("heuristicIntent(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// Short inputs with no trailing question mark are answers whenever a
// previous question exists and only the fallback is active.
func TestClassify_ShortAnswerProperty(t *testing.T) {
	c := NewClassifier(nil, nil)

	inputs := []string{"yes", "no idea", "a trojan", "stolen data", "five words in this one"}
	for _, input := range inputs {
		if got := c.Classify(context.Background(), input, "What do you think?"); got != IntentAnswering {
			t.Errorf("Classify(%q) = %v, want answering", input, got)
		}
	}
}

func TestClassify_ModelPrimary(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: "new_question"}},
	}
	c := NewClassifier(mock, nil)

	got := c.Classify(context.Background(), "ok", "What is a worm?")
	if got != IntentNewQuestion {
		t.Errorf("Classify = %v, want model's new_question over the heuristic", got)
	}
	if mock.CallCount() != 1 {
		t.Errorf("model called %d times, want 1", mock.CallCount())
	}
}

func TestClassify_ModelUnparseableFallsBack(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: "I believe the student intends to continue"}},
	}
	c := NewClassifier(mock, nil)

	if got := c.Classify(context.Background(), "trojans", "What malware is this?"); got != IntentAnswering {
		t.Errorf("Classify = %v, want heuristic answering after unparseable model output", got)
	}
}

func TestClassify_ModelErrorFallsBack(t *testing.T) {
	mock := &testutil.MockClient{Err: errors.New("connection refused")}
	c := NewClassifier(mock, nil)

	if got := c.Classify(context.Background(), "availability", "Which property?"); got != IntentAnswering {
		t.Errorf("Classify = %v, want heuristic answering after model error", got)
	}
}
