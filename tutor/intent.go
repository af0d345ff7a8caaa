package tutor

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/wbq321/CyberCJ-multiagent/llm"
)

// Intent classifies user input relative to the previous tutor question.
type Intent string

const (
	// IntentAnswering means the input responds to the previous question.
	IntentAnswering Intent = "answering"
	// IntentNewQuestion means the input opens a different topic.
	IntentNewQuestion Intent = "new_question"
)

// answerPatterns match short domain declaratives that carry no question
// marker but are clearly answers. Order matters: cheapest and most
// specific first.
var answerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(yes|no)\b`),
	regexp.MustCompile(`^(confidentiality|integrity|availability)\b`),
	regexp.MustCompile(`^(malware|virus|trojan|worm|spyware|ransomware)\b`),
	regexp.MustCompile(`^(a|an|the)?\s*(hacker|cybercriminal|attacker)`),
	regexp.MustCompile(`(information|data)\s+(is|are)\s+(collected|stolen|modified)`),
	regexp.MustCompile(`(type|kind)\s+of\s+(malware|attack|threat)`),
}

// questionCues are interrogative lexical markers.
var questionCues = []string{"what", "how", "why", "when", "where", "can you", "could you", "please"}

// Classifier labels user input as answering or new_question. The model is
// the primary path; a heuristic handles model unavailability and
// unparseable model answers. The two-tier design exists because domain
// answers are often short declaratives with no question marker, while the
// model call is costly.
type Classifier struct {
	completer llm.Completer // nil disables the model path
	logger    *slog.Logger
}

// NewClassifier creates an intent classifier. completer may be nil to
// force heuristic-only classification.
func NewClassifier(completer llm.Completer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{completer: completer, logger: logger}
}

// Classify labels the input. With no previous question there is nothing
// to answer, so the result is always new_question.
func (c *Classifier) Classify(ctx context.Context, userInput, previousQuestion string) Intent {
	if strings.TrimSpace(userInput) == "" {
		return IntentNewQuestion
	}
	if previousQuestion == "" {
		return IntentNewQuestion
	}

	if c.completer != nil {
		if intent, ok := c.classifyWithModel(ctx, userInput, previousQuestion); ok {
			return intent
		}
	}

	return heuristicIntent(userInput, previousQuestion)
}

// classifyWithModel asks the model for a single-word label. Returns
// ok=false when the call fails or the answer contains neither label.
func (c *Classifier) classifyWithModel(ctx context.Context, userInput, previousQuestion string) (Intent, bool) {
	resp, err := c.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: buildIntentPrompt(previousQuestion, userInput)},
		},
	})
	if err != nil {
		c.logger.Debug("Intent model call failed, using heuristic", "error", err)
		return "", false
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Content))
	switch {
	case strings.Contains(answer, "answering"):
		return IntentAnswering, true
	case strings.Contains(answer, "new_question"), strings.Contains(answer, "new question"):
		return IntentNewQuestion, true
	}

	c.logger.Debug("Intent model answer unparseable, using heuristic", "answer", answer)
	return "", false
}

// heuristicIntent applies the fallback rules in fixed order. It is only
// called with a non-empty previous question.
func heuristicIntent(userInput, previousQuestion string) Intent {
	trimmed := strings.TrimSpace(userInput)
	lower := strings.ToLower(trimmed)

	// Short declaratives after a question are answers.
	if len(strings.Fields(trimmed)) <= 5 && !strings.HasSuffix(trimmed, "?") {
		return IntentAnswering
	}

	for _, pattern := range answerPatterns {
		if pattern.MatchString(lower) {
			return IntentAnswering
		}
	}

	if strings.HasSuffix(trimmed, "?") {
		return IntentNewQuestion
	}
	for _, cue := range questionCues {
		if strings.Contains(lower, cue) {
			return IntentNewQuestion
		}
	}

	// Ambiguous input after a question defaults to answering.
	if previousQuestion != "" {
		return IntentAnswering
	}
	return IntentNewQuestion
}
