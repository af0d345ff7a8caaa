package tutor

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/wbq321/CyberCJ-multiagent/llm"
)

// Default texts substituted when the model output is missing pieces.
const (
	defaultResponse = "I'm here to guide your learning journey. What would you like to explore?"
	defaultThought  = "Engaging with the student's learning interests"
)

// Decision is the validated, fully-populated result of one model turn.
// All session mutations for a turn flow from a single Decision so a
// failed turn never leaves state partially updated.
type Decision struct {
	InternalThought string

	// Plan is the proposed learning plan; nil means no proposal.
	Plan []string
	// PlanStep is the proposed 0-indexed step; nil means no proposal.
	PlanStep       *int
	PlanAdaptation string

	// Scaffolding is the proposed level label; empty retains the current
	// level.
	Scaffolding          string
	ScaffoldingReasoning string

	Response string
}

// decisionWire is the raw JSON shape produced by the model.
type decisionWire struct {
	InternalThought string `json:"internal_thought"`
	UpdatedPlan     *struct {
		Plan           []string `json:"plan"`
		PlanStep       *int     `json:"plan_step"`
		PlanAdaptation string   `json:"plan_adaptation"`
	} `json:"updated_plan"`
	ScaffoldingAdjustment *struct {
		NewScaffoldingLevel string `json:"new_scaffolding_level"`
		Reasoning           string `json:"reasoning"`
	} `json:"scaffolding_adjustment"`
	ResponseToStudent string `json:"response_to_student"`
}

// ParseDecision extracts a Decision from raw model output, repairing
// missing or malformed pieces so the caller always receives a usable
// structure. The user is never shown a raw parsing failure.
func ParseDecision(content string) *Decision {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return fallbackDecision(content)
	}

	var wire decisionWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return fallbackDecision(content)
	}

	d := &Decision{
		InternalThought: wire.InternalThought,
		Response:        CleanResponse(wire.ResponseToStudent),
	}

	if wire.UpdatedPlan != nil {
		d.Plan = wire.UpdatedPlan.Plan
		d.PlanStep = wire.UpdatedPlan.PlanStep
		d.PlanAdaptation = wire.UpdatedPlan.PlanAdaptation
	}
	if wire.ScaffoldingAdjustment != nil {
		d.Scaffolding = wire.ScaffoldingAdjustment.NewScaffoldingLevel
		d.ScaffoldingReasoning = wire.ScaffoldingAdjustment.Reasoning
	}

	repairDecision(d)
	return d
}

// fallbackDecision builds a minimal synthetic decision when no JSON could
// be recovered: a one-step continuation plan, unchanged scaffolding, and
// the raw content (or a generic encouragement) as the response.
func fallbackDecision(content string) *Decision {
	step := 0
	response := CleanResponse(content)
	if response == "" {
		response = "That's an interesting point. What specific aspect would you like to explore further?"
	}
	return &Decision{
		InternalThought: "Model output was unparseable, continuing the conversation",
		Plan:            []string{"Continue the learning conversation"},
		PlanStep:        &step,
		PlanAdaptation:  "Fallback plan created",
		Response:        response,
	}
}

// repairDecision fills required fields of a structurally valid decision
// and drops out-of-range values.
func repairDecision(d *Decision) {
	if d.Response == "" {
		d.Response = defaultResponse
	}
	if d.PlanStep != nil && *d.PlanStep < 0 {
		d.PlanStep = nil
	}
	if len(d.Plan) == 0 && d.PlanStep == nil {
		step := 0
		d.Plan = []string{"Explore the topic together"}
		d.PlanStep = &step
		if d.PlanAdaptation == "" {
			d.PlanAdaptation = "Created basic exploration plan"
		}
	}
	if d.InternalThought == "" {
		d.InternalThought = defaultThought
	}
}

var (
	thinkBlockPattern = regexp.MustCompile(`(?is)<think>.*?</think>`)
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	blankRunPattern   = regexp.MustCompile(`\n\s*\n`)
)

// CleanResponse strips model reasoning artifacts from response text:
// <think> blocks, stray tags, and runs of blank lines.
func CleanResponse(response string) string {
	if response == "" {
		return response
	}
	response = thinkBlockPattern.ReplaceAllString(response, "")
	response = tagPattern.ReplaceAllString(response, "")
	response = blankRunPattern.ReplaceAllString(response, "\n\n")
	return strings.TrimSpace(response)
}
