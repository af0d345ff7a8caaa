package tutor

import (
	"slices"
	"time"
)

// applyPlanUpdate applies a model-proposed plan and step to the session.
//
// A proposed plan that differs by content from the stored one always
// replaces it wholesale: completion flags are reallocated all-false and
// the creation time restamped. Plans are never merged.
//
// Step advancement has two end-of-plan paths, both load-bearing:
//
//  1. The proposed step runs past the last index. The step just left is
//     marked complete and the plan is cleared immediately.
//  2. The proposed step lands on (or stays at) the final valid index.
//     The final step is marked complete and PlanJustCompleted is raised
//     for this turn only, so the completion can be announced; clearing
//     is deferred until a later turn advances past the end via path 1.
func applyPlanUpdate(state *ConversationState, proposedPlan []string, proposedStep *int, now time.Time) {
	// The completion flag is visible for a single turn.
	state.PlanJustCompleted = false

	if len(proposedPlan) > 0 && !slices.Equal(proposedPlan, state.LearningPlan) {
		state.LearningPlan = slices.Clone(proposedPlan)
		state.StepCompletion = make([]bool, len(state.LearningPlan))
		state.PlanCreatedAt = now
	}

	// A negative step is a malformed proposal, not a position. Anything
	// past the end is handled by the clearing paths below.
	if proposedStep == nil || *proposedStep < 0 {
		return
	}

	old := state.CurrentPlanStep
	state.CurrentPlanStep = *proposedStep

	advanced := old >= 0 && old < state.CurrentPlanStep && old < len(state.StepCompletion)
	if advanced {
		state.StepCompletion[old] = true
	}

	switch {
	case advanced && state.CurrentPlanStep >= len(state.LearningPlan):
		// Ran past the last step: the plan is finished and cleared.
		state.LearningPlan = nil
		state.CurrentPlanStep = 0
		state.StepCompletion = nil

	case state.HasPlan() && state.CurrentPlanStep == len(state.LearningPlan)-1:
		// On the final step: announce completion, keep the plan one more
		// turn so the response can acknowledge it.
		if state.CurrentPlanStep < len(state.StepCompletion) {
			state.StepCompletion[state.CurrentPlanStep] = true
		}
		state.PlanJustCompleted = true
	}
}
