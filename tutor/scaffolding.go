package tutor

import "strings"

// ParseScaffoldingLevel validates a scaffolding label case-insensitively.
func ParseScaffoldingLevel(s string) (ScaffoldingLevel, bool) {
	switch ScaffoldingLevel(strings.ToLower(strings.TrimSpace(s))) {
	case HighSupport:
		return HighSupport, true
	case GuidedSupport:
		return GuidedSupport, true
	case LowSupport:
		return LowSupport, true
	}
	return "", false
}

// applyScaffolding replaces the session's support level with a
// model-proposed one. Invalid or absent proposals retain the current
// level; there is no automatic decay or promotion beyond what the model
// proposes.
func applyScaffolding(state *ConversationState, proposed string) {
	if proposed == "" {
		return
	}
	level, ok := ParseScaffoldingLevel(proposed)
	if !ok {
		return
	}
	state.Scaffolding = level
}
