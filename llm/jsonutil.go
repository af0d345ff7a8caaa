package llm

import (
	"regexp"
	"strings"
)

// trailingCommaPattern matches trailing commas before ] or }, a common
// LLM output artifact.
var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// ExtractJSON extracts the first balanced JSON object from an LLM response.
// It tolerates markdown code fences, surrounding prose, and trailing commas.
// Returns "" when no balanced object is found.
func ExtractJSON(content string) string {
	raw := extractBalancedObject(content)
	if raw == "" {
		return ""
	}
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}

// extractBalancedObject scans from the first '{' and walks the content
// counting brace depth, skipping braces inside string values. This handles
// responses where the object is followed by commentary, which a greedy
// regex would swallow.
func extractBalancedObject(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return content[start : i+1]
				}
			}
		}
	}
	return ""
}
