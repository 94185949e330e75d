package claude

import (
	"encoding/json"
	"regexp"
	"strings"
)

var codeFenceRegex = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```$")

// unwrapJSON removes a markdown code fence around a JSON answer. Claude has
// no JSON response mode and often fences its JSON even when told not to.
// Text that is not valid JSON after unwrapping is returned unchanged.
func unwrapJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := codeFenceRegex.FindStringSubmatch(trimmed); len(m) > 1 {
		trimmed = strings.TrimSpace(m[1])
	}

	if !json.Valid([]byte(trimmed)) {
		return text
	}
	return trimmed
}
