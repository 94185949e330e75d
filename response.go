package digiself

import (
	"encoding/json"
	"regexp"
	"strings"
)

// AssistantResponse is the structured answer of the assistant. Reply is shown
// to the user as-is; Actions may be empty.
type AssistantResponse struct {
	Reply   string          `json:"reply"`
	Actions []PlannerAction `json:"actions"`
}

// codeBlockRegex matches ```json ... ``` and bare ``` ... ``` fences.
var codeBlockRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```")

// ParseAssistantResponse converts raw model output into an AssistantResponse.
// It never fails: text that does not carry a response object becomes the
// reply with no actions.
func ParseAssistantResponse(text string) *AssistantResponse {
	fallback := &AssistantResponse{Reply: text, Actions: []PlannerAction{}}

	candidate := extractJSON(text)
	if candidate == "" {
		return fallback
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return fallback
	}

	rawReply, hasReply := raw["reply"]
	rawActions, hasActions := raw["actions"]
	if !hasReply && !hasActions {
		return fallback
	}

	resp := &AssistantResponse{Actions: decodeActions(rawActions)}
	if hasReply {
		var reply string
		if err := json.Unmarshal(rawReply, &reply); err == nil {
			resp.Reply = reply
		} else {
			resp.Reply = strings.TrimSpace(string(rawReply))
		}
	}
	return resp
}

// decodeActions decodes a JSON list of actions. Elements that are not objects
// are dropped; a value that is not a list yields no actions.
func decodeActions(data json.RawMessage) []PlannerAction {
	actions := []PlannerAction{}
	if len(data) == 0 {
		return actions
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return actions
	}
	for _, item := range items {
		trimmed := strings.TrimSpace(string(item))
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}
		var action PlannerAction
		if err := json.Unmarshal(item, &action); err != nil {
			continue
		}
		actions = append(actions, action)
	}
	return actions
}

// extractJSON finds the JSON object in a model response. Models wrap JSON in
// markdown fences or surround it with prose even when asked not to. It
// returns "" when no balanced object is present.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if matches := codeBlockRegex.FindStringSubmatch(text); len(matches) > 1 {
		text = strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	// Strings are tracked so braces inside them do not count.
	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
