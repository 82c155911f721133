package agent

import "encoding/json"

// extractSessionID probes a raw JSON line, in order, for session_id,
// conversation_id, thread_id, then nested session.id / session.session_id.
// The first value present (regardless of whether it later fails the
// looks-like-a-session-id check) wins, matching spec.md 4.2's "first
// match wins" semantics; looksLikeSessionID is applied by the caller.
func extractSessionID(rawLine []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(rawLine, &doc); err != nil {
		return ""
	}

	for _, key := range []string{"session_id", "conversation_id", "thread_id"} {
		if v, ok := doc[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}

	if session, ok := doc["session"].(map[string]any); ok {
		for _, key := range []string{"id", "session_id"} {
			if v, ok := session[key]; ok {
				if s, ok := v.(string); ok {
					return s
				}
			}
		}
	}

	return ""
}

type jsonAssistantLine struct {
	Type string `json:"type"`
	Item struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item"`
}

// extractAgentMessage reports whether rawLine is a
// {type:"item.completed", item:{type:"agent_message", text:T}} line, and
// if so, returns T. Every other well-formed or malformed line is
// discarded (spec.md 4.2); malformed JSON is a Protocol error per
// spec.md 7 and is silently dropped.
func extractAgentMessage(rawLine []byte) (string, bool) {
	var line jsonAssistantLine
	if err := json.Unmarshal(rawLine, &line); err != nil {
		return "", false
	}
	if line.Type != "item.completed" || line.Item.Type != "agent_message" {
		return "", false
	}
	return line.Item.Text, true
}
