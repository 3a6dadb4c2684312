package answers

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParseHistoryPayload turns the backend's answer_history field into a
// version list. The field may be a JSON string holding an encoded array, a
// native array, or absent. Anything that cannot be decoded degrades to a
// single-version history holding currentAnswer.
func ParseHistoryPayload(raw json.RawMessage, currentAnswer string) []string {
	fallback := []string{currentAnswer}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fallback
	}

	// A string value is itself JSON text to decode once more.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fallback
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return fallback
		}
		raw = json.RawMessage(inner)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return fallback
	}

	history := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			history = append(history, s)
			continue
		}
		history = append(history, string(bytes.TrimSpace(item)))
	}
	return history
}
