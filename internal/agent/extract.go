package agent

import (
	"encoding/json"
	"strings"
)

// extractJSON returns the longest JSON object or array embedded in s, or nil.
// Model replies usually wrap the structured answer in reasoning text or code fences.
func extractJSON(s string) json.RawMessage {
	var best json.RawMessage
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		if len(raw) > len(best) {
			best = raw
		}
		// skip past the decoded value; nested values are never longer
		i += int(dec.InputOffset()) - 1
	}
	return best
}
