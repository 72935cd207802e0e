package models

import "encoding/json"

// AgentResult is the response of one agent run.
// JSON is set when the model output contains a parseable JSON value.
type AgentResult struct {
	RunID  string          `json:"run_id"`
	Agent  string          `json:"agent"`
	Output string          `json:"output"`
	JSON   json.RawMessage `json:"json,omitempty"`
}
