package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/pmagent/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "json": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteQueryResult_JSON(t *testing.T) {
	result := &QueryResult{Items: []string{"SSO"}, Context: "Add SSO login\nImprove onboarding flow"}
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, result, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded QueryResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Context != result.Context || len(decoded.Items) != 1 {
		t.Errorf("decoded: got %+v", decoded)
	}
	if strings.Contains(buf.String(), "matches") {
		t.Error("empty matches should be omitted")
	}
}

func TestWriteQueryResult_text(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteQueryResult(&buf, &QueryResult{Items: []string{"x"}}, OutputText)
	if !strings.Contains(buf.String(), "No context found.") {
		t.Errorf("empty result: got %q", buf.String())
	}

	buf.Reset()
	_ = WriteQueryResult(&buf, &QueryResult{Items: []string{"a", "b"}, Context: "one\ntwo"}, OutputText)
	if !strings.Contains(buf.String(), "Context for 2 item(s):\n\none\ntwo\n") {
		t.Errorf("context: got %q", buf.String())
	}

	buf.Reset()
	_ = WriteQueryResult(&buf, &QueryResult{Matches: []models.NearestMatch{
		{ID: "ctx:1", Content: "Dark mode", Distance: 0},
		{ID: "ctx:2", Content: "Add SSO login", Distance: 0.75},
	}}, OutputText)
	want := "1. [0.0000] Dark mode\n2. [0.7500] Add SSO login\n"
	if buf.String() != want {
		t.Errorf("matches: got %q, want %q", buf.String(), want)
	}
}

func TestWriteAgentResult(t *testing.T) {
	res := &models.AgentResult{RunID: "r1", Agent: "insights", Output: "Team is on track", JSON: json.RawMessage(`{"a":1}`)}
	var buf bytes.Buffer
	if err := WriteAgentResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Agent: insights  Run: r1") || !strings.Contains(buf.String(), "Team is on track") {
		t.Errorf("text: got %q", buf.String())
	}
	buf.Reset()
	if err := WriteAgentResult(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.AgentResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, decoded.JSON); err != nil || compact.String() != `{"a":1}` {
		t.Errorf("json field: got %s", decoded.JSON)
	}
}
