// Package cli provides output helpers for the pmagent command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/pmagent/internal/models"
	"github.com/hyperjump/pmagent/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// QueryResult is the outcome of a context query for one or more items.
type QueryResult struct {
	Items   []string              `json:"items"`
	Context string                `json:"context"`
	Matches []models.NearestMatch `json:"matches,omitempty"`
}

// WriteQueryResult writes a context query result to w in the given format.
func WriteQueryResult(w io.Writer, result *QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	if result.Context == "" && len(result.Matches) == 0 {
		fmt.Fprintln(w, "No context found.")
		return nil
	}
	if len(result.Matches) > 0 {
		for i, m := range result.Matches {
			fmt.Fprintf(w, "%d. [%.4f] %s\n", i+1, m.Distance, utils.Truncate(m.Content, 200))
		}
		return nil
	}
	fmt.Fprintf(w, "Context for %d item(s):\n\n%s\n", len(result.Items), result.Context)
	return nil
}

// WriteAgentResult writes an agent run result. Text output prefers the extracted JSON when present.
func WriteAgentResult(w io.Writer, result *models.AgentResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "Agent: %s  Run: %s\n\n", result.Agent, result.RunID)
	fmt.Fprintln(w, result.Output)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
