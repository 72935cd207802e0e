package agent

import (
	"strings"
	"text/template"
)

// chainOfThought is prepended to every prompt.
const chainOfThought = "Let's think step by step. First, reason about the problem in detail, then provide the final structured answer as requested.\n\n"

var (
	prioritizationTmpl = mustPrompt("prioritization", `
You are an expert Product Manager. Given the following features:
{{.Features}}

And context:
{{.Context}}

Prioritize the features (1 being highest), and provide a reason per feature. Output JSON: 
{"prioritized_features": [{"feature": "...", "reason": "..."}, ...]}
`)

	groomingTmpl = mustPrompt("grooming", `
You are an agile PM. Review the backlog:
{{.Backlog}}

Context:
{{.Context}}

Group related tickets, suggest improvements, and summarize. Output JSON:
{"groups": [{"group": "...", "tickets": [...], "suggestions": "..."}, ...]}
`)

	suggestionTmpl = mustPrompt("suggestion", `
Given backlog items:
{{.Backlog}}

And context:
{{.Context}}

Suggest 3 new actionable tasks or improvements the team should consider (JSON array).
`)

	insightsTmpl = mustPrompt("insights", `
You are an AI scrum master. Given this team activity log:
{{.Activity}}

Summarize team progress, risks, and blockers. Output JSON with "summary", "risks", "blockers".
`)
)

type promptData struct {
	Features string
	Backlog  string
	Context  string
	Activity string
}

func mustPrompt(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(chainOfThought + body))
}

func render(t *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
