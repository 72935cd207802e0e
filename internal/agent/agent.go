// Package agent implements the product manager agents: feature prioritization,
// backlog grooming, task suggestion, and team insights. Each agent renders a
// prompt with retrieved project context and asks the LLM for a structured answer.
package agent

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/pmagent/internal/contextstore"
	"github.com/hyperjump/pmagent/internal/llm"
	"github.com/hyperjump/pmagent/internal/metrics"
	"github.com/hyperjump/pmagent/internal/models"
)

// Agent names, also used as memory keys and metric labels.
const (
	Prioritization = "prioritization"
	Grooming       = "grooming"
	Suggestion     = "suggestion"
	Insights       = "insights"
)

// Names lists every agent.
var Names = []string{Prioritization, Grooming, Suggestion, Insights}

// ContextRetriever assembles project context for a list of query items.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, items []string) (string, error)
}

// Agents runs the four agents against one LLM and one context retriever.
type Agents struct {
	completer llm.Completer
	retriever ContextRetriever
	memory    *Memory
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures Agents.
type Option func(*Agents)

// WithMemory sets the exchange memory. Defaults to NewMemory(0).
func WithMemory(m *Memory) Option {
	return func(a *Agents) {
		if m != nil {
			a.memory = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agents) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records LLM request counts and durations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agents) {
		a.metrics = m
	}
}

// New creates the agents.
func New(completer llm.Completer, retriever ContextRetriever, opts ...Option) *Agents {
	a := &Agents{
		completer: completer,
		retriever: retriever,
		memory:    NewMemory(0),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Memory returns the agents' exchange memory.
func (a *Agents) Memory() *Memory {
	return a.memory
}

// PrioritizeFeatures ranks features using context retrieved for the feature names.
func (a *Agents) PrioritizeFeatures(ctx context.Context, features []string) (*models.AgentResult, error) {
	list := models.FeatureList{Features: features}
	if err := list.Validate(); err != nil {
		return nil, invalid(err)
	}
	retrieved, err := a.retriever.RetrieveContext(ctx, features)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(features))
	for i, f := range features {
		lines[i] = "- " + f
	}
	return a.run(ctx, Prioritization, prioritizationTmpl, promptData{
		Features: strings.Join(lines, "\n"),
		Context:  retrieved,
	})
}

// GroomBacklog groups related tickets using context retrieved for their titles.
func (a *Agents) GroomBacklog(ctx context.Context, backlog []models.BacklogItem) (*models.AgentResult, error) {
	list := models.BacklogList{Backlog: backlog}
	if err := list.Validate(); err != nil {
		return nil, invalid(err)
	}
	retrieved, err := a.retriever.RetrieveContext(ctx, list.Titles())
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(backlog))
	for i, item := range backlog {
		lines[i] = fmt.Sprintf("%s: %s - %s", item.ID, item.Title, item.Desc)
	}
	return a.run(ctx, Grooming, groomingTmpl, promptData{
		Backlog: strings.Join(lines, "\n"),
		Context: retrieved,
	})
}

// SuggestTasks proposes new tasks using context retrieved for the backlog titles.
func (a *Agents) SuggestTasks(ctx context.Context, backlog []models.BacklogItem) (*models.AgentResult, error) {
	list := models.BacklogList{Backlog: backlog}
	if err := list.Validate(); err != nil {
		return nil, invalid(err)
	}
	titles := list.Titles()
	retrieved, err := a.retriever.RetrieveContext(ctx, titles)
	if err != nil {
		return nil, err
	}
	return a.run(ctx, Suggestion, suggestionTmpl, promptData{
		Backlog: strings.Join(titles, "; "),
		Context: retrieved,
	})
}

// TeamInsights summarizes an activity log. No context is retrieved.
func (a *Agents) TeamInsights(ctx context.Context, activityLog string) (*models.AgentResult, error) {
	log := models.ActivityLog{ActivityLog: activityLog}
	if err := log.Validate(); err != nil {
		return nil, invalid(err)
	}
	return a.run(ctx, Insights, insightsTmpl, promptData{Activity: activityLog})
}

func (a *Agents) run(ctx context.Context, name string, tmpl *template.Template, data promptData) (*models.AgentResult, error) {
	prompt, err := render(tmpl, data)
	if err != nil {
		return nil, fmt.Errorf("render %s prompt: %w", name, err)
	}
	runID := uuid.New().String()

	start := time.Now()
	output, err := a.completer.Complete(ctx, prompt)
	a.observe(name, start, err)
	if err != nil {
		a.logger.Error("agent run failed", zap.String("agent", name), zap.String("run_id", runID), zap.Error(err))
		return nil, err
	}

	a.memory.Append(name, Exchange{RunID: runID, Input: prompt, Output: output, At: time.Now()})
	a.logger.Debug("agent run",
		zap.String("agent", name),
		zap.String("run_id", runID),
		zap.Int("prompt_len", len(prompt)),
		zap.Duration("took", time.Since(start)))
	return &models.AgentResult{
		RunID:  runID,
		Agent:  name,
		Output: output,
		JSON:   extractJSON(output),
	}, nil
}

func (a *Agents) observe(name string, start time.Time, err error) {
	if a.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	a.metrics.LLMRequests.WithLabelValues(name, status).Inc()
	a.metrics.LLMDuration.Observe(time.Since(start).Seconds())
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", contextstore.ErrInvalidInput, err)
}
