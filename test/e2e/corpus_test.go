package e2e

import (
	"testing"
)

func TestBuildCorpus_KeysUnique(t *testing.T) {
	c := BuildCorpus()
	if len(c.Paragraphs) != 20 {
		t.Errorf("expected 20 paragraphs, got %d", len(c.Paragraphs))
	}
	seen := make(map[string]bool)
	for _, p := range c.Paragraphs {
		if seen[p.Key] {
			t.Errorf("duplicate key %q", p.Key)
		}
		seen[p.Key] = true
		if p.Text == "" {
			t.Errorf("paragraph %q is empty", p.Key)
		}
	}
}

func TestBuildCorpus_CasesReferToParagraphs(t *testing.T) {
	c := BuildCorpus()
	if len(c.Cases) == 0 {
		t.Fatal("expected at least one query case")
	}
	for _, tc := range c.Cases {
		text := c.Text(tc.ExpectedKey)
		if text == "" {
			t.Errorf("query %q: key %q not in corpus", tc.Query, tc.ExpectedKey)
			continue
		}
		if !sharesTerm(text, tc.Query) {
			t.Errorf("query %q shares no term with paragraph %q", tc.Query, tc.ExpectedKey)
		}
	}
}

func TestCorpus_Texts(t *testing.T) {
	c := BuildCorpus()
	texts := c.Texts()
	if len(texts) != len(c.Paragraphs) {
		t.Fatalf("expected %d texts, got %d", len(c.Paragraphs), len(texts))
	}
	for i := range texts {
		if texts[i] != c.Paragraphs[i].Text {
			t.Errorf("texts[%d] mismatch", i)
		}
	}
}

func TestSharesTerm(t *testing.T) {
	tests := []struct {
		text  string
		query string
		want  bool
	}{
		{"Slack integration for status", "slack", true},
		{"Slack integration for status", "Jira", false},
		{"Dark theme", "light THEME", true},
	}
	for i, tt := range tests {
		if got := sharesTerm(tt.text, tt.query); got != tt.want {
			t.Errorf("test %d: sharesTerm(%q, %q) = %v, want %v", i, tt.text, tt.query, got, tt.want)
		}
	}
}
