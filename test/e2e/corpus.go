// Package e2e provides end-to-end retrieval tests over a product context corpus.
package e2e

import (
	"strings"
)

// ContextParagraph is one paragraph of project context, addressed by a short key.
type ContextParagraph struct {
	Key  string
	Text string
}

// QueryCase pairs a query with the paragraph expected as its nearest match.
type QueryCase struct {
	Query       string
	ExpectedKey string
}

// Corpus holds the context paragraphs and the queries run against them.
type Corpus struct {
	Paragraphs []ContextParagraph
	Cases      []QueryCase
}

// BuildCorpus returns a fixed corpus of product feedback and planning notes.
// Each query shares its distinctive terms with exactly one paragraph.
func BuildCorpus() *Corpus {
	return &Corpus{
		Paragraphs: []ContextParagraph{
			{"sso", "Enterprise customers keep asking for single sign-on. Single sign-on through Okta and Azure AD blocks three large deals this quarter."},
			{"onboarding", "New users drop off during the onboarding checklist. The onboarding checklist asks for too many fields before showing any value."},
			{"darkmode", "Designers proposed a dark theme for the dashboard. A dark theme reduces eye strain for support agents on night shifts."},
			{"billing", "Finance wants invoices exported as PDF. Invoice export to PDF should include tax identifiers for European customers."},
			{"mobile", "The mobile app crashes when uploading photos on older Android phones. Photo upload crashes account for most one-star reviews."},
			{"search", "Customers cannot find archived projects. Archived project search should match titles and tags, not only exact names."},
			{"notifications", "Users complain about noisy email notifications. Notification digests would bundle updates into one daily email."},
			{"permissions", "Admins need granular roles for contractors. Contractor roles should restrict access to billing and member management."},
			{"api", "Partners requested webhooks for ticket changes. Webhook delivery must retry with backoff when partner endpoints fail."},
			{"performance", "The reports page takes twelve seconds to load for large workspaces. Slow reports are the top reason for churn interviews."},
			{"localization", "Sales is expanding into Japan and Brazil. Localization into Japanese and Portuguese is needed before the launch."},
			{"audit", "Security reviewers ask for an audit trail. Audit trail entries should record who changed settings and when."},
			{"integrations", "Teams want Slack integration for status updates. Slack integration should post release notes to a chosen channel."},
			{"csvimport", "Migrating customers need bulk CSV import. CSV import must validate columns and report row level errors."},
			{"twofactor", "Compliance requires two-factor authentication. Two-factor authentication with authenticator apps is mandatory for admins."},
			{"offline", "Field technicians work without connectivity. Offline mode should queue edits and sync them when the network returns."},
			{"analytics", "Product managers want funnel analytics. Funnel analytics would show where trial users abandon the setup wizard."},
			{"accessibility", "An accessibility audit found missing screen reader labels. Screen reader labels are required on every form control."},
			{"pricing", "Marketing plans a usage based pricing tier. Usage based pricing needs metering of seats and storage."},
			{"retention", "Data retention policies vary by customer contract. Retention policies should purge deleted records after ninety days."},
		},
		Cases: []QueryCase{
			{"single sign-on", "sso"},
			{"Okta sign-on", "sso"},
			{"onboarding checklist", "onboarding"},
			{"dark theme", "darkmode"},
			{"export invoices to PDF", "billing"},
			{"photo upload crashes", "mobile"},
			{"archived project search", "search"},
			{"email notification digests", "notifications"},
			{"contractor roles", "permissions"},
			{"webhook retry", "api"},
			{"slow reports", "performance"},
			{"localization into Japanese", "localization"},
			{"audit trail", "audit"},
			{"Slack integration", "integrations"},
			{"bulk CSV import", "csvimport"},
			{"two-factor authentication", "twofactor"},
			{"offline mode sync", "offline"},
			{"funnel analytics", "analytics"},
			{"screen reader labels", "accessibility"},
			{"usage based pricing", "pricing"},
			{"retention policies", "retention"},
		},
	}
}

// Texts returns the paragraph texts in corpus order.
func (c *Corpus) Texts() []string {
	out := make([]string, len(c.Paragraphs))
	for i, p := range c.Paragraphs {
		out[i] = p.Text
	}
	return out
}

// Text returns the paragraph text for key, or "" when the key is unknown.
func (c *Corpus) Text(key string) string {
	for _, p := range c.Paragraphs {
		if p.Key == key {
			return p.Text
		}
	}
	return ""
}

// sharesTerm reports whether text contains at least one word of query, ignoring case.
func sharesTerm(text, query string) bool {
	lower := strings.ToLower(text)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
