package feedback

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/pmagent/internal/models"
)

// Index is a Bleve full-text index over feedback prompts and responses.
type Index struct {
	index bleve.Index
}

// Hit is a single full-text search hit.
type Hit struct {
	ID    string
	Score float64
}

type indexedFeedback struct {
	Agent    string  `json:"agent"`
	Prompt   string  `json:"prompt"`
	Response string  `json:"response"`
	Rating   float64 `json:"rating"`
}

// NewIndex creates or opens a Bleve index at path. An empty path creates an in-memory index.
// If you change the index mapping, remove the index directory to force a rebuild.
func NewIndex(path string) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// standard analyzer: lowercase + tokenize, no stemming, so product names match exactly
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("prompt", textFieldMapping)
	docMapping.AddFieldMappingsAt("response", textFieldMapping)
	docMapping.AddFieldMappingsAt("agent", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("rating", bleve.NewNumericFieldMapping())
	im.AddDocumentMapping("feedback", docMapping)
	im.DefaultType = "feedback"
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		return &Index{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// Add indexes fb under its ID.
func (b *Index) Add(ctx context.Context, fb *models.Feedback) error {
	return b.index.Index(fb.ID, indexedFeedback{
		Agent:    fb.Agent,
		Prompt:   fb.Prompt,
		Response: fb.Response,
		Rating:   float64(fb.Rating),
	})
}

// SearchOptions narrows a feedback search. The zero value matches any agent and rating.
type SearchOptions struct {
	Agent     string
	MinRating int
	// Fuzziness is the maximum edit distance per term; 0 disables fuzzy matching.
	Fuzziness int
}

// Search matches query against prompts and responses and returns up to limit hits, best first.
func (b *Index) Search(ctx context.Context, query string, limit int, opts SearchOptions) ([]Hit, error) {
	var text blevequery.Query
	if opts.Fuzziness > 0 {
		text = buildFuzzyQuery(query, opts.Fuzziness)
	} else {
		text = bleve.NewMatchQuery(query)
	}
	q := bleve.NewConjunctionQuery(text)
	if opts.Agent != "" {
		aq := bleve.NewTermQuery(opts.Agent)
		aq.SetField("agent")
		q.AddQuery(aq)
	}
	if opts.MinRating > 0 {
		minRating := float64(opts.MinRating)
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(&minRating, nil, &inclusive, nil)
		rq.SetField("rating")
		q.AddQuery(rq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = Hit{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// buildFuzzyQuery creates a disjunction of fuzzy queries, one per term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := strings.Fields(strings.ToLower(queryStr))
	if len(terms) == 0 {
		return bleve.NewMatchQuery(queryStr)
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed feedback records.
func (b *Index) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *Index) Close() error {
	return b.index.Close()
}
