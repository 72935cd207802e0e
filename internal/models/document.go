// Package models defines core data structures for context documents, backlog items, and agent results.
package models

import "time"

// ContextDocument is a unit of project context held by a collection.
// ID is the identity key derived from Content; documents are never updated in place.
type ContextDocument struct {
	ID         string    `json:"id" db:"id"`
	Collection string    `json:"collection" db:"collection"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NearestMatch is one nearest-neighbor hit as returned by the API.
type NearestMatch struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// RetrieveRequest is the body of a context retrieval request.
// Items are pointers so a JSON null entry stays distinguishable from "".
// K overrides the configured per-item result count when positive.
type RetrieveRequest struct {
	Items []*string `json:"items"`
	K     int       `json:"k,omitempty"`
}

// NewRetrieveRequest builds a request for items with per-item count k.
func NewRetrieveRequest(items []string, k int) RetrieveRequest {
	return RetrieveRequest{Items: StringPtrs(items), K: k}
}

// StringPtrs returns pointers to copies of ss.
func StringPtrs(ss []string) []*string {
	out := make([]*string, len(ss))
	for i := range ss {
		s := ss[i]
		out[i] = &s
	}
	return out
}

// RetrieveResponse carries the newline-joined context blob.
type RetrieveResponse struct {
	Context string `json:"context"`
	Items   int    `json:"items"`
}
