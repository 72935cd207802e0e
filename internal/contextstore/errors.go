package contextstore

import "errors"

var (
	// ErrRetrievalUnavailable is returned when the embedding function or the
	// vector index cannot serve a request, including when the embed timeout expires.
	ErrRetrievalUnavailable = errors.New("retrieval backend unavailable")
	// ErrInvalidInput is returned for malformed input such as text that is not valid UTF-8.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicate is returned by Ingest under DuplicateError when a text is already stored.
	ErrDuplicate = errors.New("duplicate document")
)
