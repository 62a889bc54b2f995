// Package core provides the embedsearch client: embedding texts into a corpus
// and answering nearest-neighbor queries against it.
package core

import (
	"errors"
	"fmt"

	"github.com/oceanbase/embedsearch-go/pkg/corpus"
	"github.com/oceanbase/embedsearch-go/pkg/embedder"
	"github.com/oceanbase/embedsearch-go/pkg/search"
	"github.com/oceanbase/embedsearch-go/pkg/storage"
	"github.com/oceanbase/embedsearch-go/pkg/vecmath"
)

// Errors that callers can match with errors.Is. Most are re-exported from the
// package that produces them.
var (
	// ErrDimensionMismatch indicates two vectors of different lengths were compared.
	ErrDimensionMismatch = vecmath.ErrDimensionMismatch

	// ErrDegenerateVector indicates a zero-magnitude vector, for which cosine
	// similarity is undefined.
	ErrDegenerateVector = vecmath.ErrDegenerateVector

	// ErrEmptyCorpus indicates a search over a corpus with no entries.
	ErrEmptyCorpus = search.ErrEmptyCorpus

	// ErrEmbeddingFailed indicates that embedding generation failed.
	ErrEmbeddingFailed = corpus.ErrEmbeddingFailed

	// ErrMalformedVector indicates the provider returned an unusable vector.
	ErrMalformedVector = embedder.ErrMalformedVector

	// ErrCorpusNotFound indicates that a named corpus is not in the store.
	ErrCorpusNotFound = storage.ErrCorpusNotFound

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoStore indicates a persistence call on a client without a store.
	ErrNoStore = errors.New("no corpus store configured")
)

// SearchError wraps errors with operation context.
//
// Example:
//
//	err := &SearchError{
//	    Op:  "Query",
//	    Err: ErrEmptyCorpus,
//	}
//	// Error() returns: "embedsearch: Query: corpus is empty"
type SearchError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "embedsearch: <Op>: <Err>"
func (e *SearchError) Error() string {
	return fmt.Sprintf("embedsearch: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError creates a new SearchError wrapping the given error.
//
// If err is nil, returns nil.
func NewSearchError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SearchError{
		Op:  op,
		Err: err,
	}
}

// QueryError reports that the query text could not be embedded.
//
// It matches ErrEmbeddingFailed with errors.Is and unwraps to the provider's
// error.
type QueryError struct {
	// Text is the query text that failed.
	Text string

	// Err is the underlying error.
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%v: query %q: %v", ErrEmbeddingFailed, e.Text, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEmbeddingFailed.
func (e *QueryError) Is(target error) bool {
	return target == ErrEmbeddingFailed
}
