// Package storage provides interfaces and types for persisting embedded corpora.
//
// Stores are collaborators of the search core: they save and reload the
// labeled vectors of a named corpus so it does not have to be re-embedded.
// They do not perform similarity search themselves.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrCorpusNotFound indicates that no corpus with the requested name exists in the store.
var ErrCorpusNotFound = errors.New("corpus not found")

// Record is one embedded entry of a stored corpus.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package.
type Record struct {
	// ID is the unique identifier of the record.
	ID int64

	// Corpus is the name of the corpus the record belongs to.
	Corpus string

	// Position is the record's index in corpus order.
	Position int

	// Label identifies the entry in search results.
	Label string

	// Text is the text that was embedded.
	Text string

	// Embedding is the vector embedding of Text.
	Embedding []float64

	// CreatedAt is when the record was stored.
	CreatedAt time.Time
}

// CorpusStore defines the interface for corpus persistence backends.
//
// All storage implementations (SQLite, PostgreSQL, OceanBase, CSV) must implement this interface.
type CorpusStore interface {
	// Save stores records as the corpus called name, replacing any existing
	// corpus with that name. Record positions define corpus order.
	Save(ctx context.Context, name string, records []*Record) error

	// Load returns the records of the named corpus ordered by position.
	//
	// Returns ErrCorpusNotFound if the corpus does not exist.
	Load(ctx context.Context, name string) ([]*Record, error)

	// Delete removes the named corpus. Deleting a missing corpus returns ErrCorpusNotFound.
	Delete(ctx context.Context, name string) error

	// List returns the names of stored corpora in lexical order.
	List(ctx context.Context) ([]string, error)

	// Close closes the store and releases resources.
	Close() error
}
