// Package corpus builds and holds the labeled vector set searched by queries.
//
// A Corpus is produced in one step by Build (or New) and is immutable
// afterwards. Build embeds every entry through an embedder.Provider; entry
// order in the result always matches input order, however many embedding
// calls run concurrently.
package corpus

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oceanbase/embedsearch-go/pkg/embedder"
	"github.com/oceanbase/embedsearch-go/pkg/vecmath"
)

// DefaultConcurrency is the number of concurrent embedding calls used by Build
// when no WithConcurrency option is given.
const DefaultConcurrency = 5

// ErrEmbeddingFailed indicates that an embedding could not be obtained for a text.
var ErrEmbeddingFailed = errors.New("embedding generation failed")

// Entry is a labeled text to be embedded.
type Entry struct {
	// Label identifies the entry in search results. Labels need not be unique.
	Label string

	// Text is the content sent to the embedding provider.
	Text string
}

// LabeledVector pairs a label with its embedding.
type LabeledVector struct {
	Label  string
	Vector []float64
}

// Corpus is an ordered, immutable sequence of labeled vectors.
type Corpus struct {
	entries []LabeledVector
}

// EmbeddingError reports the entry whose embedding failed during Build.
//
// It matches ErrEmbeddingFailed with errors.Is and unwraps to the cause.
type EmbeddingError struct {
	// Index is the position of the failing entry in the Build input.
	Index int

	// Text is the text that was being embedded.
	Text string

	// Err is the underlying cause.
	Err error
}

// Error returns a formatted error message.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%v: entry %d: %v", ErrEmbeddingFailed, e.Index, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEmbeddingFailed.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbeddingFailed
}

// New returns a ready corpus holding copies of vectors, in the given order.
func New(vectors ...LabeledVector) *Corpus {
	entries := make([]LabeledVector, len(vectors))
	for i, v := range vectors {
		entries[i] = cloneVector(v)
	}
	return &Corpus{entries: entries}
}

// Entries returns a copy of the corpus entries in corpus order.
// Mutating the result does not affect the corpus.
func (c *Corpus) Entries() []LabeledVector {
	if c == nil {
		return nil
	}
	out := make([]LabeledVector, len(c.entries))
	for i, v := range c.entries {
		out[i] = cloneVector(v)
	}
	return out
}

// Len returns the number of entries. A nil corpus is empty.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// At returns the entry at position i without copying its vector.
// Callers must not modify the returned vector.
func (c *Corpus) At(i int) LabeledVector {
	return c.entries[i]
}

// Dimensions returns the length of the first entry's vector, or 0 if empty.
func (c *Corpus) Dimensions() int {
	if c.Len() == 0 {
		return 0
	}
	return len(c.entries[0].Vector)
}

// Append returns a new corpus with vectors added after the existing entries.
// The receiver is left unchanged.
func (c *Corpus) Append(vectors ...LabeledVector) *Corpus {
	entries := make([]LabeledVector, 0, c.Len()+len(vectors))
	if c != nil {
		entries = append(entries, c.entries...)
	}
	for _, v := range vectors {
		entries = append(entries, cloneVector(v))
	}
	return &Corpus{entries: entries}
}

// Build embeds entries with provider and returns a ready corpus.
//
// Embedding calls may run concurrently (see WithConcurrency and WithBatchSize),
// but the returned corpus preserves input order. Construction is
// all-or-nothing: on the first failure, or when ctx is cancelled, outstanding
// calls are cancelled and an *EmbeddingError is returned with no corpus. When
// several entries fail, the error reports the lowest index among the failures
// observed before cancellation; an entry cancelled by a later entry's failure
// is not counted as failed.
//
// Every vector is validated with embedder.CheckVector, and all vectors must
// share the dimension of the first entry.
func Build(ctx context.Context, entries []Entry, provider embedder.Provider, opts ...BuildOption) (*Corpus, error) {
	o := applyBuildOptions(opts)

	if len(entries) == 0 {
		return &Corpus{entries: []LabeledVector{}}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, &EmbeddingError{Index: 0, Text: entries[0].Text, Err: err}
	}

	// Each slot is written by exactly one goroutine.
	vectors := make([][]float64, len(entries))
	failures := make([]error, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for start := 0; start < len(entries); start += o.batchSize {
		end := min(start+o.batchSize, len(entries))

		// Go blocks while the limit is reached; stop scheduling once cancelled.
		if gctx.Err() != nil {
			break
		}

		start := start
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				failures[start] = err
				return err
			}
			if end-start == 1 {
				return embedOne(gctx, provider, entries, start, vectors, failures, o.logger)
			}
			return embedBatch(gctx, provider, entries, start, end, vectors, failures, o.logger)
		})
	}

	waitErr := g.Wait()

	if err := firstFailure(entries, failures); err != nil {
		o.logger.Warn("corpus build failed",
			zap.Int("index", err.Index),
			zap.Int("entries", len(entries)),
			zap.Error(err.Err))
		return nil, err
	}
	if waitErr != nil {
		return nil, &EmbeddingError{Index: 0, Text: entries[0].Text, Err: waitErr}
	}
	// Cancellation that arrived after scheduling stopped leaves empty slots.
	for i := range vectors {
		if vectors[i] == nil {
			cause := ctx.Err()
			if cause == nil {
				cause = context.Canceled
			}
			return nil, &EmbeddingError{Index: i, Text: entries[i].Text, Err: cause}
		}
	}

	dims := len(vectors[0])
	built := make([]LabeledVector, len(entries))
	for i, vec := range vectors {
		if len(vec) != dims {
			return nil, &EmbeddingError{
				Index: i,
				Text:  entries[i].Text,
				Err:   fmt.Errorf("%w: %d != %d", vecmath.ErrDimensionMismatch, len(vec), dims),
			}
		}
		built[i] = LabeledVector{Label: entries[i].Label, Vector: vec}
	}

	o.logger.Debug("corpus built",
		zap.Int("entries", len(built)),
		zap.Int("dimensions", dims))

	return &Corpus{entries: built}, nil
}

func embedOne(ctx context.Context, provider embedder.Provider, entries []Entry, i int, vectors [][]float64, failures []error, logger *zap.Logger) error {
	vec, err := provider.Embed(ctx, entries[i].Text)
	if err == nil {
		err = embedder.CheckVector(vec)
	}
	if err != nil {
		failures[i] = err
		return err
	}
	vectors[i] = vec
	logger.Debug("entry embedded", zap.Int("index", i), zap.String("label", entries[i].Label))
	return nil
}

func embedBatch(ctx context.Context, provider embedder.Provider, entries []Entry, start, end int, vectors [][]float64, failures []error, logger *zap.Logger) error {
	texts := make([]string, end-start)
	for i := range texts {
		texts[i] = entries[start+i].Text
	}

	batch, err := provider.EmbedBatch(ctx, texts)
	if err != nil {
		failures[start] = err
		return err
	}
	if len(batch) != len(texts) {
		err := fmt.Errorf("%w: batch returned %d vectors for %d texts", embedder.ErrMalformedVector, len(batch), len(texts))
		failures[start] = err
		return err
	}
	for i, vec := range batch {
		if err := embedder.CheckVector(vec); err != nil {
			failures[start+i] = err
			return err
		}
	}
	copy(vectors[start:end], batch)
	logger.Debug("batch embedded", zap.Int("start", start), zap.Int("size", len(texts)))
	return nil
}

// firstFailure returns the lowest-index failure that is not merely the
// cancellation caused by another entry's failure.
func firstFailure(entries []Entry, failures []error) *EmbeddingError {
	var cancelled *EmbeddingError
	for i, err := range failures {
		if err == nil {
			continue
		}
		e := &EmbeddingError{Index: i, Text: entries[i].Text, Err: err}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if cancelled == nil {
				cancelled = e
			}
			continue
		}
		return e
	}
	return cancelled
}

func cloneVector(v LabeledVector) LabeledVector {
	vec := make([]float64, len(v.Vector))
	copy(vec, v.Vector)
	return LabeledVector{Label: v.Label, Vector: vec}
}
