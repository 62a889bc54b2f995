package core

import (
	"go.uber.org/zap"

	"github.com/oceanbase/embedsearch-go/pkg/storage"
)

// ClientOption is a function type for configuring a Client built with
// NewClientWithProvider.
type ClientOption func(*Client)

// WithLogger sets the client's logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConcurrency sets the maximum number of embedding calls in flight while
// building a corpus.
func WithConcurrency(n int) ClientOption {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithBatchSize sets how many texts are sent per provider request while
// building a corpus.
func WithBatchSize(n int) ClientOption {
	return func(c *Client) {
		c.batchSize = n
	}
}

// WithStore attaches a corpus store, enabling SaveCorpus and LoadCorpus.
// The client closes the store on Close.
//
// Example:
//
//	store, _ := sqlite.NewClient(&sqlite.Config{DBPath: "./embedsearch.db"})
//	client, _ := core.NewClientWithProvider(provider, core.WithStore(store))
func WithStore(store storage.CorpusStore) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithDefaultMaxDistance sets the threshold Search applies when the call does
// not pass WithMaxDistance. 0 disables it.
func WithDefaultMaxDistance(d float64) ClientOption {
	return func(c *Client) {
		c.maxDistance = d
	}
}

// SearchOption is a function type for configuring Search operations.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for Search operations.
type SearchOptions struct {
	// Limit is the maximum number of results. 0 means no limit.
	Limit int

	// MaxDistance drops results farther than this cosine distance.
	// Nil falls back to the client's default.
	MaxDistance *float64
}

// WithLimit caps the number of Search results.
//
// Example:
//
//	results, _ := client.Search(ctx, "citrus", c, core.WithLimit(3))
func WithLimit(limit int) SearchOption {
	return func(opts *SearchOptions) {
		opts.Limit = limit
	}
}

// WithMaxDistance keeps only results with distance <= d. Cosine distance lies
// in [0, 2], so 2 keeps everything.
func WithMaxDistance(d float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.MaxDistance = &d
	}
}

func applySearchOptions(opts []SearchOption) *SearchOptions {
	searchOpts := &SearchOptions{}
	for _, opt := range opts {
		opt(searchOpts)
	}
	return searchOpts
}
