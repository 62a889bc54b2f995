package core

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/oceanbase/embedsearch-go/pkg/corpus"
	"github.com/oceanbase/embedsearch-go/pkg/embedder"
	mockEmbedder "github.com/oceanbase/embedsearch-go/pkg/embedder/mock"
	openaiEmbedder "github.com/oceanbase/embedsearch-go/pkg/embedder/openai"
	qwenEmbedder "github.com/oceanbase/embedsearch-go/pkg/embedder/qwen"
	"github.com/oceanbase/embedsearch-go/pkg/search"
	"github.com/oceanbase/embedsearch-go/pkg/storage"
	"github.com/oceanbase/embedsearch-go/pkg/storage/csvfile"
	"github.com/oceanbase/embedsearch-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/embedsearch-go/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/embedsearch-go/pkg/storage/sqlite"
)

// Client builds corpora and answers nearest-neighbor queries with a single
// embedding provider.
//
// A Client holds no mutable state after construction and can be used
// concurrently from multiple goroutines. Corpora are owned by the caller.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	perfumes, _ := client.BuildCorpus(ctx, []corpus.Entry{
//	    {Label: "Brand A", Text: "A fresh citrus scent"},
//	    {Label: "Brand B", Text: "A classic woody aroma"},
//	})
//	nearest, _ := client.Query(ctx, "citrus", perfumes)
type Client struct {
	// embedder generates query and corpus vectors.
	embedder embedder.Provider

	// store persists corpora (nil if not configured).
	store storage.CorpusStore

	logger *zap.Logger

	concurrency int
	batchSize   int
	maxDistance float64

	// snowflakeNode generates record IDs for SaveCorpus.
	snowflakeNode *snowflake.Node
}

// NewClient creates a client from cfg.
//
// The client is initialized with:
//   - Embedding provider (OpenAI, Qwen, or the offline mock)
//   - Corpus store (SQLite, PostgreSQL, OceanBase, CSV, or none)
//   - zap logger built from cfg.Log
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	provider, err := initEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	store, err := initStore(cfg.Store)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	opts := []ClientOption{
		WithLogger(logger),
		WithConcurrency(cfg.Search.Concurrency),
		WithBatchSize(cfg.Search.BatchSize),
		WithDefaultMaxDistance(cfg.Search.MaxDistance),
	}
	if store != nil {
		opts = append(opts, WithStore(store))
	}

	client, err := NewClientWithProvider(provider, opts...)
	if err != nil {
		_ = provider.Close()
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	logger.Info("embedsearch client ready",
		zap.String("embedder", cfg.Embedder.Provider),
		zap.String("store", cfg.Store.Provider),
		zap.Int("concurrency", client.concurrency),
		zap.Int("batch_size", client.batchSize),
	)
	return client, nil
}

// NewClientWithProvider creates a client around an existing provider. It is
// the entry point for tests and for callers that construct providers
// themselves.
func NewClientWithProvider(provider embedder.Provider, opts ...ClientOption) (*Client, error) {
	if provider == nil {
		return nil, NewSearchError("NewClient", fmt.Errorf("%w: nil embedding provider", ErrInvalidConfig))
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewSearchError("NewClient", err)
	}

	client := &Client{
		embedder:      provider,
		logger:        zap.NewNop(),
		concurrency:   corpus.DefaultConcurrency,
		batchSize:     1,
		snowflakeNode: node,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Embedder returns the client's embedding provider.
func (c *Client) Embedder() embedder.Provider {
	return c.embedder
}

// BuildCorpus embeds entries and returns them as a corpus in input order.
//
// Construction is all-or-nothing: if any entry fails, no corpus is returned
// and the error (a *corpus.EmbeddingError, matching ErrEmbeddingFailed) names
// the failing entry. Cancelling ctx aborts the build the same way.
func (c *Client) BuildCorpus(ctx context.Context, entries []corpus.Entry) (*corpus.Corpus, error) {
	built, err := corpus.Build(ctx, entries, c.embedder,
		corpus.WithConcurrency(c.concurrency),
		corpus.WithBatchSize(c.batchSize),
		corpus.WithLogger(c.logger),
	)
	if err != nil {
		return nil, NewSearchError("BuildCorpus", err)
	}
	return built, nil
}

// Query embeds text and returns the nearest entry of corp.
//
// See the package-level Query for the error contract; errors are wrapped in
// *SearchError with Op "Query".
func (c *Client) Query(ctx context.Context, text string, corp *corpus.Corpus) (*search.DistanceResult, error) {
	result, err := Query(ctx, c.embedder, text, corp)
	if err != nil {
		return nil, NewSearchError("Query", err)
	}

	c.logger.Debug("query answered",
		zap.String("label", result.Label),
		zap.Float64("distance", result.Distance),
	)
	return result, nil
}

// Search embeds text and returns the entries of corp ranked by distance,
// nearest first, with ties in corpus order.
//
// Example:
//
//	results, err := client.Search(ctx, "citrus", perfumes,
//	    core.WithLimit(3),
//	    core.WithMaxDistance(0.5),
//	)
func (c *Client) Search(ctx context.Context, text string, corp *corpus.Corpus, opts ...SearchOption) ([]search.DistanceResult, error) {
	searchOpts := applySearchOptions(opts)

	maxDistance := c.maxDistance
	if searchOpts.MaxDistance != nil {
		maxDistance = *searchOpts.MaxDistance
	} else if maxDistance == 0 {
		maxDistance = math.Inf(1)
	}

	vector, err := embedQuery(ctx, c.embedder, text)
	if err != nil {
		return nil, NewSearchError("Search", err)
	}

	results, err := search.FindWithin(vector, corp, maxDistance, searchOpts.Limit)
	if err != nil {
		return nil, NewSearchError("Search", err)
	}
	return results, nil
}

// SaveCorpus stores corp under name, replacing any corpus of that name.
// entries, when non-nil, supplies the source text of each corpus entry and
// must have the same length as corp.
//
// Returns ErrNoStore if the client has no store and ErrEmptyCorpus if corp
// has no entries.
func (c *Client) SaveCorpus(ctx context.Context, name string, entries []corpus.Entry, corp *corpus.Corpus) error {
	if c.store == nil {
		return NewSearchError("SaveCorpus", ErrNoStore)
	}
	// Stores keep no row for an empty corpus, so it could never be loaded back.
	if corp.Len() == 0 {
		return NewSearchError("SaveCorpus", ErrEmptyCorpus)
	}
	if entries != nil && len(entries) != corp.Len() {
		return NewSearchError("SaveCorpus", fmt.Errorf("%d entries for a corpus of %d", len(entries), corp.Len()))
	}

	records := make([]*storage.Record, corp.Len())
	for i, lv := range corp.Entries() {
		record := &storage.Record{
			ID:        c.snowflakeNode.Generate().Int64(),
			Corpus:    name,
			Position:  i,
			Label:     lv.Label,
			Embedding: lv.Vector,
		}
		if entries != nil {
			record.Text = entries[i].Text
		}
		records[i] = record
	}

	if err := c.store.Save(ctx, name, records); err != nil {
		return NewSearchError("SaveCorpus", err)
	}

	c.logger.Info("corpus saved", zap.String("corpus", name), zap.Int("entries", len(records)))
	return nil
}

// LoadCorpus reads the named corpus back from the store in its saved order.
//
// Returns an error matching ErrCorpusNotFound if the store has no such corpus,
// and ErrNoStore if the client has no store.
func (c *Client) LoadCorpus(ctx context.Context, name string) (*corpus.Corpus, error) {
	if c.store == nil {
		return nil, NewSearchError("LoadCorpus", ErrNoStore)
	}

	records, err := c.store.Load(ctx, name)
	if err != nil {
		return nil, NewSearchError("LoadCorpus", err)
	}

	vectors := make([]corpus.LabeledVector, len(records))
	for i, r := range records {
		vectors[i] = corpus.LabeledVector{Label: r.Label, Vector: r.Embedding}
	}
	return corpus.New(vectors...), nil
}

// DeleteCorpus removes the named corpus from the store.
func (c *Client) DeleteCorpus(ctx context.Context, name string) error {
	if c.store == nil {
		return NewSearchError("DeleteCorpus", ErrNoStore)
	}
	return NewSearchError("DeleteCorpus", c.store.Delete(ctx, name))
}

// ListCorpora returns the names of the stored corpora.
func (c *Client) ListCorpora(ctx context.Context) ([]string, error) {
	if c.store == nil {
		return nil, NewSearchError("ListCorpora", ErrNoStore)
	}
	names, err := c.store.List(ctx)
	if err != nil {
		return nil, NewSearchError("ListCorpora", err)
	}
	return names, nil
}

// Close releases the store and the embedding provider, and flushes the logger.
func (c *Client) Close() error {
	var errs []error

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	_ = c.logger.Sync()

	if len(errs) > 0 {
		return NewSearchError("Close", errors.Join(errs...))
	}
	return nil
}

// initEmbedder initializes the embedder provider.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case ProviderQwen:
		return qwenEmbedder.NewClient(&qwenEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case ProviderMock:
		return mockEmbedder.NewClient(cfg.Dimensions), nil
	default:
		return nil, NewSearchError("initEmbedder", ErrInvalidConfig)
	}
}

// initStore initializes the corpus store. A nil store means persistence is off.
func initStore(cfg StoreConfig) (storage.CorpusStore, error) {
	var (
		store storage.CorpusStore
		err   error
	)

	switch cfg.Provider {
	case "", StoreNone:
		return nil, nil
	case StoreSQLite:
		store, err = sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:    cfg.SQLite.Path,
			TableName: cfg.SQLite.Table,
		})
	case StorePostgres:
		store, err = postgresStore.NewClient(&postgresStore.Config{
			Host:      cfg.Postgres.Host,
			Port:      cfg.Postgres.Port,
			User:      cfg.Postgres.User,
			Password:  cfg.Postgres.Password,
			DBName:    cfg.Postgres.DBName,
			TableName: cfg.Postgres.Table,
			SSLMode:   cfg.Postgres.SSLMode,
		})
	case StoreOceanBase:
		store, err = oceanbase.NewClient(&oceanbase.Config{
			Host:      cfg.OceanBase.Host,
			Port:      cfg.OceanBase.Port,
			User:      cfg.OceanBase.User,
			Password:  cfg.OceanBase.Password,
			DBName:    cfg.OceanBase.DBName,
			TableName: cfg.OceanBase.Table,
		})
	case StoreCSV:
		store, err = csvfile.NewClient(&csvfile.Config{Dir: cfg.CSV.Dir})
	default:
		return nil, NewSearchError("initStore", ErrInvalidConfig)
	}

	if err != nil {
		return nil, NewSearchError("initStore", err)
	}
	return store, nil
}
