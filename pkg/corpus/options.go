package corpus

import "go.uber.org/zap"

// BuildOption is a function type for configuring Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	concurrency int
	batchSize   int
	logger      *zap.Logger
}

// WithConcurrency sets the maximum number of embedding calls in flight.
// Values below 1 mean strictly sequential execution.
func WithConcurrency(n int) BuildOption {
	return func(o *buildOptions) {
		o.concurrency = n
	}
}

// WithBatchSize groups consecutive entries into EmbedBatch calls of at most n
// texts. Values below 2 embed one text per call.
//
// Example:
//
//	c, err := corpus.Build(ctx, entries, provider,
//	    corpus.WithBatchSize(16),
//	    corpus.WithConcurrency(4),
//	)
func WithBatchSize(n int) BuildOption {
	return func(o *buildOptions) {
		o.batchSize = n
	}
}

// WithLogger sets the logger used for build progress and failures.
func WithLogger(logger *zap.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

func applyBuildOptions(opts []BuildOption) *buildOptions {
	o := &buildOptions{
		concurrency: DefaultConcurrency,
		batchSize:   1,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.batchSize < 1 {
		o.batchSize = 1
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}
