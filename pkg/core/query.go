package core

import (
	"context"

	"github.com/oceanbase/embedsearch-go/pkg/corpus"
	"github.com/oceanbase/embedsearch-go/pkg/embedder"
	"github.com/oceanbase/embedsearch-go/pkg/search"
)

// Query embeds text with provider and returns the entry of c nearest to it.
//
// A provider failure, or a vector that is empty or contains NaN/Inf, is
// returned as *QueryError (matching ErrEmbeddingFailed). Search failures
// (ErrEmptyCorpus, ErrDimensionMismatch, ErrDegenerateVector) are returned
// as produced by search.FindNearest.
//
// Example:
//
//	result, err := core.Query(ctx, provider, "シトラス", perfumes)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Label, result.Distance)
func Query(ctx context.Context, provider embedder.Provider, text string, c *corpus.Corpus) (*search.DistanceResult, error) {
	vector, err := embedQuery(ctx, provider, text)
	if err != nil {
		return nil, err
	}
	return search.FindNearest(vector, c)
}

func embedQuery(ctx context.Context, provider embedder.Provider, text string) ([]float64, error) {
	vector, err := provider.Embed(ctx, text)
	if err != nil {
		return nil, &QueryError{Text: text, Err: err}
	}
	if err := embedder.CheckVector(vector); err != nil {
		return nil, &QueryError{Text: text, Err: err}
	}
	return vector, nil
}
