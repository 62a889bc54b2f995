package core_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	embedsearch "github.com/oceanbase/embedsearch-go/pkg/core"
	"github.com/oceanbase/embedsearch-go/pkg/corpus"
	"github.com/oceanbase/embedsearch-go/pkg/embedder"
)

// tableProvider returns fixed vectors per text.
type tableProvider struct {
	vectors map[string][]float64
	err     error
}

func (p *tableProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if p.err != nil {
		return nil, p.err
	}
	v, ok := p.vectors[text]
	if !ok {
		return nil, &embedder.ProviderError{Provider: "table", StatusCode: 404, Message: "unknown text"}
	}
	return v, nil
}

func (p *tableProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *tableProvider) Dimensions() int { return 2 }

func (p *tableProvider) Close() error { return nil }

func perfumeCorpus() *corpus.Corpus {
	return corpus.New(
		corpus.LabeledVector{Label: "Brand シトラス", Vector: []float64{1, 0}},
		corpus.LabeledVector{Label: "Brand 鉄", Vector: []float64{0, 1}},
	)
}

func TestQuery_Nearest(t *testing.T) {
	provider := &tableProvider{vectors: map[string][]float64{"シトラス": {0.9, 0.1}}}

	result, err := embedsearch.Query(context.Background(), provider, "シトラス", perfumeCorpus())
	require.NoError(t, err)
	assert.Equal(t, "Brand シトラス", result.Label)
	assert.InDelta(t, 1-0.9/math.Sqrt(0.82), result.Distance, 1e-12)
	assert.Equal(t, []float64{1, 0}, result.Vector)
}

func TestQuery_TieGoesToFirstEntry(t *testing.T) {
	provider := &tableProvider{vectors: map[string][]float64{"q": {1, 0}}}
	c := corpus.New(
		corpus.LabeledVector{Label: "X", Vector: []float64{1, 1}},
		corpus.LabeledVector{Label: "Y", Vector: []float64{1, -1}},
	)

	result, err := embedsearch.Query(context.Background(), provider, "q", c)
	require.NoError(t, err)
	assert.Equal(t, "X", result.Label)
}

func TestQuery_ProviderFailure(t *testing.T) {
	cause := &embedder.ProviderError{Provider: "table", StatusCode: 500, Message: "boom"}
	provider := &tableProvider{err: cause}

	_, err := embedsearch.Query(context.Background(), provider, "シトラス", perfumeCorpus())
	require.Error(t, err)
	assert.ErrorIs(t, err, embedsearch.ErrEmbeddingFailed)

	var queryErr *embedsearch.QueryError
	require.True(t, errors.As(err, &queryErr))
	assert.Equal(t, "シトラス", queryErr.Text)

	var providerErr *embedder.ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, 500, providerErr.StatusCode)
}

func TestQuery_MalformedVector(t *testing.T) {
	tests := []struct {
		name   string
		vector []float64
	}{
		{"nil", nil},
		{"empty", []float64{}},
		{"nan", []float64{math.NaN(), 1}},
		{"inf", []float64{math.Inf(1), 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &tableProvider{vectors: map[string][]float64{"q": tt.vector}}
			_, err := embedsearch.Query(context.Background(), provider, "q", perfumeCorpus())
			assert.ErrorIs(t, err, embedsearch.ErrEmbeddingFailed)
			assert.ErrorIs(t, err, embedsearch.ErrMalformedVector)
		})
	}
}

func TestQuery_SearchErrorsPropagate(t *testing.T) {
	provider := &tableProvider{vectors: map[string][]float64{
		"q":    {1, 0},
		"q3":   {1, 0, 0},
		"zero": {0, 0},
	}}
	ctx := context.Background()

	_, err := embedsearch.Query(ctx, provider, "q", corpus.New())
	assert.ErrorIs(t, err, embedsearch.ErrEmptyCorpus)
	assert.NotErrorIs(t, err, embedsearch.ErrEmbeddingFailed)

	_, err = embedsearch.Query(ctx, provider, "q3", perfumeCorpus())
	assert.ErrorIs(t, err, embedsearch.ErrDimensionMismatch)

	_, err = embedsearch.Query(ctx, provider, "zero", perfumeCorpus())
	assert.ErrorIs(t, err, embedsearch.ErrDegenerateVector)
}
