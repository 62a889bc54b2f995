package corpus_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/oceanbase/embedsearch-go/pkg/corpus"
	"github.com/oceanbase/embedsearch-go/pkg/embedder"
	"github.com/oceanbase/embedsearch-go/pkg/vecmath"
)

// fakeProvider returns preset vectors per text, optionally delayed or failing.
type fakeProvider struct {
	vectors map[string][]float64
	delays  map[string]time.Duration
	fail    map[string]error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	batchCalls  atomic.Int32

	mu    sync.Mutex
	calls []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		vectors: map[string][]float64{},
		delays:  map[string]time.Duration{},
		fail:    map[string]error{},
	}
}

func (p *fakeProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxInFlight.Load()
		if n <= m || p.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	p.mu.Lock()
	p.calls = append(p.calls, text)
	p.mu.Unlock()

	if d := p.delays[text]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := p.fail[text]; err != nil {
		return nil, err
	}
	return p.vectors[text], nil
}

func (p *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	p.batchCalls.Add(1)
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (p *fakeProvider) Dimensions() int { return 2 }
func (p *fakeProvider) Close() error    { return nil }

func labels(c *corpus.Corpus) []string {
	out := []string{}
	for _, e := range c.Entries() {
		out = append(out, e.Label)
	}
	return out
}

func TestBuild_PreservesOrder(t *testing.T) {
	provider := newFakeProvider()
	entries := []corpus.Entry{
		{Label: "A", Text: "a"},
		{Label: "B", Text: "b"},
		{Label: "C", Text: "c"},
	}
	provider.vectors = map[string][]float64{"a": {1, 0}, "b": {0, 1}, "c": {1, 1}}
	// Reverse completion order: A finishes last.
	provider.delays = map[string]time.Duration{"a": 30 * time.Millisecond, "b": 15 * time.Millisecond}

	for _, concurrency := range []int{0, 1, 2, 3, 10} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			c, err := corpus.Build(context.Background(), entries, provider,
				corpus.WithConcurrency(concurrency),
				corpus.WithLogger(zaptest.NewLogger(t)),
			)
			require.NoError(t, err)
			assert.Equal(t, []string{"A", "B", "C"}, labels(c))
			assert.Equal(t, []float64{1, 0}, c.Entries()[0].Vector)
			assert.Equal(t, 2, c.Dimensions())
		})
	}
}

func TestBuild_RespectsConcurrencyLimit(t *testing.T) {
	provider := newFakeProvider()
	var entries []corpus.Entry
	for i := 0; i < 12; i++ {
		text := fmt.Sprintf("t%d", i)
		provider.vectors[text] = []float64{float64(i + 1), 1}
		provider.delays[text] = 5 * time.Millisecond
		entries = append(entries, corpus.Entry{Label: text, Text: text})
	}

	c, err := corpus.Build(context.Background(), entries, provider, corpus.WithConcurrency(3))
	require.NoError(t, err)
	assert.Equal(t, 12, c.Len())
	assert.LessOrEqual(t, provider.maxInFlight.Load(), int32(3))
}

func TestBuild_AllOrNothing(t *testing.T) {
	provider := newFakeProvider()
	provider.vectors = map[string][]float64{"a": {1, 0}, "c": {0, 1}}
	providerErr := &embedder.ProviderError{Provider: "fake", StatusCode: 500, Message: "boom"}
	provider.fail = map[string]error{"b": providerErr}

	entries := []corpus.Entry{
		{Label: "A", Text: "a"},
		{Label: "B", Text: "b"},
		{Label: "C", Text: "c"},
	}

	for _, concurrency := range []int{1, 3} {
		c, err := corpus.Build(context.Background(), entries, provider, corpus.WithConcurrency(concurrency))
		assert.Nil(t, c)
		require.Error(t, err)
		assert.ErrorIs(t, err, corpus.ErrEmbeddingFailed)

		var embErr *corpus.EmbeddingError
		require.True(t, errors.As(err, &embErr))
		assert.Equal(t, 1, embErr.Index)
		assert.Equal(t, "b", embErr.Text)

		var pErr *embedder.ProviderError
		require.True(t, errors.As(err, &pErr))
		assert.Equal(t, 500, pErr.StatusCode)
	}
}

func TestBuild_SequentialReportsLowestFailingIndex(t *testing.T) {
	provider := newFakeProvider()
	provider.vectors = map[string][]float64{"a": {1, 0}}
	provider.fail = map[string]error{
		"b": errors.New("second"),
		"c": errors.New("third"),
	}

	_, err := corpus.Build(context.Background(), []corpus.Entry{
		{Label: "A", Text: "a"},
		{Label: "B", Text: "b"},
		{Label: "C", Text: "c"},
	}, provider, corpus.WithConcurrency(1))

	var embErr *corpus.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, 1, embErr.Index)
	assert.EqualError(t, embErr.Err, "second")
}

func TestBuild_SkipsEntriesCancelledByLaterFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.vectors = map[string][]float64{"a": {1, 0}}
	provider.fail = map[string]error{
		"b": errors.New("second"),
		"c": errors.New("third"),
	}
	// The later entry fails first.
	provider.delays = map[string]time.Duration{"b": 20 * time.Millisecond}

	_, err := corpus.Build(context.Background(), []corpus.Entry{
		{Label: "A", Text: "a"},
		{Label: "B", Text: "b"},
		{Label: "C", Text: "c"},
	}, provider, corpus.WithConcurrency(3))

	var embErr *corpus.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	// b is cancelled by c's failure, so c is the first real failure.
	assert.Equal(t, 2, embErr.Index)
	assert.EqualError(t, embErr.Err, "third")
}

func TestBuild_MalformedVector(t *testing.T) {
	provider := newFakeProvider()
	provider.vectors = map[string][]float64{"a": {1, 0}, "b": {}}

	c, err := corpus.Build(context.Background(), []corpus.Entry{
		{Label: "A", Text: "a"},
		{Label: "B", Text: "b"},
	}, provider)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, corpus.ErrEmbeddingFailed)
	assert.ErrorIs(t, err, embedder.ErrMalformedVector)
}

func TestBuild_InconsistentDimensions(t *testing.T) {
	provider := newFakeProvider()
	provider.vectors = map[string][]float64{"a": {1, 0}, "b": {1, 0, 0}}

	_, err := corpus.Build(context.Background(), []corpus.Entry{
		{Label: "A", Text: "a"},
		{Label: "B", Text: "b"},
	}, provider)
	assert.ErrorIs(t, err, vecmath.ErrDimensionMismatch)

	var embErr *corpus.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, 1, embErr.Index)
}

func TestBuild_Cancellation(t *testing.T) {
	provider := newFakeProvider()
	provider.vectors = map[string][]float64{"a": {1, 0}, "b": {0, 1}}
	provider.delays = map[string]time.Duration{"b": time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	c, err := corpus.Build(ctx, []corpus.Entry{
		{Label: "A", Text: "a"},
		{Label: "B", Text: "b"},
	}, provider, corpus.WithConcurrency(2))
	assert.Nil(t, c)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, corpus.ErrEmbeddingFailed)
}

func TestBuild_AlreadyCancelled(t *testing.T) {
	provider := newFakeProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := corpus.Build(ctx, []corpus.Entry{{Label: "A", Text: "a"}}, provider)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.calls)
}

func TestBuild_Batched(t *testing.T) {
	provider := newFakeProvider()
	var entries []corpus.Entry
	var want []string
	for i := 0; i < 7; i++ {
		text := fmt.Sprintf("t%d", i)
		provider.vectors[text] = []float64{float64(i), 1}
		entries = append(entries, corpus.Entry{Label: text, Text: text})
		want = append(want, text)
	}

	c, err := corpus.Build(context.Background(), entries, provider,
		corpus.WithBatchSize(3),
		corpus.WithConcurrency(2),
	)
	require.NoError(t, err)
	assert.Equal(t, want, labels(c))
	// 3 + 3 + 1: the trailing single entry goes through Embed.
	assert.Equal(t, int32(2), provider.batchCalls.Load())
	for i, e := range c.Entries() {
		assert.Equal(t, []float64{float64(i), 1}, e.Vector)
	}
}

func TestBuild_Empty(t *testing.T) {
	c, err := corpus.Build(context.Background(), nil, newFakeProvider())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Dimensions())
}

func TestCorpus_EntriesIsACopy(t *testing.T) {
	c := corpus.New(corpus.LabeledVector{Label: "X", Vector: []float64{1, 2}})

	entries := c.Entries()
	entries[0].Vector[0] = 99
	entries[0].Label = "changed"

	assert.Equal(t, "X", c.Entries()[0].Label)
	assert.Equal(t, []float64{1, 2}, c.Entries()[0].Vector)
}

func TestCorpus_NewCopiesInput(t *testing.T) {
	vec := []float64{1, 2}
	c := corpus.New(corpus.LabeledVector{Label: "X", Vector: vec})
	vec[0] = 42
	assert.Equal(t, []float64{1, 2}, c.At(0).Vector)
}

func TestCorpus_AppendReturnsNewCorpus(t *testing.T) {
	base := corpus.New(corpus.LabeledVector{Label: "X", Vector: []float64{1, 0}})
	next := base.Append(corpus.LabeledVector{Label: "Y", Vector: []float64{0, 1}})

	assert.Equal(t, []string{"X"}, labels(base))
	assert.Equal(t, []string{"X", "Y"}, labels(next))

	var nilCorpus *corpus.Corpus
	assert.Equal(t, 0, nilCorpus.Len())
	assert.Equal(t, []string{"Y"}, labels(nilCorpus.Append(corpus.LabeledVector{Label: "Y", Vector: []float64{1}})))
}

func TestEmbeddingError_Message(t *testing.T) {
	err := &corpus.EmbeddingError{Index: 4, Text: "x", Err: errors.New("timeout")}
	assert.Equal(t, "embedding generation failed: entry 4: timeout", err.Error())
}
