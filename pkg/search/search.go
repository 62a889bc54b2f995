// Package search implements exact nearest-neighbor search over a corpus.
//
// Search is a linear scan in corpus order using cosine distance. It is meant
// for small in-memory corpora (up to a few thousand vectors); there is no index.
package search

import (
	"errors"
	"fmt"
	"sort"

	"github.com/oceanbase/embedsearch-go/pkg/corpus"
	"github.com/oceanbase/embedsearch-go/pkg/vecmath"
)

// ErrEmptyCorpus indicates that a search was attempted against a corpus with no entries.
var ErrEmptyCorpus = errors.New("corpus is empty")

// DistanceResult is a corpus entry together with its distance to a query.
type DistanceResult struct {
	// Label is the label of the matched entry.
	Label string

	// Vector is the matched entry's embedding.
	Vector []float64

	// Distance is the cosine distance to the query, in [0, 2].
	Distance float64
}

// FindNearest returns the entry of c closest to query by cosine distance.
//
// Entries are scanned in corpus order and the running minimum only moves on a
// strictly smaller distance, so the first of several equidistant entries wins.
//
// Returns ErrEmptyCorpus for an empty (or nil) corpus. A vector of the wrong
// dimension or with zero magnitude aborts the scan at the first offending
// entry with vecmath.ErrDimensionMismatch or vecmath.ErrDegenerateVector.
func FindNearest(query []float64, c *corpus.Corpus) (*DistanceResult, error) {
	if c.Len() == 0 {
		return nil, ErrEmptyCorpus
	}

	best := -1
	var bestDistance float64
	for i := 0; i < c.Len(); i++ {
		d, err := distanceAt(query, c, i)
		if err != nil {
			return nil, err
		}
		if best < 0 || d < bestDistance {
			best = i
			bestDistance = d
		}
	}

	return result(c, best, bestDistance), nil
}

// Rank returns every entry of c with its distance to query, nearest first.
//
// The sort is stable, so equidistant entries keep corpus order. Errors are the
// same as for FindNearest.
func Rank(query []float64, c *corpus.Corpus) ([]DistanceResult, error) {
	if c.Len() == 0 {
		return nil, ErrEmptyCorpus
	}

	results := make([]DistanceResult, c.Len())
	for i := range results {
		d, err := distanceAt(query, c, i)
		if err != nil {
			return nil, err
		}
		results[i] = *result(c, i, d)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results, nil
}

// FindWithin returns ranked entries whose distance to query is at most
// maxDistance, keeping at most limit results (limit <= 0 keeps all).
//
// An empty result is not an error; an empty corpus is.
func FindWithin(query []float64, c *corpus.Corpus, maxDistance float64, limit int) ([]DistanceResult, error) {
	ranked, err := Rank(query, c)
	if err != nil {
		return nil, err
	}

	n := sort.Search(len(ranked), func(i int) bool {
		return ranked[i].Distance > maxDistance
	})
	ranked = ranked[:n]

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func distanceAt(query []float64, c *corpus.Corpus, i int) (float64, error) {
	entry := c.At(i)
	d, err := vecmath.CosineDistance(query, entry.Vector)
	if err != nil {
		return 0, fmt.Errorf("entry %d (%q): %w", i, entry.Label, err)
	}
	return d, nil
}

func result(c *corpus.Corpus, i int, distance float64) *DistanceResult {
	entry := c.At(i)
	vec := make([]float64, len(entry.Vector))
	copy(vec, entry.Vector)
	return &DistanceResult{
		Label:    entry.Label,
		Vector:   vec,
		Distance: distance,
	}
}
