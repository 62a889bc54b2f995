// Package vecmath provides the numeric routines used for similarity search.
//
// All functions are pure and operate on float64 slices. Vectors compared
// against each other must have the same length; a mismatch is reported as
// ErrDimensionMismatch rather than silently truncated.
package vecmath

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch indicates that two vectors of different length were compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDegenerateVector indicates that a vector has zero magnitude, so its
	// direction (and therefore cosine similarity) is undefined.
	ErrDegenerateVector = errors.New("degenerate vector: zero magnitude")
)

// DotProduct returns the sum of the elementwise products of a and b.
func DotProduct(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// Magnitude returns the Euclidean norm of a. It is 0 for an all-zero or empty vector.
func Magnitude(a []float64) float64 {
	var sum float64
	for _, v := range a {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns dot(a, b) / (|a| * |b|).
//
// Returns ErrDimensionMismatch if the lengths differ and ErrDegenerateVector
// if either vector has zero magnitude.
func CosineSimilarity(a, b []float64) (float64, error) {
	dot, err := DotProduct(a, b)
	if err != nil {
		return 0, err
	}

	magA := Magnitude(a)
	magB := Magnitude(b)
	if magA == 0 || magB == 0 {
		return 0, ErrDegenerateVector
	}

	return dot / (magA * magB), nil
}

// CosineDistance returns 1 - CosineSimilarity(a, b).
//
// The result lies in [0, 2] for valid inputs. It is not clamped, so rounding
// may produce values a few ulps outside that range.
func CosineDistance(a, b []float64) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}
