// Package vector holds the sparse vector representation shared by the
// encoder and the index, and the cosine similarity used to rank records.
package vector

import "math"

// Epsilon is the norm assigned to vectors with no non-zero weight.
const Epsilon = 1e-12

// Sparse is a vector stored as parallel arrays of ascending indices and values.
type Sparse struct {
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
	Norm    float64   `json:"norm"`
}

// Len returns the number of non-zero dimensions.
func (v Sparse) Len() int { return len(v.Indices) }

// Norm returns the L2 norm of values, floored to Epsilon.
func Norm(values []float64) float64 {
	sum := 0.0
	for _, x := range values {
		sum += x * x
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return Epsilon
	}
	return n
}

// Dot computes the dot product of two sparse vectors by merging their
// ascending index arrays.
func Dot(a, b Sparse) float64 {
	i, j := 0, 0
	sum := 0.0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Cosine returns the cosine similarity of a and b. Norms at or below zero are
// replaced with Epsilon so the division is always defined.
func Cosine(a, b Sparse) float64 {
	return Dot(a, b) / (floor(a.Norm) * floor(b.Norm))
}

func floor(n float64) float64 {
	if n <= 0 {
		return Epsilon
	}
	return n
}
