// Package embedding turns text into dense vectors for the advisory classifier,
// the knowledge retriever and the issue classifier's embedding path.
package embedding

import (
	"context"
	"math"
)

// Encoder produces a fixed-length vector for a text.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// CosineSimilarity returns the cosine of the angle between a and b. A zero
// norm on either side yields 0. Vectors of different length are compared
// over their common prefix.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// L2Distance is the Euclidean distance over the common prefix.
func L2Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
