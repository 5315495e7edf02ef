package server

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// Embedder turns text into a vector. The reference implementation is
// deterministic: the same text always maps to the same unit vector, so
// examples and tests behave repeatably without a real model.
type Embedder interface {
	Embed(text string) []float32
	Dimension() int
}

type hashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) Embedder {
	if dim <= 0 {
		dim = 384
	}
	return &hashEmbedder{dim: dim}
}

func (e *hashEmbedder) Dimension() int { return e.dim }

func (e *hashEmbedder) Embed(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, e.dim)
	var norm float64
	for i := range vec {
		v := rng.Float64()*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}

	if norm == 0 {
		vec[0] = 1
		return vec
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
