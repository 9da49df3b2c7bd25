package face

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func l2(values []float32) float64 {
	var sum float64
	for _, v := range values {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestNewEmbeddingNormalizes(t *testing.T) {
	e := NewEmbedding([]float32{3, 4})
	assert.InDelta(t, 1.0, l2(e.Values), 1e-3)
	assert.InDelta(t, 0.6, float64(e.Values[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(e.Values[1]), 1e-6)
}

func TestNewEmbeddingLargeVector(t *testing.T) {
	raw := make([]float32, 512)
	for i := range raw {
		raw[i] = float32(i%7) - 3
	}
	e := NewEmbedding(raw)
	assert.Equal(t, 512, e.Dim())
	assert.InDelta(t, 1.0, l2(e.Values), 1e-3)
}

func TestNewEmbeddingZeroVectorUnchanged(t *testing.T) {
	e := NewEmbedding([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, e.Values)
}

func TestNewEmbeddingCopiesInput(t *testing.T) {
	raw := []float32{1, 0}
	e := NewEmbedding(raw)
	raw[0] = 99
	assert.InDelta(t, 1.0, float64(e.Values[0]), 1e-6)
}

func TestCosine(t *testing.T) {
	a := NewEmbedding([]float32{1, 0})
	b := NewEmbedding([]float32{1, 0})
	c := NewEmbedding([]float32{0, 1})
	d := NewEmbedding([]float32{-1, 0})

	assert.InDelta(t, 1.0, Cosine(a, b), 1e-6)
	assert.InDelta(t, 0.0, Cosine(a, c), 1e-6)
	assert.InDelta(t, -1.0, Cosine(a, d), 1e-6)
}

func TestCosineMismatchedDims(t *testing.T) {
	a := NewEmbedding([]float32{1, 0})
	b := NewEmbedding([]float32{1, 0, 0})
	assert.Equal(t, 0.0, Cosine(a, b))
	assert.Equal(t, 0.0, Cosine(Embedding{}, Embedding{}))
}
