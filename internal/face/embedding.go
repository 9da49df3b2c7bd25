package face

import "math"

// Embedding is a fixed-length face feature vector with unit L2 norm,
// used for similarity comparison against stored identities.
type Embedding struct {
	Values []float32
}

// NewEmbedding wraps a raw model output vector, normalizing it to unit
// length. A zero vector is passed through unchanged rather than divided
// by its zero norm.
func NewEmbedding(raw []float32) Embedding {
	values := make([]float32, len(raw))
	copy(values, raw)

	var norm float64
	for _, v := range values {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return Embedding{Values: values}
	}

	norm = math.Sqrt(norm)
	for i, v := range values {
		values[i] = float32(float64(v) / norm)
	}
	return Embedding{Values: values}
}

// Dim returns the vector length.
func (e Embedding) Dim() int { return len(e.Values) }

// Cosine is the cosine similarity between two embeddings, in [-1, 1].
// Mismatched or empty vectors read as 0.
func Cosine(a, b Embedding) float64 {
	if a.Dim() != b.Dim() || a.Dim() == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a.Values {
		av, bv := float64(a.Values[i]), float64(b.Values[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
