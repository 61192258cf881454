package nlp

import "math"

// Embedder produces vector embeddings for a batch of texts. This module
// ships no concrete implementation; nlp only depends on this small
// interface.
type Embedder interface {
	Embed(texts []string) ([][]float64, string, error)
}

// EmbedTexts delegates to embedder and optionally L2-normalizes the
// resulting vectors.
func EmbedTexts(embedder Embedder, texts []string, normalize bool) ([][]float64, string, error) {
	vecs, label, err := embedder.Embed(texts)
	if err != nil {
		return nil, "", err
	}
	if normalize {
		for i, v := range vecs {
			vecs[i] = l2Normalize(v)
		}
	}
	return vecs, label, nil
}

func l2Normalize(vec []float64) []float64 {
	sum := 0.0
	for _, x := range vec {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm <= 0 {
		return vec
	}
	out := make([]float64, len(vec))
	for i, x := range vec {
		out[i] = x / norm
	}
	return out
}
