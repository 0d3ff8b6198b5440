package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

// HashProvider derives a unit-length pseudo-random vector from the text
// itself. It needs no network access and is stable across runs, which makes
// it useful for dry runs and tests; it carries no semantic information.
type HashProvider struct {
	dimensions int
}

var _ Provider = &HashProvider{}

func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &HashProvider{dimensions: dimensions}
}

func (p *HashProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(sum[:8]))))

	vec := make([]float32, p.dimensions)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (p *HashProvider) GetModel() EmbeddingModel {
	return EmbeddingModel{
		Name:       "hash",
		Dimensions: p.dimensions,
	}
}
