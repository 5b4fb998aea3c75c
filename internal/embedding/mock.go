package embedding

import (
	"context"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// MockEmbedder is a deterministic test double: the same text always maps to
// the same unit vector, and distinct texts almost always differ.
type MockEmbedder struct {
	Dim int
	Err error
}

// NewMockEmbedder creates a deterministic embedder with the given dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 8
	}
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.vector(text), nil
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = m.vector(t)
	}
	return vecs, nil
}

func (m *MockEmbedder) vector(text string) []float32 {
	sum := blake2b.Sum256([]byte(text))
	v := make([]float32, m.Dim)
	for i := range v {
		// Spread hash bytes across components; wrap when the dimension
		// exceeds the digest length.
		off := (i * 4) % (len(sum) - 4)
		bits := binary.LittleEndian.Uint32(sum[off : off+4])
		v[i] = float32(int32(bits)) / float32(1<<31)
	}
	return Normalize(v)
}
