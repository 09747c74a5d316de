package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// MockEmbedder is a simple mock embedder for testing and offline use.
// It generates deterministic embeddings based on text hash. Specific texts
// can be pinned to fixed vectors to control similarity in tests.
type MockEmbedder struct {
	dimensions int
	calls      atomic.Int64

	mu     sync.RWMutex
	pinned map[string][]float32
	err    error
}

// New creates a new mock embedder.
func New() *MockEmbedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates a mock embedder producing vectors of size dims.
func NewWithDimensions(dims int) *MockEmbedder {
	return &MockEmbedder{
		dimensions: dims,
		pinned:     make(map[string][]float32),
	}
}

// Pin makes Embed return vec (normalized) for text.
func (m *MockEmbedder) Pin(text string, vec []float32) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned[text] = normalize(vec)
	return m
}

// FailWith makes every subsequent Embed call return err. Pass nil to recover.
func (m *MockEmbedder) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Embed was called.
func (m *MockEmbedder) Calls() int {
	return int(m.calls.Load())
}

// Embed creates a deterministic embedding from text.
// Uses hash-based generation for consistent results.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	err := m.err
	vec, ok := m.pinned[text]
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	}

	// Hash the text
	h := fnv.New64a()
	h.Write([]byte(text))
	hash := h.Sum64()

	// Generate deterministic embedding
	embedding := make([]float32, m.dimensions)

	// Use hash as seed for pseudo-random generation
	seed := hash
	for i := 0; i < m.dimensions; i++ {
		// Simple LCG (Linear Congruential Generator)
		seed = seed*6364136223846793005 + 1442695040888963407
		// Convert to [-1, 1] range
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	normalized := make([]float32, len(vec))
	if norm == 0 {
		copy(normalized, vec)
		return normalized
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
