// Package cached memoizes an Embedder. Recall embeds every user message and
// preview/search often repeat queries, so identical texts skip the model.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/kataras/golog"

	"github.com/becomeliminal/nim-memory/memory"
)

// DefaultMaxCost bounds the cache at roughly 64MB of vectors.
const DefaultMaxCost = 64 << 20

// Embedder wraps another Embedder with a ristretto cache.
type Embedder struct {
	inner     memory.Embedder
	cache     *ristretto.Cache
	namespace string
}

// New wraps inner. maxCost is in bytes of cached vectors; zero uses
// DefaultMaxCost. namespace is usually the model name.
func New(inner memory.Embedder, namespace string, maxCost int64) (*Embedder, error) {
	if maxCost <= 0 {
		maxCost = DefaultMaxCost
	}
	entries := maxCost / int64(4*max(inner.Dimensions(), 1))
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: max(entries*10, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	golog.Debugf("[EMBED] Caching embeddings (namespace=%s, max_cost=%d)", namespace, maxCost)
	return &Embedder{inner: inner, cache: cache, namespace: namespace}, nil
}

// Embed returns a cached vector for text or computes and caches it.
// Callers get their own copy.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.namespace + "\x00" + text
	if v, ok := e.cache.Get(key); ok {
		return clone(v.([]float32)), nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, clone(vec), int64(4*len(vec)))
	return vec, nil
}

// Dimensions returns the wrapped embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close stops the cache's background goroutines.
func (e *Embedder) Close() error {
	e.cache.Close()
	return nil
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

var _ memory.Embedder = (*Embedder)(nil)
