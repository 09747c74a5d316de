// Package storetest is a contract suite every memory.Store implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

// Dims is the vector size stores are created with.
const Dims = 4

// Factory creates an empty store accepting Dims-dimensional vectors.
type Factory func(t *testing.T) memory.Store

// Run exercises a Store implementation.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyStore", func(t *testing.T) { testEmptyStore(t, newStore(t)) })
	t.Run("InsertAndQuery", func(t *testing.T) { testInsertAndQuery(t, newStore(t)) })
	t.Run("TiesPreferNewer", func(t *testing.T) { testTiesPreferNewer(t, newStore(t)) })
	t.Run("TopK", func(t *testing.T) { testTopK(t, newStore(t)) })
	t.Run("DimensionMismatch", func(t *testing.T) { testDimensionMismatch(t, newStore(t)) })
	t.Run("Recent", func(t *testing.T) { testRecent(t, newStore(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore(t)) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newStore(t)) })
	t.Run("Prune", func(t *testing.T) { testPrune(t, newStore(t)) })
	t.Run("ResultsAreCopies", func(t *testing.T) { testResultsAreCopies(t, newStore(t)) })
	t.Run("Concurrent", func(t *testing.T) { testConcurrent(t, newStore(t)) })
}

var base = time.Date(2026, 5, 1, 9, 30, 0, 123456789, time.UTC)

func record(id string, vec []float32, created time.Time) memory.Record {
	return memory.Record{
		ID:          id,
		Text:        "summary of " + id,
		Topic:       "topic " + id,
		Embedding:   vec,
		Importance:  0.75,
		CreatedAt:   created,
		SourceCount: 4,
		SourceRange: core.SeqRange{First: 5, Last: 8},
	}
}

func insert(t *testing.T, s memory.Store, recs ...memory.Record) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, s.Insert(context.Background(), r))
	}
}

func resultIDs(results []memory.RecallResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Record.ID
	}
	return out
}

func testEmptyStore(t *testing.T, s memory.Store) {
	ctx := context.Background()
	assert.Equal(t, Dims, s.Dimensions())

	results, err := s.Query(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, memory.Stats{}, st)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testInsertAndQuery(t *testing.T, s memory.Store) {
	ctx := context.Background()
	insert(t, s,
		record("east", []float32{1, 0, 0, 0}, base),
		record("north", []float32{0, 1, 0, 0}, base),
		record("northeast", []float32{1, 1, 0, 0}, base),
	)

	results, err := s.Query(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"east", "northeast", "north"}, resultIDs(results))

	assert.InDelta(t, 0, results[0].Distance, 1e-5)
	assert.InDelta(t, 1-1/1.41421356, results[1].Distance, 1e-5)
	assert.InDelta(t, 1, results[2].Distance, 1e-5)

	got := results[0].Record
	assert.Equal(t, "summary of east", got.Text)
	assert.Equal(t, "topic east", got.Topic)
	assert.InDelta(t, 0.75, got.Importance, 1e-9)
	assert.True(t, base.Equal(got.CreatedAt), "created_at round trips: %v", got.CreatedAt)
	assert.Equal(t, 4, got.SourceCount)
	assert.Equal(t, core.SeqRange{First: 5, Last: 8}, got.SourceRange)
	assert.Len(t, got.Embedding, Dims)
}

func testTiesPreferNewer(t *testing.T, s memory.Store) {
	ctx := context.Background()
	vec := []float32{0, 0, 1, 0}
	insert(t, s,
		record("older", vec, base),
		record("newest", vec, base.Add(2*time.Hour)),
		record("newer", vec, base.Add(time.Hour)),
	)

	results, err := s.Query(ctx, vec, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "newer", "older"}, resultIDs(results))

	results, err = s.Query(ctx, vec, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"newest"}, resultIDs(results))
}

func testTopK(t *testing.T, s memory.Store) {
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		insert(t, s, record(fmt.Sprintf("r%d", i), []float32{1, float32(i), 0, 0}, base))
	}

	results, err := s.Query(ctx, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r1", "r2"}, resultIDs(results))

	results, err = s.Query(ctx, []float32{1, 0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Query(ctx, []float32{1, 0, 0, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, results, 6)
}

func testDimensionMismatch(t *testing.T, s memory.Store) {
	ctx := context.Background()

	err := s.Insert(ctx, record("short", []float32{1, 0}, base))
	assert.ErrorIs(t, err, memory.ErrDimensionMismatch)

	_, err = s.Query(ctx, []float32{1, 0, 0, 0, 0}, 3)
	assert.ErrorIs(t, err, memory.ErrDimensionMismatch)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Count)
}

func testRecent(t *testing.T, s memory.Store) {
	ctx := context.Background()

	recs, err := s.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, recs)

	insert(t, s,
		record("b", []float32{1, 0, 0, 0}, base),
		record("old", []float32{0, 1, 0, 0}, base.Add(-time.Hour)),
		record("new", []float32{0, 0, 1, 0}, base.Add(time.Hour)),
		record("a", []float32{0, 0, 0, 1}, base),
	)

	recs, err = s.Recent(ctx, 3)
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"new", "b", "a"}, ids)
	assert.True(t, base.Add(time.Hour).Equal(recs[0].CreatedAt))
	assert.Len(t, recs[0].Embedding, Dims)

	recs, err = s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func testStats(t *testing.T, s memory.Store) {
	ctx := context.Background()
	a := record("a", []float32{1, 0, 0, 0}, base)
	a.Importance = 0.4
	b := record("b", []float32{0, 1, 0, 0}, base.Add(-time.Hour))
	b.Importance = 0.8
	c := record("c", []float32{0, 0, 1, 0}, base.Add(time.Hour))
	c.Importance = 0.6
	insert(t, s, a, b, c)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Count)
	assert.InDelta(t, 0.6, st.MeanImportance, 1e-9)
	assert.True(t, base.Add(-time.Hour).Equal(st.Oldest))
	assert.True(t, base.Add(time.Hour).Equal(st.Newest))
}

func testClear(t *testing.T, s memory.Store) {
	ctx := context.Background()
	insert(t, s,
		record("a", []float32{1, 0, 0, 0}, base),
		record("b", []float32{0, 1, 0, 0}, base),
	)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Clear(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "clear is idempotent")

	results, err := s.Query(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Usable after clearing.
	insert(t, s, record("c", []float32{1, 0, 0, 0}, base))
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Count)
}

func testPrune(t *testing.T, s memory.Store) {
	ctx := context.Background()
	day := 24 * time.Hour
	now := base.Add(100 * day)
	insert(t, s,
		record("fresh", []float32{1, 0, 0, 0}, now.Add(-1*day)),
		record("recent", []float32{0, 1, 0, 0}, now.Add(-2*day)),
		record("week", []float32{0, 0, 1, 0}, now.Add(-7*day)),
		record("stale", []float32{0, 0, 0, 1}, now.Add(-45*day)),
	)

	n, err := s.Prune(ctx, memory.PrunePolicy{MaxEntries: 2, MaxAge: 30 * day, Now: now})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := s.Query(ctx, []float32{1, 1, 1, 1}, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fresh", "recent"}, resultIDs(results))

	n, err = s.Prune(ctx, memory.PrunePolicy{Now: now})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testResultsAreCopies(t *testing.T, s memory.Store) {
	ctx := context.Background()
	vec := []float32{1, 0, 0, 0}
	insert(t, s, record("a", vec, base))
	vec[0] = 0 // caller reuses its slice

	results, err := s.Query(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)

	results[0].Record.Embedding[0] = -1
	results[0].Record.Text = "mutated"

	again, err := s.Query(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "summary of a", again[0].Record.Text)
	assert.InDelta(t, 0, again[0].Distance, 1e-5)
}

func testConcurrent(t *testing.T, s memory.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				assert.NoError(t, s.Insert(ctx, record(id, []float32{1, float32(w), float32(i), 0}, base)))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := s.Query(ctx, []float32{1, 0, 0, 0}, 3)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, st.Count)
}
