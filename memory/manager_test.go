package memory_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
)

func newChromemManager(t *testing.T, cfg *memory.Config, opts ...memory.Option) (*memory.Manager, memory.Store, *mock.MockEmbedder) {
	t.Helper()
	store, err := chromem.New(2)
	require.NoError(t, err)
	emb := mock.NewWithDimensions(2).
		Pin("hiking plans", []float32{1, 0}).
		Pin("tax forms", []float32{0, 1})
	m := memory.NewManager(store, emb, cfg, opts...)
	t.Cleanup(func() { m.Close() })
	return m, store, emb
}

func insert(t *testing.T, store memory.Store, id, text string, vec []float32, created time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), memory.Record{
		ID:          id,
		Text:        text,
		Embedding:   vec,
		Importance:  0.6,
		CreatedAt:   created,
		SourceRange: core.SeqRange{First: 1, Last: 4},
		SourceCount: 4,
	}))
}

func TestManager_RetrieveFormatsRecalledMemories(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	m, store, _ := newChromemManager(t, testConfig(), memory.WithClock(func() time.Time { return now }))
	insert(t, store, "a", "User is planning a hike in the Alps", []float32{1, 0}, now)
	insert(t, store, "b", "User asked about tax deadlines", []float32{0, 1}, now)

	block, items, err := m.Retrieve(ctx, "hiking plans")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Record.ID)
	assert.Equal(t, memory.BucketHigh, items[0].Bucket)
	assert.Equal(t, memory.BucketLow, items[1].Bucket)

	lines := strings.Split(block, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "[Recalled from past conversations - reference as needed]", lines[0])
	assert.Equal(t, "1. [high] User is planning a hike in the Alps", lines[1])
	assert.Equal(t, "2. [low] User asked about tax deadlines", lines[2])
	assert.Equal(t, "[/Recalled memories]", lines[3])
	assert.Equal(t, "Current time: 2026-03-14 15:09:26", lines[4])
}

func TestManager_RetrieveRespectsTopK(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.RecallTopK = 1
	m, store, _ := newChromemManager(t, cfg)
	insert(t, store, "a", "hike", []float32{1, 0}, time.Now())
	insert(t, store, "b", "taxes", []float32{0, 1}, time.Now())

	_, items, err := m.Retrieve(ctx, "tax forms")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Record.ID)

	rec, err := m.Recall(ctx, "tax forms", 5)
	require.NoError(t, err)
	assert.Len(t, rec.Collect(), 2)
}

func TestManager_RetrieveEmptyStore(t *testing.T) {
	m, _, _ := newChromemManager(t, testConfig())

	block, items, err := m.Retrieve(context.Background(), "hiking plans")
	require.NoError(t, err)
	assert.Empty(t, block)
	assert.Empty(t, items)
}

func TestManager_Preview(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	m, store, emb := newChromemManager(t, testConfig(), memory.WithClock(func() time.Time { return now }))
	insert(t, store, "a", "User is planning a hike", []float32{1, 0}, now)

	p, err := m.Preview(ctx, "hiking plans")
	require.NoError(t, err)
	assert.Equal(t, "hiking plans", p.Query)
	require.Len(t, p.Memories, 1)
	assert.Equal(t, memory.FormatInjection(p.Memories, now), p.Injection)
	assert.True(t, strings.HasSuffix(p.Injection, "\nCurrent time: 2026-03-14 15:09:26"))

	calls := emb.Calls()
	p, err = m.Preview(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, memory.DefaultPreviewQuery, p.Query)
	assert.Equal(t, calls+1, emb.Calls())
}

func TestManager_SearchFilters(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newChromemManager(t, testConfig())
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, r := range []memory.Record{
		{ID: "old", Text: "old hike", Importance: 0.9, CreatedAt: base.Add(-48 * time.Hour)},
		{ID: "minor", Text: "minor hike", Importance: 0.4, CreatedAt: base},
		{ID: "major", Text: "major hike", Importance: 0.8, CreatedAt: base},
		{ID: "taxes", Text: "taxes", Importance: 0.9, CreatedAt: base},
	} {
		r.Embedding = []float32{1, 0}
		if r.ID == "taxes" {
			r.Embedding = []float32{0, 1}
		}
		require.NoError(t, store.Insert(ctx, r))
	}

	ids := func(rec *memory.Recollection) []string {
		var out []string
		for _, it := range rec.Collect() {
			out = append(out, it.Record.ID)
		}
		return out
	}

	rec, err := m.Search(ctx, "hiking plans", 2, memory.Filter{MinImportance: 0.85})
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "taxes"}, ids(rec))

	rec, err = m.Search(ctx, "hiking plans", 0, memory.Filter{After: base.Add(-time.Hour), MinImportance: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"major", "taxes"}, ids(rec))

	rec, err = m.Search(ctx, "hiking plans", 0, memory.Filter{Before: base.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids(rec))

	rec, err = m.Search(ctx, "hiking plans", 1, memory.Filter{})
	require.NoError(t, err)
	assert.Len(t, ids(rec), 1)
}

func TestManager_Recent(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newChromemManager(t, testConfig())
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	insert(t, store, "a", "first", []float32{1, 0}, base)
	insert(t, store, "b", "second", []float32{0, 1}, base.Add(time.Hour))
	insert(t, store, "c", "third", []float32{1, 0}, base.Add(2*time.Hour))

	recs, err := m.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}

func TestFilter_Match(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := memory.Record{Importance: 0.5, CreatedAt: at}

	assert.True(t, memory.Filter{}.IsZero())
	assert.True(t, memory.Filter{}.Match(rec))
	assert.True(t, memory.Filter{MinImportance: 0.5}.Match(rec))
	assert.False(t, memory.Filter{MinImportance: 0.51}.Match(rec))
	assert.True(t, memory.Filter{After: at, Before: at}.Match(rec))
	assert.False(t, memory.Filter{After: at.Add(time.Second)}.Match(rec))
	assert.False(t, memory.Filter{Before: at.Add(-time.Second)}.Match(rec))
}

func TestManager_StatsAndClear(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newChromemManager(t, testConfig())
	old := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	insert(t, store, "a", "first", []float32{1, 0}, old)
	insert(t, store, "b", "second", []float32{0, 1}, old.Add(time.Hour))

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.InDelta(t, 0.6, st.MeanImportance, 1e-9)
	assert.True(t, st.Oldest.Equal(old))
	assert.True(t, st.Newest.Equal(old.Add(time.Hour)))

	n, err := m.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err = m.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Count)
	assert.True(t, st.Oldest.IsZero())
}

func TestManager_Prune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.MaxEntries = 2
	cfg.RetentionDays = 30
	m, store, _ := newChromemManager(t, cfg, memory.WithClock(func() time.Time { return now }))

	insert(t, store, "stale", "stale", []float32{1, 0}, now.AddDate(0, 0, -40))
	insert(t, store, "old", "old", []float32{1, 0}, now.Add(-3*time.Hour))
	insert(t, store, "mid", "mid", []float32{0, 1}, now.Add(-2*time.Hour))
	insert(t, store, "new", "new", []float32{0, 1}, now.Add(-time.Hour))

	n, err := m.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.True(t, st.Oldest.Equal(now.Add(-2*time.Hour)))
}

func TestManager_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Enabled = false
	m, _, emb := newChromemManager(t, cfg)
	assert.False(t, m.Enabled())

	block, items, err := m.Retrieve(ctx, "hiking plans")
	require.NoError(t, err)
	assert.Empty(t, block)
	assert.Nil(t, items)

	_, err = m.Recall(ctx, "hiking plans", 0)
	assert.ErrorIs(t, err, memory.ErrMemoryDisabled)
	_, err = m.Preview(ctx, "")
	assert.ErrorIs(t, err, memory.ErrMemoryDisabled)
	_, err = m.Stats(ctx)
	assert.ErrorIs(t, err, memory.ErrMemoryDisabled)
	_, err = m.Clear(ctx)
	assert.ErrorIs(t, err, memory.ErrMemoryDisabled)
	_, err = m.Prune(ctx)
	assert.ErrorIs(t, err, memory.ErrMemoryDisabled)
	_, err = m.Search(ctx, "hiking plans", 0, memory.Filter{})
	assert.ErrorIs(t, err, memory.ErrMemoryDisabled)
	_, err = m.Recent(ctx, 5)
	assert.ErrorIs(t, err, memory.ErrMemoryDisabled)

	assert.Zero(t, emb.Calls())
}

func TestManager_NewSession(t *testing.T) {
	m, _, _ := newChromemManager(t, testConfig())

	a := m.NewSession("You are Vexa.")
	b := m.NewSession("You are Vexa.")
	assert.NotEqual(t, a.ID, b.ID)

	turns := a.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleSystem, turns[0].Role)
	assert.Equal(t, "You are Vexa.", turns[0].Content)
	assert.Equal(t, 1, a.Size())
}

func TestNewManager_NilConfigUsesDefaults(t *testing.T) {
	m := memory.NewManager(newFakeStore(mock.DefaultDimensions), mock.New(), nil)
	assert.Same(t, memory.DefaultConfig, m.Config())
	assert.False(t, m.Enabled())
}
