package chromem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
	"github.com/becomeliminal/nim-memory/memory/store/storetest"
)

func TestChromemStore_InMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) memory.Store {
		s, err := chromem.New(storetest.Dims)
		require.NoError(t, err)
		return s
	})
}

func TestChromemStore_Persistent(t *testing.T) {
	storetest.Run(t, func(t *testing.T) memory.Store {
		s, err := chromem.Open(chromem.Options{Path: t.TempDir(), Dimensions: storetest.Dims})
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestChromemStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := chromem.Open(chromem.Options{Path: dir, Dimensions: storetest.Dims})
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, memory.Record{
		ID:         "kept",
		Text:       "discussed the move to Berlin",
		Topic:      "moving",
		Embedding:  []float32{0, 1, 0, 0},
		Importance: 0.8,
		CreatedAt:  time.Now(),
	}))
	require.NoError(t, s.Close())

	reopened, err := chromem.Open(chromem.Options{Path: dir, Dimensions: storetest.Dims})
	require.NoError(t, err)
	results, err := reopened.Query(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "discussed the move to Berlin", results[0].Record.Text)
	assert.Equal(t, "moving", results[0].Record.Topic)
}

func TestChromemStore_RefusesOtherDimensions(t *testing.T) {
	dir := t.TempDir()

	s, err := chromem.Open(chromem.Options{Path: dir, Dimensions: storetest.Dims})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = chromem.Open(chromem.Options{Path: dir, Dimensions: 384})
	assert.ErrorIs(t, err, memory.ErrDimensionMismatch)
}

func TestChromemStore_InvalidDimensions(t *testing.T) {
	_, err := chromem.New(0)
	assert.Error(t, err)
}
