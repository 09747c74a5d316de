package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	m := New()

	a, err := m.Embed(ctx, "hello world")
	require.NoError(t, err)
	b, err := m.Embed(ctx, "hello world")
	require.NoError(t, err)
	c, err := m.Embed(ctx, "something else")
	require.NoError(t, err)

	assert.Len(t, a, DefaultDimensions)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 3, m.Calls())

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestMockEmbedder_Pin(t *testing.T) {
	ctx := context.Background()
	m := NewWithDimensions(3).Pin("north", []float32{0, 2, 0})

	vec, err := m.Embed(ctx, "north")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, vec)

	// Callers may not corrupt the pinned vector.
	vec[1] = 42
	again, err := m.Embed(ctx, "north")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, again)
}

func TestMockEmbedder_FailWith(t *testing.T) {
	ctx := context.Background()
	m := NewWithDimensions(3)
	boom := errors.New("boom")

	m.FailWith(boom)
	_, err := m.Embed(ctx, "x")
	assert.ErrorIs(t, err, boom)

	m.FailWith(nil)
	_, err = m.Embed(ctx, "x")
	assert.NoError(t, err)
}
