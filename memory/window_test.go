package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

func TestWindow_AppendAssignsSequence(t *testing.T) {
	w := memory.NewWindow("you are helpful", memory.WindowOptions{MaxSize: 10, ChunkSize: 4})
	assert.Equal(t, 1, w.Size())
	assert.Equal(t, core.RoleSystem, w.Anchor().Role)
	assert.Equal(t, 0, w.Anchor().Seq)

	a, err := w.Append(core.RoleUser, "hi")
	require.NoError(t, err)
	b, err := w.Append(core.RoleAssistant, "hello")
	require.NoError(t, err)

	assert.Equal(t, 1, a.Seq)
	assert.Equal(t, 2, b.Seq)
	assert.Equal(t, 3, w.Size())

	_, err = w.Append(core.RoleSystem, "second anchor")
	assert.ErrorIs(t, err, memory.ErrInvalidRole)
	assert.Equal(t, 3, w.Size())
}

func TestWindow_AutomaticBatch(t *testing.T) {
	w := memory.NewWindow("sys", memory.WindowOptions{MaxSize: 10, ChunkSize: 4})
	fillWindow(w, 3)

	_, err := w.SelectEvictionBatch(memory.Automatic, 0)
	assert.ErrorIs(t, err, memory.ErrInsufficientTurns)
	assert.Equal(t, 4, w.Size(), "failed selection must not change the window")

	fillWindow(w, 3)
	batch, err := w.SelectEvictionBatch(memory.Automatic, 0)
	require.NoError(t, err)
	require.Len(t, batch, 4)
	for i, turn := range batch {
		assert.Equal(t, i+1, turn.Seq)
	}
	assert.Equal(t, 7, w.Size(), "selection alone must not change the window")
}

func TestWindow_ForcedBatch(t *testing.T) {
	w := memory.NewWindow("sys", memory.WindowOptions{MaxSize: 50, ChunkSize: 4})
	fillWindow(w, 5)

	// keep_tail=5 needs six non-anchor turns
	_, err := w.SelectEvictionBatch(memory.Forced, 5)
	assert.ErrorIs(t, err, memory.ErrInsufficientTurns)

	fillWindow(w, 1)
	batch, err := w.SelectEvictionBatch(memory.Forced, 5)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 1, batch[0].Seq)

	// Anchor plus 11 turns with keep_tail 5 evicts 6.
	w = memory.NewWindow("sys", memory.WindowOptions{MaxSize: 50, ChunkSize: 4})
	fillWindow(w, 11)
	batch, err = w.SelectEvictionBatch(memory.Forced, 5)
	require.NoError(t, err)
	assert.Len(t, batch, 6)
	require.NoError(t, w.Remove(batch))
	assert.Equal(t, 6, w.Size())
}

func TestWindow_RemovePreservesOrderAndSequence(t *testing.T) {
	w := memory.NewWindow("sys", memory.WindowOptions{MaxSize: 10, ChunkSize: 4})
	fillWindow(w, 6)

	batch, err := w.SelectEvictionBatch(memory.Automatic, 0)
	require.NoError(t, err)
	require.NoError(t, w.Remove(batch))

	turns := w.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, 0, turns[0].Seq)
	assert.Equal(t, 5, turns[1].Seq)
	assert.Equal(t, 6, turns[2].Seq)

	next, err := w.Append(core.RoleUser, "later")
	require.NoError(t, err)
	assert.Equal(t, 7, next.Seq, "sequence numbers are never reused")
}

func TestWindow_RemoveRejectsForeignBatch(t *testing.T) {
	w := memory.NewWindow("sys", memory.WindowOptions{MaxSize: 10, ChunkSize: 2})
	fillWindow(w, 4)

	turns := w.Turns()
	err := w.Remove(turns[2:4]) // not the oldest run
	assert.ErrorIs(t, err, memory.ErrBatchMismatch)
	assert.Equal(t, 5, w.Size())

	err = w.Remove(append(w.History(), core.Turn{Seq: 99}))
	assert.ErrorIs(t, err, memory.ErrBatchMismatch)
	assert.Equal(t, 5, w.Size())
}

func TestWindow_Truncate(t *testing.T) {
	w := memory.NewWindow("sys", memory.WindowOptions{MaxSize: 3, ChunkSize: 1})
	fillWindow(w, 5)

	assert.True(t, w.OverLimit())
	assert.Equal(t, 3, w.Truncate())
	assert.False(t, w.OverLimit())

	turns := w.Turns()
	assert.Equal(t, core.RoleSystem, turns[0].Role)
	assert.Equal(t, []int{0, 4, 5}, []int{turns[0].Seq, turns[1].Seq, turns[2].Seq})
}
