package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
)

func newTestManager(cfg *memory.Config, summ memory.Summarizer) (*memory.Manager, *fakeStore) {
	store := newFakeStore(mock.DefaultDimensions)
	return memory.NewManager(store, mock.New(), cfg, memory.WithSummarizer(summ)), store
}

func TestSession_AppendArchivesAutomatically(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	m, store := newTestManager(cfg, &fixedSummarizer{summary: memory.Summary{Text: "chat", Topic: "chat"}})
	sess := m.NewSession("sys")

	var archived []*memory.ArchiveResult
	for i := 0; i < 20; i++ {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		turn, results, err := sess.Append(ctx, role, "a reasonably long message about travel plans")
		require.NoError(t, err)
		assert.Equal(t, i+1, turn.Seq)
		assert.LessOrEqual(t, sess.Size(), cfg.MaxWindowSize, "window settles within its limit after every append")
		archived = append(archived, results...)
	}

	// 20 turns through a window of 9 with chunks of 4: archives at sizes 10, 10, 10.
	require.Len(t, archived, 3)
	assert.Len(t, store.all(), 3)
	assert.Equal(t, core.SeqRange{First: 1, Last: 4}, archived[0].SourceRange)
	assert.Equal(t, core.SeqRange{First: 5, Last: 8}, archived[1].SourceRange)
	assert.Equal(t, core.SeqRange{First: 9, Last: 12}, archived[2].SourceRange)

	turns := sess.Turns()
	assert.Equal(t, core.RoleSystem, turns[0].Role)
	assert.Equal(t, "sys", sess.SystemPrompt())
	assert.Equal(t, 13, turns[1].Seq)
}

func TestSession_AppendSurfacesStoreFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	m, store := newTestManager(cfg, &fixedSummarizer{summary: memory.Summary{Text: "chat"}})
	sess := m.NewSession("sys")

	for i := 0; i < cfg.MaxWindowSize-1; i++ {
		_, _, err := sess.Append(ctx, core.RoleUser, "message about the garden and the weather")
		require.NoError(t, err)
	}
	store.insertErrs = []error{errors.New("down"), errors.New("down")}

	turn, _, err := sess.Append(ctx, core.RoleUser, "one too many")
	assert.ErrorIs(t, err, memory.ErrStoreUnavailable)
	assert.Equal(t, cfg.MaxWindowSize, turn.Seq, "the turn is kept")
	assert.Equal(t, cfg.MaxWindowSize+1, sess.Size())

	// Store is back: the next append catches up.
	_, results, err := sess.Append(ctx, core.RoleAssistant, "reply")
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.LessOrEqual(t, sess.Size(), cfg.MaxWindowSize)
}

func TestSession_RecoveryRunsSeveralBatches(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.ChunkSize = 1
	m, store := newTestManager(cfg, &fixedSummarizer{summary: memory.Summary{Text: "chat"}})
	sess := m.NewSession("sys")

	for i := 0; i < cfg.MaxWindowSize-1; i++ {
		_, results, err := sess.Append(ctx, core.RoleUser, "message about the garden and the weather")
		require.NoError(t, err)
		require.Empty(t, results)
	}
	require.Equal(t, cfg.MaxWindowSize, sess.Size())

	// Each failed archival consumes the insert and its retry.
	down := errors.New("down")
	store.insertErrs = []error{down, down, down, down, down, down}
	for i := 0; i < 3; i++ {
		_, _, err := sess.Append(ctx, core.RoleUser, "still talking while the store is down")
		require.ErrorIs(t, err, memory.ErrStoreUnavailable)
	}
	require.Equal(t, cfg.MaxWindowSize+3, sess.Size())

	_, results, err := sess.Append(ctx, core.RoleAssistant, "store is back")
	require.NoError(t, err)
	require.Len(t, results, 4, "one append drains every overflow batch")
	for i, res := range results {
		assert.Equal(t, core.SeqRange{First: i + 1, Last: i + 1}, res.SourceRange)
		assert.True(t, res.Stored)
	}
	assert.Equal(t, cfg.MaxWindowSize, sess.Size())
	assert.Len(t, store.all(), 4)
	assert.Equal(t, 5, sess.Turns()[1].Seq)
}

func TestSession_ForcedArchive(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxWindowSize = 50
	cfg.KeepTail = 5
	m, store := newTestManager(cfg, &fixedSummarizer{summary: memory.Summary{Text: "chat"}})
	sess := m.NewSession("sys")

	for i := 0; i < 5; i++ {
		_, _, err := sess.Append(ctx, core.RoleUser, "hello there friend")
		require.NoError(t, err)
	}
	_, err := sess.Archive(ctx, memory.Forced)
	assert.ErrorIs(t, err, memory.ErrInsufficientTurns)

	for i := 0; i < 6; i++ {
		_, _, err := sess.Append(ctx, core.RoleUser, "hello there friend")
		require.NoError(t, err)
	}
	res, err := sess.Archive(ctx, memory.Forced)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Archived)
	assert.Equal(t, 6, sess.Size())
	assert.Len(t, store.all(), 1)
}

func TestSession_ArchiveAsyncIsExclusive(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxWindowSize = 50
	summ := &fixedSummarizer{summary: memory.Summary{Text: "chat"}, delay: 200 * time.Millisecond}
	m, _ := newTestManager(cfg, summ)
	sess := m.NewSession("sys")
	for i := 0; i < 10; i++ {
		_, _, err := sess.Append(ctx, core.RoleUser, "hello there friend")
		require.NoError(t, err)
	}

	task, err := sess.ArchiveAsync(ctx, memory.Automatic)
	require.NoError(t, err)

	_, err = sess.ArchiveAsync(ctx, memory.Automatic)
	assert.ErrorIs(t, err, memory.ErrArchiveInProgress)

	res, err := task.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Archived)
	assert.Equal(t, 7, sess.Size())

	// The slot frees once the task has finished.
	require.Eventually(t, func() bool {
		task, err := sess.ArchiveAsync(ctx, memory.Automatic)
		if err != nil {
			return false
		}
		_, err = task.Wait(ctx)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_ConcurrentAppendsAreSerialized(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	m, _ := newTestManager(cfg, &fixedSummarizer{summary: memory.Summary{Text: "chat"}})
	sess := m.NewSession("sys")

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, _, err := sess.Append(ctx, core.RoleUser, "concurrent message about things")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	turns := sess.Turns()
	assert.LessOrEqual(t, len(turns), cfg.MaxWindowSize)
	for i := 2; i < len(turns); i++ {
		assert.Equal(t, turns[i-1].Seq+1, turns[i].Seq, "surviving turns stay contiguous and ordered")
	}
	assert.Equal(t, 80, turns[len(turns)-1].Seq)
}

func TestSession_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Enabled = false
	m, store := newTestManager(cfg, &fixedSummarizer{summary: memory.Summary{Text: "chat"}})
	sess := m.NewSession("sys")

	for i := 0; i < 30; i++ {
		_, results, err := sess.Append(ctx, core.RoleUser, "hello there friend")
		require.NoError(t, err)
		assert.Empty(t, results)
	}
	assert.Equal(t, cfg.MaxWindowSize, sess.Size())
	assert.Empty(t, store.all())

	_, err := sess.Archive(ctx, memory.Forced)
	assert.ErrorIs(t, err, memory.ErrMemoryDisabled)
	_, err = sess.ArchiveAsync(ctx, memory.Forced)
	assert.ErrorIs(t, err, memory.ErrMemoryDisabled)
}
