package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/golog"

	"github.com/becomeliminal/nim-memory/core"
)

// ArchiveResult reports the outcome of one archival.
type ArchiveResult struct {
	Mode         EvictionMode
	Archived     int  // Turns removed from the window
	Stored       bool // False when the batch fell below the importance threshold
	RecordID     string
	Importance   float64
	Summary      string
	Topic        string
	KeyPoints    []string
	SourceRange  core.SeqRange
	WindowSize   int // Window size after removal
	UsedFallback bool
}

// Archiver moves batches of turns out of a window and into the store.
//
// The window is only modified after the batch has been summarized, scored
// and either stored or deliberately discarded. Any failure before that
// leaves the window exactly as it was.
type Archiver struct {
	store      Store
	embedder   Embedder
	summarizer Summarizer // nil means always use the fallback
	config     *Config
	metrics    *Metrics
	now        func() time.Time
}

// NewArchiver creates an Archiver. A nil summarizer uses FallbackSummarizer.
func NewArchiver(store Store, embedder Embedder, summarizer Summarizer, config *Config) *Archiver {
	if config == nil {
		config = DefaultConfig
	}
	return &Archiver{
		store:      store,
		embedder:   embedder,
		summarizer: summarizer,
		config:     config,
		now:        time.Now,
	}
}

// Archive evicts one batch from w according to mode.
func (a *Archiver) Archive(ctx context.Context, w *Window, mode EvictionMode) (*ArchiveResult, error) {
	start := time.Now()

	batch, err := w.SelectEvictionBatch(mode, a.config.KeepTail)
	if err != nil {
		a.metrics.archive(mode, "insufficient", time.Since(start))
		return nil, err
	}

	summary, usedFallback := a.summarize(ctx, batch)
	if err := ctx.Err(); err != nil {
		a.metrics.archive(mode, "cancelled", time.Since(start))
		return nil, fmt.Errorf("archive: %w", err)
	}

	result := &ArchiveResult{
		Mode:         mode,
		Archived:     len(batch),
		Importance:   ScoreImportance(batch),
		Summary:      summary.Text,
		Topic:        summary.Topic,
		KeyPoints:    summary.KeyPoints,
		SourceRange:  core.SeqRange{First: batch[0].Seq, Last: batch[len(batch)-1].Seq},
		UsedFallback: usedFallback,
	}

	if result.Importance < a.config.ImportanceThreshold {
		if err := w.Remove(batch); err != nil {
			return nil, err
		}
		result.WindowSize = w.Size()
		golog.Infof("[MEMORY] Discarded %d turns (seq %s): importance %.2f below threshold %.2f",
			len(batch), result.SourceRange, result.Importance, a.config.ImportanceThreshold)
		a.metrics.archive(mode, "discarded", time.Since(start))
		return result, nil
	}

	embedding, err := Go(ctx, func(ctx context.Context) ([]float32, error) {
		return a.embedder.Embed(ctx, summary.Text)
	}).Wait(ctx)
	if err != nil {
		a.metrics.archive(mode, "failed", time.Since(start))
		return nil, fmt.Errorf("embed summary: %w", err)
	}

	rec := Record{
		ID:          uuid.New().String(),
		Text:        summary.Text,
		Topic:       summary.Topic,
		Embedding:   embedding,
		Importance:  result.Importance,
		CreatedAt:   a.now(),
		SourceCount: len(batch),
		SourceRange: result.SourceRange,
	}
	if err := a.insert(ctx, rec); err != nil {
		a.metrics.archive(mode, "failed", time.Since(start))
		return nil, err
	}

	if n, err := a.store.Prune(ctx, a.config.PrunePolicy(rec.CreatedAt)); err != nil {
		golog.Warnf("[MEMORY] Prune failed: %v", err)
	} else if n > 0 {
		golog.Infof("[MEMORY] Pruned %d expired memories", n)
	}

	if err := w.Remove(batch); err != nil {
		return nil, err
	}

	result.Stored = true
	result.RecordID = rec.ID
	result.WindowSize = w.Size()

	golog.Infof("[MEMORY] Archived %d turns (seq %s, %s): topic=%q importance=%.2f",
		len(batch), result.SourceRange, mode, truncateLog(summary.Topic, 50), result.Importance)
	a.metrics.archive(mode, "stored", time.Since(start))
	return result, nil
}

// summarize calls the configured summarizer under the summarize timeout and
// falls back to a local summary on error, timeout or empty output.
func (a *Archiver) summarize(ctx context.Context, batch []core.Turn) (Summary, bool) {
	if a.summarizer == nil {
		return fallbackSummary(batch), true
	}

	sctx, cancel := ctx, context.CancelFunc(func() {})
	if a.config.SummarizeTimeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, a.config.SummarizeTimeout)
	}
	defer cancel()

	summary, err := Go(sctx, func(ctx context.Context) (Summary, error) {
		return a.summarizer.Summarize(ctx, batch)
	}).Wait(sctx)
	if err == nil && strings.TrimSpace(summary.Text) != "" {
		if summary.Topic == "" {
			summary.Topic = fallbackSummary(batch).Topic
		}
		return summary, false
	}
	if err == nil {
		err = errors.New("empty summary")
	}

	golog.Warnf("[MEMORY] %v: %v; using fallback summary", ErrSummarizerUnavailable, err)
	a.metrics.fallback()
	return fallbackSummary(batch), true
}

// insert stores rec with one immediate retry.
func (a *Archiver) insert(ctx context.Context, rec Record) error {
	err := a.store.Insert(ctx, rec)
	if err == nil {
		a.metrics.insert("ok")
		return nil
	}
	if errors.Is(err, ErrDimensionMismatch) || ctx.Err() != nil {
		a.metrics.insert("error")
		return fmt.Errorf("insert memory: %w", err)
	}

	golog.Warnf("[MEMORY] Insert failed, retrying: %v", err)
	if err = a.store.Insert(ctx, rec); err == nil {
		a.metrics.insert("retried")
		return nil
	}

	a.metrics.insert("error")
	if errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("insert memory: %w", err)
	}
	return fmt.Errorf("insert memory: %w: %w", ErrStoreUnavailable, err)
}

// truncateLog shortens text for logging without splitting runes.
func truncateLog(s string, maxLen int) string {
	return truncate(s, maxLen+3)
}
