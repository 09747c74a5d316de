package memory

import (
	"fmt"
	"time"
)

// Config holds memory system configuration.
type Config struct {
	// Enabled toggles memory system on/off.
	// Default: false (opt-in).
	Enabled bool `yaml:"enabled"`

	// MaxWindowSize is the window size (anchor included) above which
	// automatic archival runs.
	// Default: 50
	MaxWindowSize int `yaml:"max_window_size"`

	// ChunkSize is how many of the oldest turns one automatic archival evicts.
	// Must not exceed MaxWindowSize.
	// Default: 4
	ChunkSize int `yaml:"chunk_size"`

	// KeepTail is how many recent turns forced archival leaves in the window.
	// Default: 5
	KeepTail int `yaml:"keep_tail"`

	// ImportanceThreshold is the minimum importance for a batch to be stored.
	// Batches below it are dropped from the window without a record.
	// Default: 0.3
	ImportanceThreshold float64 `yaml:"importance_threshold"`

	// RecallTopK caps the number of records recalled per query.
	// Default: 5
	RecallTopK int `yaml:"recall_top_k"`

	// MaxEntries caps the number of stored records. Zero means unbounded.
	// Default: 1000
	MaxEntries int `yaml:"max_entries"`

	// RetentionDays deletes records older than this many days. Zero keeps forever.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// SummarizeTimeout bounds a single summarization call before the
	// fallback summary is used.
	// Default: 60s
	SummarizeTimeout time.Duration `yaml:"summarize_timeout"`
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	Enabled:             false, // Opt-in
	MaxWindowSize:       50,
	ChunkSize:           4,
	KeepTail:            5,
	ImportanceThreshold: 0.3,
	RecallTopK:          5,
	MaxEntries:          1000,
	RetentionDays:       30,
	SummarizeTimeout:    60 * time.Second,
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch {
	case c.MaxWindowSize < 1:
		return fmt.Errorf("%w: max_window_size must be at least 1, got %d", ErrInvalidConfig, c.MaxWindowSize)
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size must be at least 1, got %d", ErrInvalidConfig, c.ChunkSize)
	case c.ChunkSize > c.MaxWindowSize:
		return fmt.Errorf("%w: chunk_size (%d) exceeds max_window_size (%d)", ErrInvalidConfig, c.ChunkSize, c.MaxWindowSize)
	case c.KeepTail < 0:
		return fmt.Errorf("%w: keep_tail must not be negative, got %d", ErrInvalidConfig, c.KeepTail)
	case c.ImportanceThreshold < 0 || c.ImportanceThreshold > 1:
		return fmt.Errorf("%w: importance_threshold must be within [0,1], got %v", ErrInvalidConfig, c.ImportanceThreshold)
	case c.RecallTopK < 1:
		return fmt.Errorf("%w: recall_top_k must be at least 1, got %d", ErrInvalidConfig, c.RecallTopK)
	case c.MaxEntries < 0:
		return fmt.Errorf("%w: max_entries must not be negative, got %d", ErrInvalidConfig, c.MaxEntries)
	case c.RetentionDays < 0:
		return fmt.Errorf("%w: retention_days must not be negative, got %d", ErrInvalidConfig, c.RetentionDays)
	case c.SummarizeTimeout < 0:
		return fmt.Errorf("%w: summarize_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// PrunePolicy returns the retention policy implied by the config at now.
func (c *Config) PrunePolicy(now time.Time) PrunePolicy {
	return PrunePolicy{
		MaxEntries: c.MaxEntries,
		MaxAge:     time.Duration(c.RetentionDays) * 24 * time.Hour,
		Now:        now,
	}
}

func (c *Config) windowOptions() WindowOptions {
	return WindowOptions{MaxSize: c.MaxWindowSize, ChunkSize: c.ChunkSize}
}
