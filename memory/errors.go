package memory

import "errors"

var (
	// ErrInsufficientTurns is returned when the window does not hold enough
	// non-anchor turns to form an eviction batch.
	ErrInsufficientTurns = errors.New("insufficient turns to archive")

	// ErrSummarizerUnavailable marks a failed or timed-out summarization call.
	// The archiver recovers from it with the fallback summarizer.
	ErrSummarizerUnavailable = errors.New("summarizer unavailable")

	// ErrStoreUnavailable is returned when the durable store cannot be read or written.
	ErrStoreUnavailable = errors.New("memory store unavailable")

	// ErrDimensionMismatch is returned when a vector does not match the store's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMemoryDisabled is returned by memory operations when the system is turned off.
	ErrMemoryDisabled = errors.New("memory system disabled")

	ErrInvalidRole       = errors.New("invalid role for appended turn")
	ErrBatchMismatch     = errors.New("batch is not the oldest run of non-anchor turns")
	ErrArchiveInProgress = errors.New("archival already in progress")
	ErrInvalidConfig     = errors.New("invalid memory config")
)
