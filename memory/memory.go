package memory

import (
	"context"
	"time"

	"github.com/becomeliminal/nim-memory/core"
)

// Record is a durable, compressed memory of an archived batch of turns.
//
// Records are immutable once stored. Stores hand out copies, so callers may
// keep or modify what they receive without affecting stored data.
type Record struct {
	ID          string
	Text        string // Summary text
	Topic       string
	Embedding   []float32
	Importance  float64 // [0.0-1.0]
	CreatedAt   time.Time
	SourceCount int           // Number of turns compressed into this record
	SourceRange core.SeqRange // Sequence numbers of the first and last source turn
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r.Embedding != nil {
		emb := make([]float32, len(r.Embedding))
		copy(emb, r.Embedding)
		r.Embedding = emb
	}
	return r
}

// RecallResult pairs a stored record with its cosine distance to a query.
// Lower distance means more similar.
type RecallResult struct {
	Record   Record
	Distance float64
}

// Stats summarizes the contents of a store.
// All fields are zero for an empty store.
type Stats struct {
	Count          int
	MeanImportance float64
	Oldest         time.Time
	Newest         time.Time
}

// PrunePolicy bounds store growth. A record is deleted when it is older than
// Now-MaxAge, or when it falls beyond MaxEntries in newest-first order.
// Both conditions are evaluated against the same snapshot; a zero value
// disables that condition.
type PrunePolicy struct {
	MaxEntries int
	MaxAge     time.Duration
	Now        time.Time
}

// Store is the durable vector storage backend.
// Implementations: ChromemStore (default, embedded), SQLiteStore.
type Store interface {
	// Insert persists a record. The embedding must match Dimensions().
	Insert(ctx context.Context, rec Record) error

	// Query returns up to topK records ordered by ascending cosine distance,
	// ties broken by newer CreatedAt first. An empty store yields an empty result.
	Query(ctx context.Context, vector []float32, topK int) ([]RecallResult, error)

	// Recent returns up to n records, newest first. Records created at the
	// same instant are ordered by descending ID.
	Recent(ctx context.Context, n int) ([]Record, error)

	// Stats reports count, mean importance and the created-at range.
	Stats(ctx context.Context) (Stats, error)

	// Clear removes every record and returns how many were deleted.
	Clear(ctx context.Context) (int, error)

	// Prune applies a retention policy and returns how many records were deleted.
	Prune(ctx context.Context, policy PrunePolicy) (int, error)

	// Dimensions returns the vector size this store accepts.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), onnx (local model), openai (HTTP endpoint),
// cached (decorator).
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}

// Summary is the compressed form of a batch of turns.
type Summary struct {
	Text      string
	Topic     string
	KeyPoints []string
}

// Summarizer compresses a batch of turns into a summary.
// Implementations may call external models and may fail; the archiver falls
// back to FallbackSummarizer when they do.
type Summarizer interface {
	Summarize(ctx context.Context, turns []core.Turn) (Summary, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, turns []core.Turn) (Summary, error)

func (f SummarizerFunc) Summarize(ctx context.Context, turns []core.Turn) (Summary, error) {
	return f(ctx, turns)
}
