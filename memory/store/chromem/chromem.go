package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kataras/golog"
	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

// DefaultCollection is the collection archived conversation memories live in.
const DefaultCollection = "conversation_memory"

const metaFile = "store.json"

// Options configures a persistent ChromemStore.
type Options struct {
	// Path is the directory holding the database. Deleting it resets the store.
	Path string

	// Compress gzips documents on disk.
	Compress bool

	// Collection defaults to DefaultCollection.
	Collection string

	// Dimensions is the embedding size the store accepts.
	Dimensions int
}

// ChromemStore wraps chromem-go for vector storage.
// chromem-go is a pure Go, embedded vector database using cosine similarity.
type ChromemStore struct {
	db   *chromem.DB
	col  *chromem.Collection
	dims int
	mu   sync.RWMutex // writes exclusive, reads shared
}

// storeMeta is persisted next to the database to catch dimension changes.
type storeMeta struct {
	Collection string `json:"collection"`
	Dimensions int    `json:"dimensions"`
}

// New creates an in-memory chromem-based store.
func New(dims int) (*ChromemStore, error) {
	if dims < 1 {
		return nil, fmt.Errorf("chromem store: dimensions must be positive, got %d", dims)
	}
	return newStore(chromem.NewDB(), DefaultCollection, dims)
}

// Open opens (or creates) a persistent store under opts.Path.
// A store created with different dimensions is refused with
// memory.ErrDimensionMismatch.
func Open(opts Options) (*ChromemStore, error) {
	if opts.Dimensions < 1 {
		return nil, fmt.Errorf("chromem store: dimensions must be positive, got %d", opts.Dimensions)
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %w", memory.ErrStoreUnavailable, err)
	}
	if err := checkMeta(opts); err != nil {
		return nil, err
	}

	db, err := chromem.NewPersistentDB(filepath.Join(opts.Path, "chromem"), opts.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: open chromem db: %w", memory.ErrStoreUnavailable, err)
	}

	s, err := newStore(db, opts.Collection, opts.Dimensions)
	if err != nil {
		return nil, err
	}
	golog.Infof("[CHROMEM] Opened %s (collection=%s, dims=%d, records=%d)",
		opts.Path, opts.Collection, opts.Dimensions, s.col.Count())
	return s, nil
}

func newStore(db *chromem.DB, collection string, dims int) (*ChromemStore, error) {
	col, err := db.GetOrCreateCollection(
		collection,
		map[string]string{"dimensions": strconv.Itoa(dims)},
		nil, // No embedding func (we provide embeddings)
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get collection: %w", memory.ErrStoreUnavailable, err)
	}
	return &ChromemStore{db: db, col: col, dims: dims}, nil
}

// checkMeta verifies or writes the store's dimension record.
func checkMeta(opts Options) error {
	path := filepath.Join(opts.Path, metaFile)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data, err = json.Marshal(storeMeta{Collection: opts.Collection, Dimensions: opts.Dimensions})
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("%w: write store meta: %w", memory.ErrStoreUnavailable, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("%w: read store meta: %w", memory.ErrStoreUnavailable, err)
	}

	var meta storeMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("%w: parse store meta: %w", memory.ErrStoreUnavailable, err)
	}
	if meta.Dimensions != opts.Dimensions {
		return fmt.Errorf("%w: store at %s holds %d-dimensional vectors, embedder produces %d",
			memory.ErrDimensionMismatch, opts.Path, meta.Dimensions, opts.Dimensions)
	}
	return nil
}

// Insert saves a record with its embedding.
func (s *ChromemStore) Insert(ctx context.Context, rec memory.Record) error {
	if len(rec.Embedding) != s.dims {
		return fmt.Errorf("%w: got %d, want %d", memory.ErrDimensionMismatch, len(rec.Embedding), s.dims)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	golog.Debugf("[CHROMEM] Storing memory: id=%s, topic=%q", rec.ID, rec.Topic)

	// Copy so chromem's normalization never touches the caller's slice
	embedding := make([]float32, len(rec.Embedding))
	copy(embedding, rec.Embedding)

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Text,
		Embedding: embedding,
		Metadata:  serializeMetadata(rec),
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: add document: %w", memory.ErrStoreUnavailable, err)
	}
	return nil
}

// Query retrieves records by vector similarity.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, topK int) ([]memory.RecallResult, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", memory.ErrDimensionMismatch, len(vector), s.dims)
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// chromem-go requires nResults <= collection size. Rank the whole
	// collection so ties are ordered by recency, not by chromem's order.
	results, err := s.queryAll(ctx, vector)
	if err != nil {
		return nil, err
	}

	golog.Debugf("[CHROMEM] Ranked %d records, returning up to %d", len(results), topK)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Recent returns up to n records, newest first.
func (s *ChromemStore) Recent(ctx context.Context, n int) ([]memory.Record, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	memory.SortNewestFirst(records)
	if len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// Stats reports count, mean importance and the created-at range.
func (s *ChromemStore) Stats(ctx context.Context) (memory.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.scan(ctx)
	if err != nil {
		return memory.Stats{}, err
	}
	return memory.ComputeStats(records), nil
}

// Clear removes every record.
func (s *ChromemStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.delete(ctx, records); err != nil {
		return 0, err
	}
	golog.Infof("[CHROMEM] Cleared %d records", len(records))
	return len(records), nil
}

// Prune deletes records outside the retention policy.
func (s *ChromemStore) Prune(ctx context.Context, policy memory.PrunePolicy) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}
	expired := memory.SelectExpired(records, policy)
	if err := s.delete(ctx, expired); err != nil {
		return 0, err
	}
	return len(expired), nil
}

// Dimensions returns the vector size this store accepts.
func (s *ChromemStore) Dimensions() int {
	return s.dims
}

// Close releases resources.
func (s *ChromemStore) Close() error {
	// chromem-go persists on every write, nothing to flush
	return nil
}

// queryAll ranks every record against vector. Callers hold s.mu.
func (s *ChromemStore) queryAll(ctx context.Context, vector []float32) ([]memory.RecallResult, error) {
	n := s.col.Count()
	if n == 0 {
		return nil, nil
	}

	raw, err := s.col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chromem query: %w", memory.ErrStoreUnavailable, err)
	}

	results := make([]memory.RecallResult, 0, len(raw))
	for i, r := range raw {
		rec, err := deserializeRecord(r)
		if err != nil {
			golog.Warnf("[CHROMEM] Skipping result #%d: %v", i+1, err)
			continue
		}
		results = append(results, memory.RecallResult{
			Record:   rec,
			Distance: 1 - float64(r.Similarity),
		})
	}
	memory.SortResults(results)
	return results, nil
}

// scan returns every record. Callers hold s.mu.
func (s *ChromemStore) scan(ctx context.Context) ([]memory.Record, error) {
	axis := make([]float32, s.dims)
	axis[0] = 1

	results, err := s.queryAll(ctx, axis)
	if err != nil {
		return nil, err
	}
	records := make([]memory.Record, len(results))
	for i, r := range results {
		records[i] = r.Record
	}
	return records, nil
}

func (s *ChromemStore) delete(ctx context.Context, records []memory.Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := s.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("%w: delete documents: %w", memory.ErrStoreUnavailable, err)
	}
	return nil
}

// serializeMetadata flattens record fields into chromem's string metadata.
func serializeMetadata(rec memory.Record) map[string]string {
	return map[string]string{
		"topic":        rec.Topic,
		"importance":   strconv.FormatFloat(rec.Importance, 'g', -1, 64),
		"created_at":   rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		"source_count": strconv.Itoa(rec.SourceCount),
		"source_first": strconv.Itoa(rec.SourceRange.First),
		"source_last":  strconv.Itoa(rec.SourceRange.Last),
	}
}

// deserializeRecord converts a chromem result back to a Record.
func deserializeRecord(r chromem.Result) (memory.Record, error) {
	importance, err := strconv.ParseFloat(r.Metadata["importance"], 64)
	if err != nil {
		return memory.Record{}, fmt.Errorf("parse importance: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, r.Metadata["created_at"])
	if err != nil {
		return memory.Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	count, _ := strconv.Atoi(r.Metadata["source_count"])
	first, _ := strconv.Atoi(r.Metadata["source_first"])
	last, _ := strconv.Atoi(r.Metadata["source_last"])

	embedding := make([]float32, len(r.Embedding))
	copy(embedding, r.Embedding)

	return memory.Record{
		ID:          r.ID,
		Text:        r.Content,
		Topic:       r.Metadata["topic"],
		Embedding:   embedding,
		Importance:  importance,
		CreatedAt:   createdAt,
		SourceCount: count,
		SourceRange: core.SeqRange{First: first, Last: last},
	}, nil
}

var _ memory.Store = (*ChromemStore)(nil)
