package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kataras/golog"
	_ "modernc.org/sqlite"

	"github.com/becomeliminal/nim-memory/memory"
)

// DatabaseFile is the file created under the store directory.
const DatabaseFile = "memory.db"

// SQLiteStore keeps records in a SQLite database. Vectors are stored as
// little-endian float32 blobs and ranked in Go by cosine distance.
type SQLiteStore struct {
	db   *sql.DB
	dims int
	mu   sync.RWMutex
}

// Open opens (or creates) a store in dir. A store created with different
// dimensions is refused with memory.ErrDimensionMismatch.
func Open(dir string, dims int) (*SQLiteStore, error) {
	if dims < 1 {
		return nil, fmt.Errorf("sqlite store: dimensions must be positive, got %d", dims)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %w", memory.ErrStoreUnavailable, err)
	}

	path := filepath.Join(dir, DatabaseFile)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", memory.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: set WAL mode: %w", memory.ErrStoreUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: set busy timeout: %w", memory.ErrStoreUnavailable, err)
	}

	s := &SQLiteStore{db: db, dims: dims}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.checkDimensions(); err != nil {
		db.Close()
		return nil, err
	}

	golog.Infof("[SQLITE] Opened %s (dims=%d)", path, dims)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			embedding BLOB NOT NULL,
			importance REAL NOT NULL,
			created_at INTEGER NOT NULL,
			source_count INTEGER NOT NULL DEFAULT 0,
			source_first INTEGER NOT NULL DEFAULT 0,
			source_last INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories (created_at)`,
		`CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("%w: init schema: %w", memory.ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *SQLiteStore) checkDimensions() error {
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO store_meta (key, value) VALUES ('dimensions', ?)`,
		strconv.Itoa(s.dims)); err != nil {
		return fmt.Errorf("%w: record dimensions: %w", memory.ErrStoreUnavailable, err)
	}

	var value string
	if err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = 'dimensions'`).Scan(&value); err != nil {
		return fmt.Errorf("%w: read dimensions: %w", memory.ErrStoreUnavailable, err)
	}
	if stored, _ := strconv.Atoi(value); stored != s.dims {
		return fmt.Errorf("%w: store holds %s-dimensional vectors, embedder produces %d",
			memory.ErrDimensionMismatch, value, s.dims)
	}
	return nil
}

// Insert saves a record. Re-inserting an ID replaces it.
func (s *SQLiteStore) Insert(ctx context.Context, rec memory.Record) error {
	if len(rec.Embedding) != s.dims {
		return fmt.Errorf("%w: got %d, want %d", memory.ErrDimensionMismatch, len(rec.Embedding), s.dims)
	}

	blob, err := encodeVector(rec.Embedding)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memories
		 (id, text, topic, embedding, importance, created_at, source_count, source_first, source_last)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Text, rec.Topic, blob, rec.Importance, rec.CreatedAt.UnixNano(),
		rec.SourceCount, rec.SourceRange.First, rec.SourceRange.Last,
	)
	if err != nil {
		return fmt.Errorf("%w: insert: %w", memory.ErrStoreUnavailable, err)
	}
	golog.Debugf("[SQLITE] Stored memory: id=%s, topic=%q", rec.ID, rec.Topic)
	return nil
}

// Query loads every record, ranks it against vector and returns the top K.
// OK for the bounded sizes retention keeps the store at.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, topK int) ([]memory.RecallResult, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", memory.ErrDimensionMismatch, len(vector), s.dims)
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, topic, embedding, importance, created_at, source_count, source_first, source_last
		 FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", memory.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var results []memory.RecallResult
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			golog.Warnf("[SQLITE] Skipping row: %v", err)
			continue
		}
		if len(rec.Embedding) != s.dims {
			golog.Warnf("[SQLITE] Skipping %s: %d-dimensional vector", rec.ID, len(rec.Embedding))
			continue
		}
		results = append(results, memory.RecallResult{
			Record:   rec,
			Distance: memory.CosineDistance(vector, rec.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read rows: %w", memory.ErrStoreUnavailable, err)
	}

	memory.SortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Stats reports count, mean importance and the created-at range.
func (s *SQLiteStore) Stats(ctx context.Context) (memory.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		count          int
		meanImportance float64
		oldest, newest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(importance), 0), MIN(created_at), MAX(created_at) FROM memories`,
	).Scan(&count, &meanImportance, &oldest, &newest)
	if err != nil {
		return memory.Stats{}, fmt.Errorf("%w: stats: %w", memory.ErrStoreUnavailable, err)
	}

	st := memory.Stats{Count: count, MeanImportance: meanImportance}
	if count > 0 {
		st.Oldest = time.Unix(0, oldest.Int64).UTC()
		st.Newest = time.Unix(0, newest.Int64).UTC()
	}
	return st, nil
}

// Recent returns up to n records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]memory.Record, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, topic, embedding, importance, created_at, source_count, source_first, source_last
		 FROM memories ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("%w: recent: %w", memory.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			golog.Warnf("[SQLITE] Skipping row: %v", err)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: recent: %w", memory.ErrStoreUnavailable, err)
	}
	return records, nil
}

// Clear removes every record.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM memories`)
	if err != nil {
		return 0, fmt.Errorf("%w: clear: %w", memory.ErrStoreUnavailable, err)
	}
	n, _ := res.RowsAffected()
	golog.Infof("[SQLITE] Cleared %d records", n)
	return int(n), nil
}

// Prune deletes records outside the retention policy in one transaction.
func (s *SQLiteStore) Prune(ctx context.Context, policy memory.PrunePolicy) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin prune: %w", memory.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var deleted int64
	if policy.MaxAge > 0 {
		cutoff := policy.Now.Add(-policy.MaxAge).UnixNano()
		res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE created_at < ?`, cutoff)
		if err != nil {
			return 0, fmt.Errorf("%w: prune by age: %w", memory.ErrStoreUnavailable, err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}
	if policy.MaxEntries > 0 {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM memories WHERE id NOT IN (
				SELECT id FROM memories ORDER BY created_at DESC, id DESC LIMIT ?
			)`, policy.MaxEntries)
		if err != nil {
			return 0, fmt.Errorf("%w: prune by count: %w", memory.ErrStoreUnavailable, err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit prune: %w", memory.ErrStoreUnavailable, err)
	}
	return int(deleted), nil
}

// Dimensions returns the vector size this store accepts.
func (s *SQLiteStore) Dimensions() int {
	return s.dims
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (memory.Record, error) {
	var (
		rec       memory.Record
		blob      []byte
		createdAt int64
	)
	if err := row.Scan(&rec.ID, &rec.Text, &rec.Topic, &blob, &rec.Importance, &createdAt,
		&rec.SourceCount, &rec.SourceRange.First, &rec.SourceRange.Last); err != nil {
		return memory.Record{}, err
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return memory.Record{}, fmt.Errorf("decode %s: %w", rec.ID, err)
	}
	rec.Embedding = vec
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}

func encodeVector(vec []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("encode vector: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.New("vector blob length is not a multiple of 4")
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

var _ memory.Store = (*SQLiteStore)(nil)
