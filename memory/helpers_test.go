package memory_test

import (
	"context"
	"sync"
	"time"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	mu         sync.Mutex
	dims       int
	records    []memory.Record
	insertErrs []error // returned by successive Insert calls before succeeding
	inserts    int
	queryErr   error
}

func newFakeStore(dims int) *fakeStore {
	return &fakeStore{dims: dims}
}

func (s *fakeStore) Insert(_ context.Context, rec memory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	if len(rec.Embedding) != s.dims {
		return memory.ErrDimensionMismatch
	}
	s.records = append(s.records, rec.Clone())
	return nil
}

func (s *fakeStore) Query(_ context.Context, vector []float32, topK int) ([]memory.RecallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if len(vector) != s.dims {
		return nil, memory.ErrDimensionMismatch
	}
	var out []memory.RecallResult
	for _, r := range s.records {
		out = append(out, memory.RecallResult{Record: r.Clone(), Distance: memory.CosineDistance(vector, r.Embedding)})
	}
	memory.SortResults(out)
	if topK < len(out) {
		out = out[:max(topK, 0)]
	}
	return out, nil
}

func (s *fakeStore) Recent(_ context.Context, n int) ([]memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]memory.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	memory.SortNewestFirst(out)
	if n < len(out) {
		out = out[:max(n, 0)]
	}
	return out, nil
}

func (s *fakeStore) Stats(context.Context) (memory.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memory.ComputeStats(s.records), nil
}

func (s *fakeStore) Clear(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = nil
	return n, nil
}

func (s *fakeStore) Prune(_ context.Context, policy memory.PrunePolicy) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := make(map[string]bool)
	for _, r := range memory.SelectExpired(s.records, policy) {
		expired[r.ID] = true
	}
	kept := s.records[:0]
	for _, r := range s.records {
		if !expired[r.ID] {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return len(expired), nil
}

func (s *fakeStore) Dimensions() int { return s.dims }

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) all() []memory.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]memory.Record, len(s.records))
	copy(out, s.records)
	return out
}

// fixedSummarizer returns the same summary for every batch and records calls.
type fixedSummarizer struct {
	mu      sync.Mutex
	summary memory.Summary
	err     error
	delay   time.Duration
	batches [][]core.Turn
}

func (f *fixedSummarizer) Summarize(ctx context.Context, turns []core.Turn) (memory.Summary, error) {
	f.mu.Lock()
	f.batches = append(f.batches, turns)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return memory.Summary{}, ctx.Err()
		}
	}
	return f.summary, f.err
}

func (f *fixedSummarizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// testConfig is an enabled config with a small window.
func testConfig() *memory.Config {
	cfg := *memory.DefaultConfig
	cfg.Enabled = true
	cfg.MaxWindowSize = 9
	cfg.ChunkSize = 4
	cfg.KeepTail = 2
	cfg.ImportanceThreshold = 0.3
	cfg.SummarizeTimeout = time.Second
	return &cfg
}

// fillWindow appends n alternating user/assistant turns.
func fillWindow(w *memory.Window, n int) {
	for i := 0; i < n; i++ {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		if _, err := w.Append(role, "message about the garden and the weather"); err != nil {
			panic(err)
		}
	}
}
