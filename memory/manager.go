package memory

import (
	"context"
	"time"

	"github.com/kataras/golog"
)

// DefaultPreviewQuery is used by Preview when no query is given.
const DefaultPreviewQuery = "recent conversation"

// Manager owns the shared memory components: one store, embedder and
// summarizer serve every conversation. Conversations are represented by
// Sessions created with NewSession.
type Manager struct {
	store      Store
	embedder   Embedder // Internal: the engine never sees this
	summarizer Summarizer
	config     *Config
	metrics    *Metrics
	now        func() time.Time

	archiver *Archiver
	recaller *Recaller
}

// Option configures a Manager.
type Option func(*Manager)

// WithSummarizer sets the external summarizer. Without one every batch is
// summarized by FallbackSummarizer.
func WithSummarizer(s Summarizer) Option {
	return func(m *Manager) {
		m.summarizer = s
	}
}

// WithMetrics records archival and recall metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithClock overrides the clock used to timestamp records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new Manager.
func NewManager(store Store, embedder Embedder, config *Config, opts ...Option) *Manager {
	if config == nil {
		config = DefaultConfig
	}
	m := &Manager{
		store:    store,
		embedder: embedder,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.archiver = NewArchiver(store, embedder, m.summarizer, config)
	m.archiver.metrics = m.metrics
	m.archiver.now = m.now
	m.recaller = NewRecaller(store, embedder)
	m.recaller.metrics = m.metrics

	if store != nil && embedder != nil && store.Dimensions() != embedder.Dimensions() {
		golog.Warnf("[MEMORY] Embedder produces %d dimensions but store expects %d",
			embedder.Dimensions(), store.Dimensions())
	}
	return m
}

// Config returns the manager's configuration.
func (m *Manager) Config() *Config {
	return m.config
}

// Enabled reports whether the memory system is on.
func (m *Manager) Enabled() bool {
	return m.config.Enabled
}

// NewSession starts a conversation anchored by systemPrompt.
func (m *Manager) NewSession(systemPrompt string) *Session {
	return newSession(m, systemPrompt)
}

// Recall returns up to topK records similar to query. A non-positive topK
// uses the configured RecallTopK.
func (m *Manager) Recall(ctx context.Context, query string, topK int) (*Recollection, error) {
	if !m.config.Enabled {
		return nil, ErrMemoryDisabled
	}
	if topK <= 0 {
		topK = m.config.RecallTopK
	}
	return m.recaller.Recall(ctx, query, topK)
}

// Search is Recall restricted to records matching filter.
func (m *Manager) Search(ctx context.Context, query string, topK int, filter Filter) (*Recollection, error) {
	if !m.config.Enabled {
		return nil, ErrMemoryDisabled
	}
	if topK <= 0 {
		topK = m.config.RecallTopK
	}
	return m.recaller.RecallFiltered(ctx, query, topK, filter)
}

// Recent lists up to n stored records, newest first.
func (m *Manager) Recent(ctx context.Context, n int) ([]Record, error) {
	if !m.config.Enabled {
		return nil, ErrMemoryDisabled
	}
	return m.store.Recent(ctx, n)
}

// Retrieve recalls memories for a user message and returns them formatted
// for prompt injection. It returns "" when memory is disabled or nothing
// was recalled.
func (m *Manager) Retrieve(ctx context.Context, userMessage string) (string, []Recalled, error) {
	if !m.config.Enabled {
		return "", nil, nil // Memory disabled
	}

	rec, err := m.Recall(ctx, userMessage, m.config.RecallTopK)
	if err != nil {
		return "", nil, err
	}
	items := rec.Collect()
	if len(items) == 0 {
		golog.Debugf("[MEMORY]   No memories found")
		return "", nil, nil
	}
	return FormatInjection(items, m.now()), items, nil
}

// Preview is what would be injected for a query, without any reply being produced.
type Preview struct {
	Query     string
	Memories  []Recalled
	Injection string
}

// Preview recalls for query and renders the injection block.
// An empty query uses DefaultPreviewQuery.
func (m *Manager) Preview(ctx context.Context, query string) (*Preview, error) {
	if query == "" {
		query = DefaultPreviewQuery
	}
	rec, err := m.Recall(ctx, query, m.config.RecallTopK)
	if err != nil {
		return nil, err
	}
	items := rec.Collect()
	return &Preview{
		Query:     query,
		Memories:  items,
		Injection: FormatInjection(items, m.now()),
	}, nil
}

// Stats reports store statistics.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	if !m.config.Enabled {
		return Stats{}, ErrMemoryDisabled
	}
	return m.store.Stats(ctx)
}

// Clear deletes every stored record.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	if !m.config.Enabled {
		return 0, ErrMemoryDisabled
	}
	n, err := m.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	golog.Infof("[MEMORY] Cleared %d memories", n)
	return n, nil
}

// Prune applies the configured retention policy now.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if !m.config.Enabled {
		return 0, ErrMemoryDisabled
	}
	return m.store.Prune(ctx, m.config.PrunePolicy(m.now()))
}

// Close releases the store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
