package memory

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/kataras/golog"
)

// Bucket is a coarse relevance label derived from distance.
type Bucket string

const (
	BucketHigh   Bucket = "high"
	BucketMedium Bucket = "medium"
	BucketLow    Bucket = "low"
)

// Distance boundaries between buckets. Both bounds belong to the medium bucket.
const (
	highRelevanceDistance   = 0.3
	mediumRelevanceDistance = 0.6
)

// BucketFor maps a cosine distance to its relevance bucket.
func BucketFor(distance float64) Bucket {
	switch {
	case distance < highRelevanceDistance:
		return BucketHigh
	case distance <= mediumRelevanceDistance:
		return BucketMedium
	default:
		return BucketLow
	}
}

// Recalled is a recall result labelled with its bucket.
type Recalled struct {
	RecallResult
	Bucket Bucket
}

// Recollection holds the results of one recall query.
//
// Memories yields them lazily in similarity order and only once: ranging a
// second time continues where the first range stopped. Results gives
// repeatable access to the raw results. Not safe for concurrent use.
type Recollection struct {
	query   string
	results []RecallResult
	pos     int
	metrics *Metrics
}

// Query returns the text the recollection was recalled for.
func (r *Recollection) Query() string {
	return r.query
}

// Len returns the total number of results.
func (r *Recollection) Len() int {
	return len(r.results)
}

// Results returns a copy of the raw results.
func (r *Recollection) Results() []RecallResult {
	out := make([]RecallResult, len(r.results))
	copy(out, r.results)
	return out
}

// Memories yields the not yet consumed results with their bucket.
func (r *Recollection) Memories() iter.Seq[Recalled] {
	return func(yield func(Recalled) bool) {
		for r.pos < len(r.results) {
			res := r.results[r.pos]
			r.pos++
			item := Recalled{RecallResult: res, Bucket: BucketFor(res.Distance)}
			r.metrics.recalled(item.Bucket)
			if !yield(item) {
				return
			}
		}
	}
}

// Collect drains the remaining results.
func (r *Recollection) Collect() []Recalled {
	var out []Recalled
	for item := range r.Memories() {
		out = append(out, item)
	}
	return out
}

// Recaller embeds queries and looks up similar records.
type Recaller struct {
	store    Store
	embedder Embedder
	metrics  *Metrics
}

// NewRecaller creates a Recaller.
func NewRecaller(store Store, embedder Embedder) *Recaller {
	return &Recaller{store: store, embedder: embedder}
}

// Filter narrows a recall by record metadata. Zero fields disable their
// condition; the time bounds are inclusive.
type Filter struct {
	MinImportance float64
	After         time.Time
	Before        time.Time
}

// IsZero reports whether f filters nothing.
func (f Filter) IsZero() bool {
	return f.MinImportance <= 0 && f.After.IsZero() && f.Before.IsZero()
}

// Match reports whether rec passes every condition.
func (f Filter) Match(rec Record) bool {
	switch {
	case f.MinImportance > 0 && rec.Importance < f.MinImportance:
		return false
	case !f.After.IsZero() && rec.CreatedAt.Before(f.After):
		return false
	case !f.Before.IsZero() && rec.CreatedAt.After(f.Before):
		return false
	}
	return true
}

// Recall returns up to topK records most similar to query.
// An empty store yields an empty recollection.
func (r *Recaller) Recall(ctx context.Context, query string, topK int) (*Recollection, error) {
	return r.RecallFiltered(ctx, query, topK, Filter{})
}

// RecallFiltered is Recall restricted to records matching filter. The topK
// most similar matching records are returned, however far down the full
// ranking they sit.
func (r *Recaller) RecallFiltered(ctx context.Context, query string, topK int, filter Filter) (*Recollection, error) {
	// Embed query
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	k := topK
	if !filter.IsZero() && topK > 0 {
		st, err := r.store.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("count records: %w", err)
		}
		k = st.Count
	}

	results, err := r.store.Query(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	if !filter.IsZero() {
		kept := results[:0]
		for _, res := range results {
			if filter.Match(res.Record) {
				kept = append(kept, res)
			}
		}
		results = kept[:min(len(kept), max(topK, 0))]
	}

	r.metrics.recall()
	golog.Debugf("[MEMORY] Recalled %d memories for query: %q", len(results), truncateLog(query, 50))
	return &Recollection{query: query, results: results, metrics: r.metrics}, nil
}

const (
	recalledHeader = "[Recalled from past conversations - reference as needed]"
	recalledFooter = "[/Recalled memories]"
)

// FormatRecalled renders recalled memories as a block for the system prompt,
// one line per record with its bucket tag. It returns "" for no memories.
func FormatRecalled(items []Recalled) string {
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(recalledHeader)
	b.WriteString("\n")
	for i, item := range items {
		text := strings.Join(strings.Fields(item.Record.Text), " ")
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, item.Bucket, text)
	}
	b.WriteString(recalledFooter)
	return b.String()
}

// CurrentTimeLayout formats the timestamp line closing an injection block.
const CurrentTimeLayout = "2006-01-02 15:04:05"

// FormatInjection is FormatRecalled followed by a line with the current
// time, so the reply model can place recalled memories relative to now.
// It returns "" for no memories.
func FormatInjection(items []Recalled, now time.Time) string {
	block := FormatRecalled(items)
	if block == "" {
		return ""
	}
	return block + "\nCurrent time: " + now.Format(CurrentTimeLayout)
}

// ComposeSystemPrompt appends a recalled-memory block to a base system prompt.
func ComposeSystemPrompt(base, block string) string {
	if block == "" {
		return base
	}
	if base == "" {
		return block
	}
	return base + "\n\n" + block
}
