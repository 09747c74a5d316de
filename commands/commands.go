// Package commands implements the slash-command surface shared by the chat
// REPL and the websocket server: memory statistics, search, clearing,
// forced archival and recall preview.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kataras/golog"

	"github.com/becomeliminal/nim-memory/memory"
)

// Kind classifies a command result.
type Kind string

const (
	KindOK       Kind = "ok"
	KindAdvisory Kind = "advisory" // nothing was changed; the message says why
	KindError    Kind = "error"
)

// ConfirmToken must follow memory_clear.
const ConfirmToken = "confirm"

// Memory is one recalled record as shown to the user.
type Memory struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	Topic      string        `json:"topic,omitempty"`
	Bucket     memory.Bucket `json:"bucket"`
	Distance   float64       `json:"distance"`
	Relevance  float64       `json:"relevance"`
	Importance float64       `json:"importance"`
	CreatedAt  time.Time     `json:"created_at"`
}

// StatsView is memory.Stats for display.
type StatsView struct {
	Count          int       `json:"count"`
	MeanImportance float64   `json:"mean_importance"`
	Oldest         time.Time `json:"oldest,omitempty"`
	Newest         time.Time `json:"newest,omitempty"`
}

// ArchiveView is memory.ArchiveResult for display.
type ArchiveView struct {
	Archived     int      `json:"archived"`
	Stored       bool     `json:"stored"`
	RecordID     string   `json:"record_id,omitempty"`
	Importance   float64  `json:"importance"`
	Summary      string   `json:"summary"`
	Topic        string   `json:"topic,omitempty"`
	KeyPoints    []string `json:"key_points,omitempty"`
	SourceRange  string   `json:"source_range"`
	WindowBefore int      `json:"window_before"`
	WindowAfter  int      `json:"window_after"`
	UsedFallback bool     `json:"used_fallback"`
}

// Result is the outcome of one command.
type Result struct {
	Command   string       `json:"command"`
	Kind      Kind         `json:"kind"`
	Message   string       `json:"message"`
	Query     string       `json:"query,omitempty"`
	Stats     *StatsView   `json:"stats,omitempty"`
	Memories  []Memory     `json:"memories,omitempty"`
	Injection string       `json:"injection,omitempty"`
	Archive   *ArchiveView `json:"archive,omitempty"`
	Cleared   int          `json:"cleared,omitempty"`
	Help      []Help       `json:"help,omitempty"`
}

// Help describes one command.
type Help struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type handler func(ctx context.Context, sess *memory.Session, args string) *Result

type command struct {
	usage       string
	description string
	run         handler
	memory      bool // requires the memory system
}

// Dispatcher routes command lines to handlers.
type Dispatcher struct {
	manager  *memory.Manager
	commands map[string]command
}

// NewDispatcher creates a dispatcher over manager.
func NewDispatcher(manager *memory.Manager) *Dispatcher {
	d := &Dispatcher{manager: manager}
	d.commands = map[string]command{
		"help":           {"/help", "List available commands.", d.help, false},
		"memory_stats":   {"/memory-stats", "Show memory system statistics", d.stats, true},
		"memory_search":  {"/memory-search <query>", "Search memories", d.search, true},
		"memory_clear":   {"/memory-clear confirm", "Clear all stored memories (requires confirmation)", d.clear, true},
		"memory_force":   {"/memory-force", "Force archive all but the most recent messages to memory", d.force, true},
		"memory_preview": {"/memory-preview [query]", "Preview recalled memories for a query", d.preview, true},
		"memory_recent":  {"/memory-recent [n]", "List the most recently stored memories", d.recent, true},
	}
	return d
}

// IsCommand reports whether line is a slash command.
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// Normalize maps a command name to its lookup key: /Memory-Stats and
// memory_stats both become memory_stats.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimLeft(name, "/")
	return strings.ReplaceAll(name, "-", "_")
}

// Parse splits a command line into its normalized name and argument text.
func Parse(line string) (name, args string) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
	name = Normalize(fields[0])
	if len(fields) > 1 {
		args = strings.TrimSpace(fields[1])
	}
	return name, args
}

// Dispatch runs line. ok is false when the line names no known command, in
// which case the caller should treat it as conversation.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *memory.Session, line string) (res *Result, ok bool) {
	name, args := Parse(line)
	cmd, ok := d.commands[name]
	if !ok {
		return nil, false
	}

	if cmd.memory && !d.manager.Enabled() {
		res = advisory("Memory system is not enabled")
	} else {
		res = cmd.run(ctx, sess, args)
	}
	res.Command = name
	golog.Debugf("[COMMAND] %s -> %s", name, res.Kind)
	return res, true
}

// Commands lists every command, sorted by name.
func (d *Dispatcher) Commands() []Help {
	out := make([]Help, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, Help{Name: c.usage, Description: c.description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *Dispatcher) help(context.Context, *memory.Session, string) *Result {
	cmds := d.Commands()
	lines := make([]string, 0, len(cmds)+1)
	lines = append(lines, "Available commands:")
	for _, c := range cmds {
		lines = append(lines, fmt.Sprintf("  %s - %s", c.Name, c.Description))
	}
	return &Result{Kind: KindOK, Message: strings.Join(lines, "\n"), Help: cmds}
}

func (d *Dispatcher) stats(ctx context.Context, _ *memory.Session, _ string) *Result {
	st, err := d.manager.Stats(ctx)
	if err != nil {
		return failure("getting memory stats", err)
	}
	view := &StatsView{Count: st.Count, MeanImportance: st.MeanImportance, Oldest: st.Oldest, Newest: st.Newest}
	msg := fmt.Sprintf("Memory System Statistics\n  Total memories: %d\n  Average importance: %.2f\n  Oldest memory: %s\n  Newest memory: %s",
		st.Count, st.MeanImportance, FormatTime(st.Oldest), FormatTime(st.Newest))
	return &Result{Kind: KindOK, Message: msg, Stats: view}
}

func (d *Dispatcher) search(ctx context.Context, _ *memory.Session, query string) *Result {
	return d.Search(ctx, query, memory.Filter{})
}

// Search lists memories similar to query that pass filter.
func (d *Dispatcher) Search(ctx context.Context, query string, filter memory.Filter) *Result {
	if !d.manager.Enabled() {
		return &Result{Command: "memory_search", Kind: KindAdvisory, Message: "Memory system is not enabled"}
	}
	res := d.runSearch(ctx, query, filter)
	res.Command = "memory_search"
	return res
}

func (d *Dispatcher) runSearch(ctx context.Context, query string, filter memory.Filter) *Result {
	if query == "" {
		return advisory("Usage: /memory-search <query>")
	}
	rec, err := d.manager.Search(ctx, query, 0, filter)
	if err != nil {
		return failure("searching memories", err)
	}
	mems := views(rec.Collect())
	if len(mems) == 0 {
		return &Result{Kind: KindOK, Message: "No matching memories found", Query: query}
	}

	lines := []string{fmt.Sprintf("Found %d matching memories:", len(mems))}
	for i, m := range mems {
		lines = append(lines,
			fmt.Sprintf("%d. %s (relevance: %.2f, importance: %.2f)", i+1, FormatTime(m.CreatedAt), m.Relevance, m.Importance),
			"   "+m.Text)
	}
	return &Result{Kind: KindOK, Message: strings.Join(lines, "\n"), Query: query, Memories: mems}
}

// DefaultRecent is how many records memory_recent lists without an argument.
const DefaultRecent = 10

func (d *Dispatcher) recent(ctx context.Context, _ *memory.Session, args string) *Result {
	n := DefaultRecent
	if args != "" {
		v, err := strconv.Atoi(args)
		if err != nil || v < 1 {
			return advisory("Usage: /memory-recent [n]")
		}
		n = v
	}
	records, err := d.manager.Recent(ctx, n)
	if err != nil {
		return failure("listing recent memories", err)
	}
	if len(records) == 0 {
		return &Result{Kind: KindOK, Message: "No memories stored yet"}
	}

	mems := make([]Memory, 0, len(records))
	lines := []string{fmt.Sprintf("Most recent %d memories:", len(records))}
	for i, r := range records {
		mems = append(mems, Memory{
			ID:         r.ID,
			Text:       r.Text,
			Topic:      r.Topic,
			Importance: r.Importance,
			CreatedAt:  r.CreatedAt,
		})
		lines = append(lines,
			fmt.Sprintf("%d. %s [%s] (importance: %.2f)", i+1, FormatTime(r.CreatedAt), orNA(r.Topic), r.Importance),
			"   "+r.Text)
	}
	return &Result{Kind: KindOK, Message: strings.Join(lines, "\n"), Memories: mems}
}

func (d *Dispatcher) clear(ctx context.Context, _ *memory.Session, args string) *Result {
	if strings.ToLower(args) != ConfirmToken {
		return advisory("This will delete all stored memories!\nTo confirm, use: /memory-clear confirm")
	}
	n, err := d.manager.Clear(ctx)
	if err != nil {
		return failure("clearing memories", err)
	}
	return &Result{Kind: KindOK, Message: fmt.Sprintf("Cleared %d memories from storage", n), Cleared: n}
}

func (d *Dispatcher) force(ctx context.Context, sess *memory.Session, _ string) *Result {
	if sess == nil {
		return advisory("No active conversation to archive")
	}
	before := sess.Size()
	task, err := sess.ArchiveAsync(ctx, memory.Forced)
	if err != nil {
		return failure("forcing memory archive", err)
	}
	res, err := task.Wait(ctx)
	if err != nil {
		return failure("forcing memory archive", err)
	}

	view := &ArchiveView{
		Archived:     res.Archived,
		Stored:       res.Stored,
		RecordID:     res.RecordID,
		Importance:   res.Importance,
		Summary:      res.Summary,
		Topic:        res.Topic,
		KeyPoints:    res.KeyPoints,
		SourceRange:  res.SourceRange.String(),
		WindowBefore: before,
		WindowAfter:  res.WindowSize,
		UsedFallback: res.UsedFallback,
	}

	var msg string
	if res.Stored {
		msg = fmt.Sprintf("Archived %d messages\n  Summary: %s\n  Topic: %s\n  Memory ID: %s",
			res.Archived, ellipsize(res.Summary, 100), orNA(res.Topic), ellipsize(res.RecordID, 8))
		if len(res.KeyPoints) > 0 {
			msg += "\n  Key points: " + strings.Join(res.KeyPoints, ", ")
		}
	} else {
		msg = fmt.Sprintf("Discarded %d messages: importance %.2f below threshold %.2f",
			res.Archived, res.Importance, d.manager.Config().ImportanceThreshold)
	}
	msg += fmt.Sprintf("\nContext window reduced:\n  Before: %d messages\n  After: %d messages", before, res.WindowSize)

	if st, err := d.manager.Stats(ctx); err == nil {
		msg += fmt.Sprintf("\nTotal memories stored: %d", st.Count)
	}
	return &Result{Kind: KindOK, Message: msg, Archive: view}
}

func (d *Dispatcher) preview(ctx context.Context, _ *memory.Session, query string) *Result {
	p, err := d.manager.Preview(ctx, query)
	if err != nil {
		return failure("previewing memories", err)
	}
	mems := views(p.Memories)
	if len(mems) == 0 {
		return &Result{
			Kind:    KindOK,
			Query:   p.Query,
			Message: fmt.Sprintf("No memories found for query: %s\nTry /memory-stats to see if any memories are stored.", p.Query),
		}
	}

	lines := []string{
		fmt.Sprintf("Memory Preview for query: %s", p.Query),
		fmt.Sprintf("Found %d relevant memories:", len(mems)),
	}
	for i, m := range mems {
		lines = append(lines,
			fmt.Sprintf("%d. [%s] %s (distance: %.3f, importance: %.2f)", i+1, m.Bucket, FormatTime(m.CreatedAt), m.Distance, m.Importance),
			"   "+m.Text)
	}
	lines = append(lines, "", "How this would appear in the system prompt:", p.Injection)
	return &Result{Kind: KindOK, Message: strings.Join(lines, "\n"), Query: p.Query, Memories: mems, Injection: p.Injection}
}

func views(items []memory.Recalled) []Memory {
	out := make([]Memory, 0, len(items))
	for _, it := range items {
		out = append(out, Memory{
			ID:         it.Record.ID,
			Text:       it.Record.Text,
			Topic:      it.Record.Topic,
			Bucket:     it.Bucket,
			Distance:   it.Distance,
			Relevance:  1 - it.Distance,
			Importance: it.Record.Importance,
			CreatedAt:  it.Record.CreatedAt,
		})
	}
	return out
}

func advisory(msg string) *Result {
	return &Result{Kind: KindAdvisory, Message: msg}
}

// failure turns an operation error into a result. Expected conditions are
// advisories; anything else is reported as a failure of the operation.
func failure(op string, err error) *Result {
	switch {
	case errors.Is(err, memory.ErrMemoryDisabled):
		return advisory("Memory system is not enabled")
	case errors.Is(err, memory.ErrInsufficientTurns):
		return advisory(fmt.Sprintf("Not enough messages to archive: %v", err))
	case errors.Is(err, memory.ErrArchiveInProgress):
		return advisory("An archival is already running for this conversation")
	}
	golog.Warnf("[COMMAND] Error %s: %v", op, err)
	return &Result{Kind: KindError, Message: fmt.Sprintf("Error %s: %v", op, err)}
}

// FormatTime renders a record timestamp in local time, or N/A for zero.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func ellipsize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
