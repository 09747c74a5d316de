package memory

import (
	"fmt"

	"github.com/becomeliminal/nim-memory/core"
)

// EvictionMode selects how an eviction batch is chosen.
type EvictionMode int

const (
	// Automatic evicts the oldest ChunkSize non-anchor turns.
	Automatic EvictionMode = iota
	// Forced evicts every non-anchor turn except the most recent tail.
	Forced
)

func (m EvictionMode) String() string {
	switch m {
	case Automatic:
		return "automatic"
	case Forced:
		return "forced"
	default:
		return fmt.Sprintf("EvictionMode(%d)", int(m))
	}
}

// WindowOptions bounds a Window.
type WindowOptions struct {
	MaxSize   int // Size above which the window is over limit (anchor included)
	ChunkSize int // Batch size for Automatic eviction
}

// Window is the ordered active context of one conversation: a system anchor
// followed by user and assistant turns in chronological order.
//
// Window is not safe for concurrent use. Session serializes access to it.
type Window struct {
	turns   []core.Turn // turns[0] is the anchor
	nextSeq int
	opts    WindowOptions
}

// NewWindow creates a window anchored by the given system prompt.
func NewWindow(systemPrompt string, opts WindowOptions) *Window {
	if opts.MaxSize < 1 {
		opts.MaxSize = DefaultConfig.MaxWindowSize
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = DefaultConfig.ChunkSize
	}
	return &Window{
		turns:   []core.Turn{{Role: core.RoleSystem, Content: systemPrompt, Seq: 0}},
		nextSeq: 1,
		opts:    opts,
	}
}

// Append adds a user or assistant turn and returns it with its sequence number.
func (w *Window) Append(role core.Role, content string) (core.Turn, error) {
	if role != core.RoleUser && role != core.RoleAssistant {
		return core.Turn{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	turn := core.Turn{Role: role, Content: content, Seq: w.nextSeq}
	w.nextSeq++
	w.turns = append(w.turns, turn)
	return turn, nil
}

// Size returns the number of turns, anchor included.
func (w *Window) Size() int {
	return len(w.turns)
}

// OverLimit reports whether the window exceeds its maximum size.
func (w *Window) OverLimit() bool {
	return len(w.turns) > w.opts.MaxSize
}

// Anchor returns the system turn.
func (w *Window) Anchor() core.Turn {
	return w.turns[0]
}

// Turns returns a copy of every turn, anchor first.
func (w *Window) Turns() []core.Turn {
	out := make([]core.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// History returns a copy of the non-anchor turns.
func (w *Window) History() []core.Turn {
	out := make([]core.Turn, len(w.turns)-1)
	copy(out, w.turns[1:])
	return out
}

// SelectEvictionBatch returns the oldest contiguous run of non-anchor turns
// to evict. It does not modify the window.
func (w *Window) SelectEvictionBatch(mode EvictionMode, keepTail int) ([]core.Turn, error) {
	available := len(w.turns) - 1

	var n int
	switch mode {
	case Automatic:
		if available < w.opts.ChunkSize {
			return nil, fmt.Errorf("%w: automatic eviction needs %d turns, window has %d",
				ErrInsufficientTurns, w.opts.ChunkSize, available)
		}
		n = w.opts.ChunkSize
	case Forced:
		if keepTail < 0 {
			keepTail = 0
		}
		if available < keepTail+1 {
			return nil, fmt.Errorf("%w: forced eviction keeping %d needs %d turns, window has %d",
				ErrInsufficientTurns, keepTail, keepTail+1, available)
		}
		n = available - keepTail
	default:
		return nil, fmt.Errorf("unknown eviction mode %v", mode)
	}

	batch := make([]core.Turn, n)
	copy(batch, w.turns[1:1+n])
	return batch, nil
}

// Remove deletes batch from the window. The batch must be exactly the oldest
// run of non-anchor turns, as returned by SelectEvictionBatch; otherwise
// ErrBatchMismatch is returned and the window is unchanged.
func (w *Window) Remove(batch []core.Turn) error {
	if len(batch) == 0 {
		return nil
	}
	if len(batch) > len(w.turns)-1 {
		return fmt.Errorf("%w: batch of %d, window holds %d", ErrBatchMismatch, len(batch), len(w.turns)-1)
	}
	for i, t := range batch {
		if w.turns[1+i].Seq != t.Seq {
			return fmt.Errorf("%w: position %d holds seq %d, batch has %d", ErrBatchMismatch, i, w.turns[1+i].Seq, t.Seq)
		}
	}

	remaining := make([]core.Turn, 0, len(w.turns)-len(batch))
	remaining = append(remaining, w.turns[0])
	remaining = append(remaining, w.turns[1+len(batch):]...)
	w.turns = remaining
	return nil
}

// Truncate drops the oldest non-anchor turns until the window is within its
// limit, without archiving them. It returns how many turns were dropped.
// Used only when the memory system is disabled.
func (w *Window) Truncate() int {
	excess := len(w.turns) - w.opts.MaxSize
	if excess <= 0 {
		return 0
	}
	// Keep the anchor even when MaxSize is 1.
	if excess > len(w.turns)-1 {
		excess = len(w.turns) - 1
	}
	remaining := make([]core.Turn, 0, len(w.turns)-excess)
	remaining = append(remaining, w.turns[0])
	remaining = append(remaining, w.turns[1+excess:]...)
	w.turns = remaining
	return excess
}
