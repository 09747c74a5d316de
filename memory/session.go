package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kataras/golog"

	"github.com/becomeliminal/nim-memory/core"
)

// Session is one conversation. It owns exactly one Window and serializes
// every structural change to it: appends and archivals never interleave.
type Session struct {
	ID string

	manager *Manager
	mu      sync.Mutex
	window  *Window
	pending atomic.Bool // an ArchiveAsync task is outstanding
}

func newSession(m *Manager, systemPrompt string) *Session {
	return &Session{
		ID:      uuid.New().String(),
		manager: m,
		window:  NewWindow(systemPrompt, m.config.windowOptions()),
	}
}

// Append adds a turn and, while the window is over its limit, archives the
// oldest turns automatically. It returns the appended turn and the result
// of every archival it ran. When memory is disabled the window is bounded
// by dropping the oldest turns instead.
//
// If archival fails the turn stays appended and the error is returned; the
// next Append retries.
func (s *Session) Append(ctx context.Context, role core.Role, content string) (core.Turn, []*ArchiveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn, err := s.window.Append(role, content)
	if err != nil {
		return core.Turn{}, nil, err
	}

	if !s.manager.config.Enabled {
		if n := s.window.Truncate(); n > 0 {
			golog.Debugf("[MEMORY] Memory disabled, dropped %d oldest turns", n)
		}
		return turn, nil, nil
	}

	var results []*ArchiveResult
	for s.window.OverLimit() {
		res, err := s.manager.archiver.Archive(ctx, s.window, Automatic)
		if err != nil {
			return turn, results, fmt.Errorf("automatic archival: %w", err)
		}
		results = append(results, res)
	}
	return turn, results, nil
}

// Archive runs one archival in the given mode. Forced mode keeps the most
// recent KeepTail turns.
func (s *Session) Archive(ctx context.Context, mode EvictionMode) (*ArchiveResult, error) {
	if !s.manager.config.Enabled {
		return nil, ErrMemoryDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.archiver.Archive(ctx, s.window, mode)
}

// ArchiveAsync runs Archive in the background. Only one background archival
// may be outstanding per session; a second call returns ErrArchiveInProgress.
func (s *Session) ArchiveAsync(ctx context.Context, mode EvictionMode) (*Task[*ArchiveResult], error) {
	if !s.manager.config.Enabled {
		return nil, ErrMemoryDisabled
	}
	if !s.pending.CompareAndSwap(false, true) {
		return nil, ErrArchiveInProgress
	}
	return Go(ctx, func(ctx context.Context) (*ArchiveResult, error) {
		defer s.pending.Store(false)
		return s.Archive(ctx, mode)
	}), nil
}

// Turns returns a snapshot of the window, anchor first.
func (s *Session) Turns() []core.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Turns()
}

// SystemPrompt returns the anchor content.
func (s *Session) SystemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Anchor().Content
}

// Size returns the window size, anchor included.
func (s *Session) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Size()
}
