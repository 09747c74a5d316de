// Package engine runs one conversational turn: it recalls memories for the
// user's message, asks the reply model for an answer, and records both turns
// in the session so the window can archive.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kataras/golog"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

// Engine is the conversation host loop.
type Engine struct {
	manager        *memory.Manager
	responder      Responder
	normalize      bool
	recallTimeout  time.Duration
	respondTimeout time.Duration
}

// Option configures the engine.
type Option func(*Engine)

// WithQuoteNormalization toggles rewriting typographic quotes and dashes in
// replies to ASCII. On by default.
func WithQuoteNormalization(on bool) Option {
	return func(e *Engine) {
		e.normalize = on
	}
}

// WithRespondTimeout bounds each reply model call.
func WithRespondTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.respondTimeout = d
	}
}

// WithRecallTimeout bounds memory retrieval before each reply.
func WithRecallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.recallTimeout = d
	}
}

// NewEngine creates an engine over a memory manager and a reply model.
func NewEngine(manager *memory.Manager, responder Responder, opts ...Option) *Engine {
	e := &Engine{
		manager:        manager,
		responder:      responder,
		normalize:      true,
		recallTimeout:  10 * time.Second,
		respondTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Manager returns the engine's memory manager.
func (e *Engine) Manager() *memory.Manager {
	return e.manager
}

// Input is one user message.
type Input struct {
	// UserMessage is the user's message to answer.
	UserMessage string

	// StreamCallback is an optional callback for streaming responses.
	StreamCallback func(chunk string, done bool)
}

// Output is the result of a turn.
type Output struct {
	// Reply is the assistant's text, normalized.
	Reply string

	// Recalled lists the memories injected into the system prompt.
	Recalled []memory.Recalled

	// Archives holds the results of any automatic archival the turn caused.
	Archives []*memory.ArchiveResult

	// ArchiveErr is set when archival failed. The turn itself still succeeded.
	ArchiveErr error
}

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("empty message")

// Run answers input within sess.
//
// Memory retrieval failures are logged and the reply proceeds without
// memories. If the reply model fails nothing is appended, so the session is
// unchanged and the caller may retry.
func (e *Engine) Run(ctx context.Context, sess *memory.Session, input Input) (*Output, error) {
	msg := strings.TrimSpace(input.UserMessage)
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	// === PHASE 1: RECALL ===
	block, recalled := e.retrieve(ctx, msg)
	system := memory.ComposeSystemPrompt(sess.SystemPrompt(), block)

	// === PHASE 2: REPLY ===
	turns := sess.Turns()
	respondCtx, cancel := context.WithTimeout(ctx, e.respondTimeout)
	defer cancel()

	start := time.Now()
	reply, err := e.responder.Respond(respondCtx, Request{
		System:         system,
		History:        turns[1:], // anchor is carried by System
		UserMessage:    msg,
		StreamCallback: input.StreamCallback,
	})
	if err != nil {
		return nil, fmt.Errorf("reply model: %w", err)
	}
	golog.Debugf("[ENGINE] Reply in %v (%d chars, %d memories injected)", time.Since(start), len(reply), len(recalled))

	if e.normalize {
		reply = NormalizeQuotes(reply)
	}

	// === PHASE 3: RECORD ===
	out := &Output{Reply: reply, Recalled: recalled}
	for _, t := range []struct {
		role    core.Role
		content string
	}{{core.RoleUser, msg}, {core.RoleAssistant, reply}} {
		_, archives, err := sess.Append(ctx, t.role, t.content)
		out.Archives = append(out.Archives, archives...)
		if err != nil {
			golog.Warnf("[ENGINE] Archival after %s turn failed: %v", t.role, err)
			out.ArchiveErr = err
		}
	}
	for _, a := range out.Archives {
		golog.Infof("[ENGINE] Archived %d turns (%s, stored=%v, importance=%.2f)",
			a.Archived, a.SourceRange, a.Stored, a.Importance)
	}
	return out, nil
}

func (e *Engine) retrieve(ctx context.Context, msg string) (string, []memory.Recalled) {
	if !e.manager.Enabled() {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.recallTimeout)
	defer cancel()

	block, recalled, err := e.manager.Retrieve(ctx, msg)
	if err != nil {
		golog.Warnf("[ENGINE] Memory retrieval failed, replying without memories: %v", err)
		return "", nil
	}
	return block, recalled
}
