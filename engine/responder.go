package engine

import (
	"context"

	"github.com/becomeliminal/nim-memory/core"
)

// Request is what the reply model sees for one turn.
type Request struct {
	// System is the persona prompt with any recalled memories appended.
	System string

	// History is the live window without its system anchor, oldest first.
	History []core.Turn

	// UserMessage is the message to answer. It is not yet in History.
	UserMessage string

	// StreamCallback receives reply chunks when set.
	StreamCallback func(chunk string, done bool)
}

// Responder produces the assistant's reply.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, req Request) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
