package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kataras/golog"

	"github.com/becomeliminal/nim-memory/commands"
	"github.com/becomeliminal/nim-memory/engine"
	"github.com/becomeliminal/nim-memory/memory"
)

const (
	readLimit    = 1 << 20
	idleTimeout  = 10 * time.Minute
	writeTimeout = 10 * time.Second
)

// handleWS runs one conversation. Messages are handled strictly in order on
// the read goroutine, which is also the only writer.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.connections.Add(1)
	defer s.connections.Add(-1)

	sess := s.engine.Manager().NewSession(s.systemPrompt)
	golog.Infof("[SERVER] Session %s connected", sess.ID)
	defer golog.Infof("[SERVER] Session %s disconnected", sess.ID)

	write := func(msg ServerMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(msg)
	}
	if err := write(ServerMessage{Type: TypeSession, SessionID: sess.ID}); err != nil {
		return
	}

	conn.SetReadLimit(readLimit)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var in ClientMessage
		if err := json.Unmarshal(data, &in); err != nil {
			if write(errorMessage("invalid_client_message", err)) != nil {
				return
			}
			continue
		}
		if err := write(s.handle(r.Context(), sess, in, write)); err != nil {
			golog.Debugf("[SERVER] Write failed: %v", err)
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, sess *memory.Session, in ClientMessage, write func(ServerMessage) error) ServerMessage {
	switch in.Type {
	case TypeCommand, TypeMessage:
	default:
		return errorMessage("unknown_type", errors.New("unknown message type "+in.Type))
	}

	if in.Type == TypeCommand || commands.IsCommand(in.Content) {
		res, ok := s.dispatcher.Dispatch(ctx, sess, in.Content)
		if ok {
			return ServerMessage{Type: TypeCommandResult, Result: res}
		}
		if in.Type == TypeCommand {
			return errorMessage("unknown_command", errors.New("unknown command "+strings.TrimSpace(in.Content)))
		}
		// Unknown slash text in a message is conversation.
	}

	input := engine.Input{UserMessage: in.Content}
	if in.Stream {
		input.StreamCallback = func(chunk string, done bool) {
			if !done && chunk != "" {
				_ = write(ServerMessage{Type: TypeChunk, Content: chunk})
			}
		}
	}

	out, err := s.engine.Run(ctx, sess, input)
	if err != nil {
		code := "reply_failed"
		if errors.Is(err, engine.ErrEmptyMessage) {
			code = "empty_message"
		}
		return errorMessage(code, err)
	}
	return ServerMessage{
		Type:     TypeReply,
		Content:  out.Reply,
		Recalled: recalledViews(out.Recalled),
		Archives: archiveViews(out.Archives),
	}
}

func errorMessage(code string, err error) ServerMessage {
	return ServerMessage{Type: TypeError, Code: code, Error: err.Error()}
}
