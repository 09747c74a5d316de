package server

import (
	"github.com/becomeliminal/nim-memory/commands"
	"github.com/becomeliminal/nim-memory/memory"
)

// Message types on the websocket.
const (
	TypeMessage = "message" // client: a user message (or slash command)
	TypeCommand = "command" // client: a slash command

	TypeSession       = "session"        // server: sent once on connect
	TypeChunk         = "chunk"          // server: streamed reply text
	TypeReply         = "reply"          // server: the complete reply
	TypeCommandResult = "command_result" // server: result of a command
	TypeError         = "error"          // server: the request failed, the connection stays open
)

// ClientMessage is sent by the client.
type ClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Stream  bool   `json:"stream,omitempty"`
}

// ServerMessage is sent by the server. Only the fields relevant to Type are set.
type ServerMessage struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Content   string           `json:"content,omitempty"`
	Recalled  []RecalledView   `json:"recalled,omitempty"`
	Archives  []ArchiveView    `json:"archives,omitempty"`
	Result    *commands.Result `json:"result,omitempty"`
	Code      string           `json:"code,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// RecalledView is a recalled memory in a reply.
type RecalledView struct {
	Text     string        `json:"text"`
	Bucket   memory.Bucket `json:"bucket"`
	Distance float64       `json:"distance"`
}

// ArchiveView summarizes an automatic archival in a reply.
type ArchiveView struct {
	Archived   int     `json:"archived"`
	Stored     bool    `json:"stored"`
	Topic      string  `json:"topic,omitempty"`
	Importance float64 `json:"importance"`
	Range      string  `json:"range"`
}

func recalledViews(items []memory.Recalled) []RecalledView {
	out := make([]RecalledView, 0, len(items))
	for _, it := range items {
		out = append(out, RecalledView{Text: it.Record.Text, Bucket: it.Bucket, Distance: it.Distance})
	}
	return out
}

func archiveViews(results []*memory.ArchiveResult) []ArchiveView {
	out := make([]ArchiveView, 0, len(results))
	for _, r := range results {
		out = append(out, ArchiveView{
			Archived:   r.Archived,
			Stored:     r.Stored,
			Topic:      r.Topic,
			Importance: r.Importance,
			Range:      r.SourceRange.String(),
		})
	}
	return out
}
