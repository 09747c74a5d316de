package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/becomeliminal/nim-memory/core"
)

const (
	fallbackTopic       = "general conversation"
	fallbackTopicWords  = 10
	fallbackExcerpts    = 3
	fallbackExcerptSize = 160
)

// FallbackSummarizer builds a summary locally from the turns themselves.
// It never fails and never calls out, so archival can always proceed.
type FallbackSummarizer struct{}

// Summarize returns a count line plus short excerpts of the first user turns.
func (FallbackSummarizer) Summarize(_ context.Context, turns []core.Turn) (Summary, error) {
	return fallbackSummary(turns), nil
}

func fallbackSummary(turns []core.Turn) Summary {
	var users, assistants int
	var excerpts []string
	topic := ""

	for _, t := range turns {
		switch t.Role {
		case core.RoleUser:
			users++
			if topic == "" {
				topic = firstWords(t.Content, fallbackTopicWords)
			}
			if len(excerpts) < fallbackExcerpts {
				if c := strings.TrimSpace(t.Content); c != "" {
					excerpts = append(excerpts, truncate(c, fallbackExcerptSize))
				}
			}
		case core.RoleAssistant:
			assistants++
		}
	}
	if topic == "" {
		topic = fallbackTopic
	}

	text := fmt.Sprintf("Exchange of %d user messages and %d responses", users, assistants)
	if len(excerpts) > 0 {
		text += ". User said: " + strings.Join(excerpts, " / ")
	}

	return Summary{
		Text:  text,
		Topic: topic,
	}
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
