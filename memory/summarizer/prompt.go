// Package summarizer holds the archivist prompt shared by the LLM-backed
// summarizers and the parser for their replies.
package summarizer

import (
	"fmt"
	"strings"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

// SystemPrompt instructs the model to act as a memory archivist.
const SystemPrompt = "You are a memory archivist. Your job is to create concise, " +
	"semantic summaries of conversations for later recall. " +
	"Focus on key topics, facts, and the emotional tone. " +
	"Be brief but capture the essence."

// maxTurnChars caps each transcript line.
const maxTurnChars = 500

// Temperature keeps summaries focused.
const Temperature = 0.3

// Transcript renders turns as "ROLE: content" lines, skipping the system
// anchor and shortening long turns.
func Transcript(turns []core.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Role == core.RoleSystem {
			continue
		}
		content := t.Content
		if r := []rune(content); len(r) > maxTurnChars {
			content = string(r[:maxTurnChars-3]) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(t.Role)), content))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt returns the user prompt asking for a SUMMARY/TOPIC/POINTS reply.
func BuildPrompt(turns []core.Turn) string {
	return fmt.Sprintf(`Summarize this conversation exchange in 2-3 sentences:

%s

Provide:
1. A brief summary (2-3 sentences)
2. The primary topic (few words)
3. Key points (comma-separated)

Format as:
SUMMARY: <summary>
TOPIC: <topic>
POINTS: <points>`, Transcript(turns))
}

// ParseResponse extracts the labelled fields. A reply without a SUMMARY
// line is used verbatim as the summary text.
func ParseResponse(text string) memory.Summary {
	var s memory.Summary
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SUMMARY:"):
			s.Text = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		case strings.HasPrefix(line, "TOPIC:"):
			s.Topic = strings.TrimSpace(strings.TrimPrefix(line, "TOPIC:"))
		case strings.HasPrefix(line, "POINTS:"):
			for _, p := range strings.Split(strings.TrimPrefix(line, "POINTS:"), ",") {
				if p = strings.TrimSpace(p); p != "" {
					s.KeyPoints = append(s.KeyPoints, p)
				}
			}
		}
	}
	if s.Text == "" {
		s.Text = strings.TrimSpace(text)
	}
	return s
}
