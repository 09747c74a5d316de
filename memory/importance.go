package memory

import (
	"unicode/utf8"

	"github.com/becomeliminal/nim-memory/core"
)

const emptyBatchImportance = 0.3

// ScoreImportance scores a batch of turns [0.0-1.0].
// Longer, busier and more lexically varied exchanges score higher.
//
//	0.5
//	+ min(avgLen/1000, 0.2)     average content length in characters
//	+ min(n*0.02, 0.15)         number of turns
//	+ min(distinct/50, 0.15)    distinct characters across the batch
//
// It is pure and never fails. An empty batch scores emptyBatchImportance.
func ScoreImportance(batch []core.Turn) float64 {
	if len(batch) == 0 {
		return emptyBatchImportance
	}

	importance := 0.5 // Base

	total := 0
	distinct := make(map[rune]struct{})
	for _, t := range batch {
		total += utf8.RuneCountInString(t.Content)
		for _, r := range t.Content {
			distinct[r] = struct{}{}
		}
	}
	avgLen := float64(total) / float64(len(batch))

	importance += min(avgLen/1000, 0.2)
	importance += min(float64(len(batch))*0.02, 0.15)
	importance += min(float64(len(distinct))/50, 0.15)

	// Clamp to [0, 1]
	return max(0, min(importance, 1.0))
}

// truncate truncates a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
