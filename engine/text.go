package engine

import "strings"

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "❝", `"`, "❞", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "❛", "'", "❜", "'",
	"—", "-", "–", "-", "―", "-",
	"…", "...",
	"′", "'", "″", `"`,
)

// NormalizeQuotes replaces curly quotes, long dashes and ellipses with
// plain ASCII.
func NormalizeQuotes(text string) string {
	return quoteReplacer.Replace(text)
}
