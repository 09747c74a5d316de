package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/becomeliminal/nim-memory/commands"
	"github.com/becomeliminal/nim-memory/memory"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	advisoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	aiStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))

	bucketStyles = map[memory.Bucket]lipgloss.Style{
		memory.BucketHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		memory.BucketMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		memory.BucketLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}

	injectionStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// renderResult formats a command result for the terminal.
func renderResult(res *commands.Result) string {
	switch res.Kind {
	case commands.KindAdvisory:
		return advisoryStyle.Render(res.Message)
	case commands.KindError:
		return errorStyle.Render(res.Message)
	}

	switch {
	case res.Stats != nil:
		return renderStats(res.Stats)
	case len(res.Memories) > 0:
		return renderMemories(res)
	case res.Archive != nil:
		return renderArchive(res.Archive)
	default:
		return res.Message
	}
}

func renderStats(st *commands.StatsView) string {
	rows := [][2]string{
		{"Total memories", fmt.Sprint(st.Count)},
		{"Average importance", fmt.Sprintf("%.2f", st.MeanImportance)},
		{"Oldest memory", commands.FormatTime(st.Oldest)},
		{"Newest memory", commands.FormatTime(st.Newest)},
	}
	lines := []string{titleStyle.Render("Memory System Statistics")}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %s: %s", r[0], valueStyle.Render(r[1])))
	}
	return strings.Join(lines, "\n")
}

func renderMemories(res *commands.Result) string {
	var lines []string
	switch res.Command {
	case "memory_preview":
		lines = append(lines, headerStyle.Render("Memory Preview for query: ")+res.Query)
	case "memory_recent":
		lines = append(lines, headerStyle.Render(fmt.Sprintf("Most recent %d memories:", len(res.Memories))))
		for i, m := range res.Memories {
			lines = append(lines,
				fmt.Sprintf("%d. %s [%s] (importance: %.2f)",
					i+1, dimStyle.Render(commands.FormatTime(m.CreatedAt)), valueStyle.Render(orNA(m.Topic)), m.Importance),
				"   "+m.Text)
		}
		return strings.Join(lines, "\n")
	default:
		lines = append(lines, headerStyle.Render(fmt.Sprintf("Found %d matching memories:", len(res.Memories))))
	}

	for i, m := range res.Memories {
		bucket := bucketStyles[m.Bucket].Render("[" + string(m.Bucket) + "]")
		lines = append(lines,
			fmt.Sprintf("%d. %s %s (relevance: %.2f, importance: %.2f)",
				i+1, bucket, dimStyle.Render(commands.FormatTime(m.CreatedAt)), m.Relevance, m.Importance),
			"   "+m.Text)
	}

	if res.Injection != "" {
		lines = append(lines, "", headerStyle.Render("How this would appear in the system prompt:"), injectionStyle.Render(res.Injection))
	}
	return strings.Join(lines, "\n")
}

func renderArchive(a *commands.ArchiveView) string {
	var head string
	if a.Stored {
		head = aiStyle.Render(fmt.Sprintf("Archived %d messages", a.Archived))
	} else {
		head = advisoryStyle.Render(fmt.Sprintf("Discarded %d messages (importance %.2f)", a.Archived, a.Importance))
	}
	lines := []string{head}
	if a.Stored {
		lines = append(lines,
			"  Summary: "+a.Summary,
			"  Topic: "+valueStyle.Render(orNA(a.Topic)),
			"  Memory ID: "+dimStyle.Render(a.RecordID))
		if len(a.KeyPoints) > 0 {
			lines = append(lines, "  Key points: "+strings.Join(a.KeyPoints, ", "))
		}
	}
	lines = append(lines, fmt.Sprintf("  Context window: %d -> %d messages", a.WindowBefore, a.WindowAfter))
	if a.UsedFallback {
		lines = append(lines, dimStyle.Render("  (fallback summary)"))
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
