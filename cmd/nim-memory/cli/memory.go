package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/commands"
	"github.com/becomeliminal/nim-memory/memory"
)

var (
	clearYes      bool
	jsonOut       bool
	minImportance float64
	since         time.Duration
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage stored memories",
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory system statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMemoryCommand(cmd, "memory_stats")
	},
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored memories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := memory.Filter{MinImportance: minImportance}
		if since > 0 {
			filter.After = time.Now().Add(-since)
		}
		query := strings.Join(args, " ")
		return runMemory(cmd, func(ctx context.Context, d *commands.Dispatcher) *commands.Result {
			return d.Search(ctx, query, filter)
		})
	},
}

var memoryRecentCmd = &cobra.Command{
	Use:   "recent [n]",
	Short: "List the most recently stored memories",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMemoryCommand(cmd, "memory_recent "+strings.Join(args, " "))
	},
}

var memoryPreviewCmd = &cobra.Command{
	Use:   "preview [query]",
	Short: "Preview what would be recalled into the system prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMemoryCommand(cmd, "memory_preview "+strings.Join(args, " "))
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored memory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		line := "memory_clear"
		if clearYes {
			line += " " + commands.ConfirmToken
		}
		return runMemoryCommand(cmd, line)
	},
}

// runMemoryCommand runs a session-less command against the configured store.
func runMemoryCommand(cmd *cobra.Command, line string) error {
	return runMemory(cmd, func(ctx context.Context, d *commands.Dispatcher) *commands.Result {
		res, _ := d.Dispatch(ctx, nil, line)
		return res
	})
}

func runMemory(cmd *cobra.Command, run func(context.Context, *commands.Dispatcher) *commands.Result) error {
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res := run(cmd.Context(), commands.NewDispatcher(a.manager))
	out := cmd.OutOrStdout()
	if jsonOut {
		return writeJSON(out, res)
	}
	fmt.Fprintln(out, renderResult(res))
	if res.Kind == commands.KindError {
		return fmt.Errorf("%s failed", res.Command)
	}
	return nil
}

func init() {
	RootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryStatsCmd, memorySearchCmd, memoryRecentCmd, memoryPreviewCmd, memoryClearCmd)
	memoryCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	memorySearchCmd.Flags().Float64Var(&minImportance, "min-importance", 0, "Only show memories at or above this importance")
	memorySearchCmd.Flags().DurationVar(&since, "since", 0, "Only show memories stored within this duration, e.g. 72h")
	memoryClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Confirm deleting all memories")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
