// Package cli implements the nim-memory command line.
package cli

import (
	"fmt"
	"os"

	"github.com/kataras/golog"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/config"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "nim-memory",
	Short: "Conversational agent with tiered working memory",
	Long: `nim-memory keeps a bounded conversation window, archives the oldest turns
as summarized, embedded memories, and recalls them into the system prompt
when they become relevant again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		golog.SetLevel(loaded.Log.Level)
		cfg = loaded
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("NIM_MEMORY_CONFIG"), "Path to the YAML config file")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}
