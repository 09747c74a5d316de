package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/commands"
	"github.com/becomeliminal/nim-memory/engine"
	"github.com/becomeliminal/nim-memory/memory"
)

var noStream bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.manager.Enabled() {
			if _, err := a.manager.Prune(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("prune: "+err.Error()))
			}
		}
		return runChat(cmd, a)
	},
}

// runChat reads lines until EOF or /quit.
func runChat(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	in := bufio.NewScanner(cmd.InOrStdin())
	in.Buffer(make([]byte, 64*1024), 1024*1024)
	out := cmd.OutOrStdout()

	persona := cfg.Persona
	sess := a.manager.NewSession(persona.Render())
	dispatcher := commands.NewDispatcher(a.manager)

	fmt.Fprintln(out, titleStyle.Render(persona.AIName))
	fmt.Fprintln(out, dimStyle.Render("Type /help for commands, /quit to exit."))

	for {
		fmt.Fprint(out, headerStyle.Render(persona.UserName+": "))
		if !in.Scan() {
			fmt.Fprintln(out)
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		if commands.IsCommand(line) {
			name, _ := commands.Parse(line)
			if name == "quit" || name == "exit" {
				return nil
			}
			if res, ok := dispatcher.Dispatch(ctx, sess, line); ok {
				fmt.Fprintln(out, renderResult(res))
				continue
			}
		}

		chatTurn(cmd, a.engine, sess, line, persona.AIName, out)
	}
}

func chatTurn(cmd *cobra.Command, eng *engine.Engine, sess *memory.Session, line, aiName string, out io.Writer) {
	fmt.Fprint(out, aiStyle.Render(aiName+": "))

	input := engine.Input{UserMessage: line}
	if !noStream {
		input.StreamCallback = func(chunk string, done bool) {
			fmt.Fprint(out, chunk)
		}
	}

	result, err := eng.Run(cmd.Context(), sess, input)
	if err != nil {
		fmt.Fprintln(out)
		if errors.Is(err, engine.ErrEmptyMessage) {
			return
		}
		fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
		return
	}
	if noStream {
		fmt.Fprint(out, result.Reply)
	}
	fmt.Fprintln(out)

	for _, r := range result.Archives {
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("[memory] archived %d turns %s (stored=%v)", r.Archived, r.SourceRange, r.Stored)))
	}
	if result.ArchiveErr != nil {
		fmt.Fprintln(out, errorStyle.Render("Archival failed: "+result.ArchiveErr.Error()))
	}
}

func init() {
	RootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&noStream, "no-stream", false, "Print replies only once complete")
}
