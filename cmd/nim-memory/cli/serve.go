package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/kataras/golog"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/server"
)

var (
	serveAddr     string
	pruneInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over websocket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		scfg := cfg.Server
		if serveAddr != "" {
			scfg.Addr = serveAddr
		}
		if a.manager.Enabled() {
			go pruneLoop(ctx, a.manager, pruneInterval)
		}
		return server.New(scfg, a.engine, cfg.Persona.Render(), a.registry).ListenAndServe(ctx)
	},
}

// pruneLoop applies the retention policy at startup and then every interval.
func pruneLoop(ctx context.Context, m *memory.Manager, interval time.Duration) {
	prune := func() {
		n, err := m.Prune(ctx)
		if err != nil {
			golog.Warnf("[MEMORY] Prune failed: %v", err)
			return
		}
		if n > 0 {
			golog.Infof("[MEMORY] Pruned %d memories", n)
		}
	}

	prune()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().DurationVar(&pruneInterval, "prune-interval", time.Hour, "How often to apply the retention policy (0 prunes only at startup)")
}
