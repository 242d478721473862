package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/logging"
	"github.com/vthunder/ambientflow/internal/tui"
)

func newRunCmd(a *app) *cobra.Command {
	var dryRun, withTUI bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start tracking and adjusting the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.build(dryRun)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			go func() {
				err := config.Watch(ctx, a.configPath, rt.orch.ApplyConfig)
				if err != nil {
					logging.Warn("config", "watch %s: %v", a.configPath, err)
				}
			}()

			rt.orch.Start()

			if withTUI && term.IsTerminal(os.Stdout.Fd()) {
				// keep log lines from tearing the dashboard
				logging.SetOutput(io.Discard)
				return tui.Run(rt.orch)
			}
			if withTUI {
				logging.Info("main", "stdout is not a terminal, running without dashboard")
			}

			logging.Info("main", "Running. Press Ctrl+C to stop.")
			<-ctx.Done()
			logging.Info("main", "Shutting down...")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record environment changes instead of applying them")
	cmd.Flags().BoolVar(&withTUI, "tui", false, "show the live dashboard")
	return cmd
}
