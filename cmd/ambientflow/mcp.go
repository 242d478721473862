package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vthunder/ambientflow/internal/control"
	"github.com/vthunder/ambientflow/internal/logging"
)

func newMCPCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the tracker and serve its tools over stdio (MCP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol stream
			logging.SetOutput(os.Stderr)

			rt, err := a.build(dryRun)
			if err != nil {
				return err
			}
			defer rt.close()

			rt.orch.Start()
			logging.Info("mcp", "Serving ambientflow %s on stdio", version)
			return control.New(rt.orch, version).ServeStdio()
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record environment changes instead of applying them")
	return cmd
}
