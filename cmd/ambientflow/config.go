package main

import (
	"github.com/spf13/cobra"

	"github.com/vthunder/ambientflow/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if write {
				if err := config.Save(a.configPath, a.cfg); err != nil {
					return err
				}
				cmd.Printf("wrote %s\n", a.configPath)
				return nil
			}
			data, err := config.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "save the effective configuration to the config file")
	return cmd
}
