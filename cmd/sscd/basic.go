package main

import (
	"github.com/spf13/cobra"

	"github.com/itohio/sscd/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Manage the config file",
		GroupID: gData,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Long: `Write the effective configuration to the config file.

Missing values are filled with their defaults, so running this on an empty or
partial file produces a complete one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Save(configPath); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", configPath)
			return nil
		},
	})

	return cmd
}
