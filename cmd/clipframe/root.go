package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipframe/clipframe/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "clipframe",
		Short:         "Crop videos to 9:16 or 16:9 with optional burned-in captions",
		Version:       fmt.Sprintf("%s (%s, built %s)", config.Version, config.GitCommit, config.BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (TOML)")

	load := func() (*config.EnvConfig, error) {
		cfg, err := config.Load(configFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(newServeCommand(load))
	rootCmd.AddCommand(newSweepCommand(load))
	rootCmd.AddCommand(newDoctorCommand(load))

	return rootCmd
}

type configLoader func() (*config.EnvConfig, error)
