package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCommand(load configLoader) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete files of sessions idle longer than the output TTL",
		Long: "Deletes uploads, outputs and transcripts of sessions that were never " +
			"confirmed, plus unindexed files, once they are older than the TTL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.OutputTTL()
			}

			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.manager.Sweep(cmd.Context(), ttl)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Override the configured output TTL")
	return cmd
}
