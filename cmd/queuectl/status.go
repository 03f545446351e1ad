package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue statistics and configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, svc, err := a.open()
			if err != nil {
				return err
			}
			stats, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := st.LoadConfig(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("total jobs:   %d\n", stats.Total)
			fmt.Printf("  pending:    %d\n", stats.Pending)
			fmt.Printf("  processing: %d\n", stats.Processing)
			fmt.Printf("  completed:  %d\n", stats.Completed)
			fmt.Printf("  failed:     %d\n", stats.Failed)
			fmt.Printf("  dead (DLQ): %d\n", stats.Dead)
			fmt.Println()
			fmt.Printf("max-retries:       %d\n", cfg.MaxRetries)
			fmt.Printf("backoff-base:      %g\n", cfg.BackoffBase)
			fmt.Printf("backoff-max-delay: %ds\n", cfg.BackoffMaxDelay)
			return nil
		},
	}
}
