package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanisthahota/queuectl/worker"
)

func newWorkerCmd(a *app) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage worker processes",
	}

	var count int
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start workers and process jobs until signaled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1, got %d", count)
			}
			_, svc, err := a.open()
			if err != nil {
				return err
			}
			pool := worker.NewPool(svc,
				worker.WithCount(count),
				worker.WithLogger(a.logger),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := pool.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			// In-flight attempts are allowed to finish; the execution
			// timeout bounds how long that can take.
			stopCtx, cancel := context.WithTimeout(context.Background(),
				worker.DefaultExecutionTimeout+10*time.Second)
			defer cancel()
			return pool.Stop(stopCtx)
		},
	}
	startCmd.Flags().IntVar(&count, "count", 1, "number of workers to start")

	workerCmd.AddCommand(startCmd)
	return workerCmd
}
