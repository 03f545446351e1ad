package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanisthahota/queuectl/job"
)

func newEnqueueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <json>",
		Short: "Add a job to the queue",
		Long: `Add a job to the queue.

The argument is a single JSON job spec with "id" and "command" fields
and an optional "max_retries":

  queuectl enqueue '{"id":"job1","command":"echo hello"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var spec job.Spec
			if err := json.Unmarshal([]byte(args[0]), &spec); err != nil {
				return fmt.Errorf("invalid job JSON: %w", err)
			}
			_, svc, err := a.open()
			if err != nil {
				return err
			}
			j, err := svc.Enqueue(cmd.Context(), spec)
			if err != nil {
				return err
			}
			fmt.Printf("job %s enqueued\n", j.ID)
			return nil
		},
	}
}
