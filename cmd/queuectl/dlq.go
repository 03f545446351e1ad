package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDLQCmd(a *app) *cobra.Command {
	dlqCmd := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the dead letter queue",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the dead letter queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := a.open()
			if err != nil {
				return err
			}
			jobs, err := svc.DLQList(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("dead letter queue is empty")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCOMMAND\tATTEMPTS\tERROR")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					j.ID, truncateText(j.Command, 30), j.Attempts,
					truncateText(j.ErrorMessage, 40),
				)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 10, "maximum jobs to display")

	retryCmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Move a DLQ job back to the queue for retry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := a.open()
			if err != nil {
				return err
			}
			j, err := svc.DLQRequeue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("job %s moved back to queue for retry\n", j.ID)
			return nil
		},
	}

	dlqCmd.AddCommand(listCmd, retryCmd)
	return dlqCmd
}
