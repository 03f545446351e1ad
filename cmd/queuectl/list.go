package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tanisthahota/queuectl/job"
	"github.com/tanisthahota/queuectl/queue"
)

func newListCmd(a *app) *cobra.Command {
	var (
		state string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := a.open()
			if err != nil {
				return err
			}
			jobs, err := svc.List(cmd.Context(), queue.ListOpts{
				State: job.State(state),
				Limit: limit,
			})
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("no jobs found")
				return nil
			}
			printJobs(jobs)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "",
		"filter by state (pending, processing, completed, failed, dead)")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum jobs to display")
	return cmd
}

func printJobs(jobs []*job.Job) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tCREATED\tERROR")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			j.ID, j.State, j.Attempts, j.MaxRetries,
			j.CreatedAt.Format("2006-01-02 15:04:05"),
			truncateText(j.ErrorMessage, 40),
		)
	}
	w.Flush()
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
