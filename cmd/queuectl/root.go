package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanisthahota/queuectl/queue"
	storefs "github.com/tanisthahota/queuectl/store/fs"
)

const defaultDataDir = ".queuectl"

// dataDirEnv overrides the root directory when the flag is not given.
const dataDirEnv = "QUEUECTL_DATA_DIR"

type app struct {
	dataDir string
	logger  *slog.Logger
}

// open builds the filesystem store and queue service for one command
// invocation.
func (a *app) open() (*storefs.Store, *queue.Service, error) {
	st, err := storefs.New(a.dataDir)
	if err != nil {
		return nil, nil, err
	}
	svc := queue.NewService(st, queue.WithLogger(a.logger))
	return st, svc, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "Durable single-host background job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if a.dataDir == "" {
				a.dataDir = os.Getenv(dataDirEnv)
			}
			if a.dataDir == "" {
				a.dataDir = defaultDataDir
			}
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
		},
	}
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "",
		"queue state directory (default \".queuectl\", or $"+dataDirEnv+")")

	root.AddCommand(
		newEnqueueCmd(a),
		newWorkerCmd(a),
		newStatusCmd(a),
		newListCmd(a),
		newDLQCmd(a),
		newConfigCmd(a),
	)
	return root
}
