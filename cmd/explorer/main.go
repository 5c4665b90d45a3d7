// Command explorer is the ingestion harness for the Local Opening Explorer:
// it turns PGN files into a Write Store, compacts a Write Store into a
// serving-ready Read Store, and reports on an existing Read Store's size.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes, fixed across every subcommand.
const (
	exitSuccess      = 0
	exitIOError      = 1
	exitInvalidInput = 2
	exitCancelled    = 3
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := newRootCmd(log)
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd(log *logrus.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "explorer",
		Short:         "Local opening explorer: ingest PGN files and serve opening statistics",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newIndexCmd(log))
	root.AddCommand(newCompactCmd(log))
	root.AddCommand(newStatsCmd(log))
	return root
}
