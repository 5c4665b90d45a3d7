package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chesscoach/explorer/internal/store/lsm"
	"github.com/chesscoach/explorer/internal/store/mmapbtree"
)

func newStatsCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <store-path>",
		Short: "Print size and record counts for a Read Store or Write Store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if isReadStore(path) {
				return printReadStoreStats(cmd, path)
			}
			return printWriteStoreStats(cmd, log, path)
		},
	}
	return cmd
}

// isReadStore reports whether path is a Read Store directory, identified by
// the presence of its single data file. Anything else is treated as a
// Write Store directory, the only other kind of store path this CLI takes.
func isReadStore(path string) bool {
	_, err := os.Stat(filepath.Join(path, mmapbtree.DataFileName))
	return err == nil
}

func printReadStoreStats(cmd *cobra.Command, path string) error {
	rs, err := mmapbtree.Open(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "open read store: %v\n", err)
		return withExitCode(exitIOError, err)
	}
	defer rs.Close()

	s, err := rs.Stats()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "stats: %v\n", err)
		return withExitCode(exitIOError, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "kind: read store\npositions: %d\nmoves: %d\nsize: %d bytes\n  data segment:  %d bytes\n  index segment: %d bytes\n",
		s.PositionCount, s.MoveCount, s.SizeBytes, s.DataSegmentBytes, s.IndexSegmentBytes)
	return nil
}

func printWriteStoreStats(cmd *cobra.Command, log *logrus.Logger, path string) error {
	ws, err := lsm.Open(lsm.Options{Dir: path, Logger: log})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "open write store: %v\n", err)
		return withExitCode(exitIOError, err)
	}
	defer ws.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "kind: write store\n")
	for _, lvl := range ws.Levels() {
		fmt.Fprintf(cmd.OutOrStdout(), "  level %d: %d tables, %d bytes\n", lvl.Level, lvl.NumTables, lvl.Size)
	}
	return nil
}
