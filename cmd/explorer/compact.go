package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chesscoach/explorer/internal/compact"
)

func newCompactCmd(log *logrus.Logger) *cobra.Command {
	var (
		in             string
		out            string
		verifyFraction float64
	)

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Compact a Write Store into a read-only Read Store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in == "" || out == "" {
				return withExitCode(exitInvalidInput, fmt.Errorf("--in and --out are both required"))
			}
			if _, err := os.Stat(in); err != nil {
				return withExitCode(exitInvalidInput, fmt.Errorf("--in: %w", err))
			}

			result, err := compact.Run(in, out, compact.Options{
				VerifyFraction: verifyFraction,
				Logger:         log,
			})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "compaction failed: %v\n", err)
				return withExitCode(exitIOError, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d positions, %d moves in %s\n",
				result.PositionsWritten, result.MovesWritten, result.Elapsed)
			if verifyFraction > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "verified %d keys, %d mismatches\n", result.Verified, result.Mismatched)
				if result.Mismatched > 0 {
					return withExitCode(exitIOError, fmt.Errorf("verification found %d mismatched keys", result.Mismatched))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Write Store input directory (required)")
	cmd.Flags().StringVar(&out, "out", "", "Read Store output directory (required)")
	cmd.Flags().Float64Var(&verifyFraction, "verify-fraction", 0, "fraction of keys to sample-verify after compaction (0 disables)")

	return cmd
}
