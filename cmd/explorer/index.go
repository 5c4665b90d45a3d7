package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chesscoach/explorer/internal/explorerrors"
	"github.com/chesscoach/explorer/internal/ingest"
	"github.com/chesscoach/explorer/internal/store/lsm"
)

func newIndexCmd(log *logrus.Logger) *cobra.Command {
	var (
		out           string
		minRating     int
		maxPlies      int
		workers       int
		gamesPerBatch int
	)

	cmd := &cobra.Command{
		Use:   "index <pgn-path>",
		Short: "Index a PGN file into a Write Store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pgnPath := args[0]
			if out == "" {
				return withExitCode(exitInvalidInput, fmt.Errorf("--out is required"))
			}
			if _, err := os.Stat(pgnPath); err != nil {
				return withExitCode(exitInvalidInput, fmt.Errorf("pgn path: %w", err))
			}

			if workers <= 0 {
				workers = ingest.DefaultWorkerCount(runtime.NumCPU())
			}

			ws, err := lsm.Open(lsm.Options{Dir: out, Logger: log})
			if err != nil {
				return withExitCode(exitIOError, fmt.Errorf("open write store: %w", err))
			}
			defer ws.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			coord := ingest.NewCoordinator(ingest.Config{
				MinRating:       uint32(minRating),
				MaxPliesPerGame: maxPlies,
				WorkerCount:     workers,
				GamesPerBatch:   gamesPerBatch,
				Logger:          log,
				Progress: func(s ingest.Stats) {
					log.WithFields(logrus.Fields{
						"games_processed": s.GamesProcessed,
						"games_skipped":   s.GamesSkipped,
					}).Info("indexing progress")
				},
			})
			defer coord.Close()

			stats, err := coord.IndexFile(ctx, pgnPath, ws)
			if err != nil {
				if errors.Is(err, explorerrors.ErrCancelled) {
					fmt.Fprintf(cmd.ErrOrStderr(), "indexing cancelled after %d games\n", stats.GamesProcessed)
					return withExitCode(exitCancelled, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "indexing failed: %v\n", err)
				return withExitCode(exitIOError, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d games (%d skipped) in %dms (%.1f games/s, %d workers)\n",
				stats.GamesProcessed, stats.GamesSkipped, stats.ElapsedMS, stats.GamesPerSecond, stats.WorkersUsed)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write Store output directory (required)")
	cmd.Flags().IntVar(&minRating, "min-rating", 0, "minimum average player rating to index a game")
	cmd.Flags().IntVar(&maxPlies, "max-plies", 0, "maximum plies replayed per game (0 selects the default)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (0 selects max(1, NumCPU-1))")
	cmd.Flags().IntVar(&gamesPerBatch, "games-per-batch", ingest.DefaultGamesPerBatch, "games accumulated per worker batch")

	return cmd
}
