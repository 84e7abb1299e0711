package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepLimit int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Retry failed and abandoned analyses",
	Long: `Re-run analyses whose last attempt failed or whose pending claim has gone stale.
Intended to be run periodically, e.g. from cron.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().IntVar(&sweepLimit, "limit", 100, "Maximum number of analyses to retry")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	if sweepLimit < 1 {
		return fmt.Errorf("--limit must be positive, got: %d", sweepLimit)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newMatchingApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ranker.Sweep(ctx, sweepLimit)
	if err != nil {
		return err
	}
	a.logger.Info("sweep finished",
		zap.Int("attempted", res.Attempted),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
