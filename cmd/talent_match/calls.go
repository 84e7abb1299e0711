package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var callsOnce bool

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Run the outbound call scheduler without the API server",
	Long: `Run the call admission scheduler. Due calls are dialed while fewer than
scheduler.max_in_flight calls are in progress. With --once a single tick runs
and its result is printed as JSON.`,
	RunE: runCalls,
}

func init() {
	callsCmd.Flags().BoolVar(&callsOnce, "once", false, "Run a single tick and exit")
	rootCmd.AddCommand(callsCmd)
}

func runCalls(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newBaseApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler, err := a.newScheduler()
	if err != nil {
		return err
	}

	if !callsOnce {
		return scheduler.Run(ctx)
	}

	res, err := scheduler.Tick(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
