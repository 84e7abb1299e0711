package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/talent-match/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the HTTP server exposing jobs, candidates, ranked matches and call scheduling.
The call scheduler runs in the same process unless scheduler.enabled is false.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newMatchingApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != 0 {
		a.cfg.Server.Port = servePort
	}

	srv := server.New(a.cfg, server.Deps{
		Store:    a.db,
		Ranker:   a.ranker,
		Analyzer: a.analyzer,
		Embedder: a.model,
		Logger:   a.logger.Named("http"),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })

	if a.cfg.Scheduler.Enabled {
		scheduler, err := a.newScheduler()
		if err != nil {
			a.logger.Warn("call scheduler disabled", zap.Error(err))
		} else {
			g.Go(func() error { return scheduler.Run(ctx) })
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
