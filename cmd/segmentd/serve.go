package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/segmentd/internal/ingestion"
	"github.com/aevon-lab/segmentd/internal/projection"
	"github.com/aevon-lab/segmentd/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the segmentation scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, opts.cfg, serve)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg

	ingestionSvc := ingestion.NewService(a.store, cfg.Server.MaxBodySizeMB)
	projectionSvc := projection.NewService(a.store, cfg.Segments)

	srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), a.store, cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Segmentation.Enabled {
		scheduler := a.scheduler()
		g.Go(func() error {
			return scheduler.Start(ctx)
		})
	} else {
		slog.Info("[Scheduler] Segmentation scheduler disabled by config")
	}

	// HTTP server blocks until ctx is cancelled.
	g.Go(func() error {
		return srv.Run(ctx)
	})

	err := g.Wait()
	slog.Info("Shutdown complete")
	return err
}
