package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trustscore/internal/export"
	"github.com/alfredjeanlab/trustscore/internal/scoring"
	"github.com/alfredjeanlab/trustscore/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only trust score API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.close()

		agg := scoring.NewAggregator(rt.store, rt.publisher, rt.cfg.HalfLifeDays, rt.logger)
		srv := server.NewServer(rt.store, agg, rt.logger)

		httpServer := &http.Server{
			Addr:    rt.cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(),
		}

		go func() {
			rt.logger.Info("HTTP server listening", "addr", rt.cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				rt.logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the snapshot scheduler if any destinations are configured.
		var scheduler *export.Scheduler
		if rt.cfg.ExportInterval > 0 {
			var dests []export.Destination

			if rt.cfg.ExportFile != "" {
				dests = append(dests, export.NewFileDestination(rt.cfg.ExportFile))
				rt.logger.Info("snapshot file destination enabled", "path", rt.cfg.ExportFile)
			}
			if rt.cfg.ExportS3Bucket != "" {
				s3Dest, err := export.NewS3Destination(
					context.Background(),
					rt.cfg.ExportS3Bucket,
					rt.cfg.ExportS3Key,
					rt.cfg.ExportS3Region,
					rt.cfg.ExportS3Endpoint,
				)
				if err != nil {
					rt.logger.Error("failed to create S3 snapshot destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					rt.logger.Info("snapshot S3 destination enabled",
						"bucket", rt.cfg.ExportS3Bucket, "key", rt.cfg.ExportS3Key)
				}
			}

			if len(dests) > 0 {
				scheduler = export.NewScheduler(rt.store, dests, rt.cfg.ExportInterval, rt.logger)
				scheduler.Start()
				rt.logger.Info("snapshot scheduler started", "interval", rt.cfg.ExportInterval)
			}
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		rt.logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			rt.logger.Info("snapshot scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			rt.logger.Error("HTTP server shutdown error", "err", err)
		}
		rt.logger.Info("HTTP server stopped")
		return nil
	},
}
