package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dedupow/libdedupow-go/api"
	"github.com/dedupow/libdedupow-go/config"
	"github.com/dedupow/libdedupow-go/dedup"
	"github.com/dedupow/libdedupow-go/pow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storage service",
	Long: `Run the deduplicating storage service: the HTTP endpoints, the
bolt-backed content index, the sharded content store, and the challenge
sweeper. Shuts down cleanly on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateConfig(cfg); err != nil {
			return err
		}
		suite, err := pow.ParseSuite(cfg.HashSuite)
		if err != nil {
			return err
		}

		svc, err := dedup.Open(cfg.DataDir, cfg.ChallengeTTL,
			dedup.WithSuite(suite),
			dedup.WithBlockSize(cfg.BlockSize),
			dedup.WithWorkers(cfg.Workers),
		)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.WithError(err).Error("close service")
			}
		}()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			logger.WithField("signal", sig.String()).Info("shutting down")
			cancel()
		}()

		svc.StartSweeper(ctx, cfg.SweepInterval)

		server := api.New(svc,
			api.WithLogger(logger),
			api.WithMaxUpload(cfg.MaxUpload),
		)
		httpServer := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("shutdown")
			}
		}()

		logger.WithFields(logrus.Fields{
			"addr":      cfg.ListenAddr,
			"datadir":   cfg.DataDir,
			"suite":     suite.String(),
			"blocksize": cfg.BlockSize,
		}).Info("dedupow service listening")

		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}
