package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"interview_agent/internal/logger"
	"interview_agent/internal/metrics"
	"interview_agent/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat and session API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		srv := server.NewServer(server.Config{
			Addr:           cfg.Server.Addr,
			CORSOrigins:    cfg.Server.CORSOrigins,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxQuestionLen: cfg.Server.MaxQuestionLen,
			MaxMessages:    cfg.Server.MaxMessages,
			Candidate:      cfg.Interview.Candidate,
		}, a.newController, logger.Logger).
			WithStore(store).
			WithMetrics(metrics.New())

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
