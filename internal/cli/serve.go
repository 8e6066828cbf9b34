package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/arena/internal/config"
)

// ShutdownTimeout bounds how long in-flight requests get on shutdown.
const ShutdownTimeout = 5 * time.Second

// Serve runs the arena HTTP server until ctx is done.
// Unfinished runs found in the store are resumed before the listener starts.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) error {
	app, err := NewApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close stores", "err", err)
		}
	}()

	if n, err := app.Dispatcher.Recover(ctx); err != nil {
		logger.Error("run recovery failed", "err", err)
	} else if n > 0 {
		printSystemMessage(out, "Resuming %d unfinished run(s).", n)
	}

	handler, err := app.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		printSystemMessage(out, "Arena listening on %s (store: %s, generator: %s)", srv.Addr, cfg.Store.Backend, cfg.Generator.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		printSystemMessage(out, "Shutting down...")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("could not stop server: %w", err)
			}
		}
		printSystemMessage(out, "Arena stopped gracefully")
		return nil
	}
}
