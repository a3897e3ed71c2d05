package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Serve runs the server until it fails, the context ends or the process
// receives SIGINT or SIGTERM. In-flight requests are then given up to
// shutdownTimeout to complete before the shutdown hooks run.
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, hooks *ShutdownHooks) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server: listening")
		serveErr <- srv.ListenAndServe()
	}()

	var failure error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			failure = fmt.Errorf("listen failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("server: shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if failure == nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			failure = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return errors.Join(failure, hooks.Execute(shutdownCtx))
}
