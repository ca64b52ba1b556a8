package main

import (
	"context"
	"embed"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"proxymart/internal/app/app"
	"proxymart/internal/app/config"
	"proxymart/internal/app/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const shutdownTimeout = 5 * time.Second

func main() {
	c := config.New()
	if err := c.Load(); err != nil {
		logger.Global().Fatal().Err(err).Msg("Config load failed")
	}
	l := logger.New(c.LogVerbose, c.LogPretty)

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-stop
		l.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	if err := run(ctx, c, l); err != nil {
		l.Fatal().Err(err).Msg("Server run failed")
	}
}

func run(ctx context.Context, c config.Config, l logger.Logger) error {
	a, err := app.New(c, l, embedMigrations)
	if err != nil {
		return errors.Wrap(err, "app init")
	}
	defer a.Stop()

	srv := &http.Server{
		Addr:         c.Server.Listen,
		Handler:      a.Router(),
		ReadTimeout:  c.Server.TimeoutRead,
		WriteTimeout: c.Server.TimeoutWrite,
		IdleTimeout:  c.Server.TimeoutIdle,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("listen_address", c.Server.Listen).Msg("Listening incoming connections")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}

	l.Info().Msg("Server exited properly")
	return nil
}
