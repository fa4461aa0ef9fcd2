// Command duetto runs the event orchestration engine with its HTTP API.
//
// Usage:
//
//	duetto -config duetto.yaml
//
// Every setting can be overridden with a DUETTO_* environment variable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/server"
	"github.com/randalmurphal/duetto/pkg/duetto/setup"
)

func main() {
	configPath := flag.String("config", "duetto.yaml", "path to the YAML settings file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "duetto:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(os.Stdout, settings.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	app, err := setup.Build(settings, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close failed", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	srv := &http.Server{
		Addr: settings.Server.Addr(),
		Handler: server.New(server.Deps{
			Engine:      app.Engine,
			Push:        app.Push,
			Recent:      app.Recent,
			DeadLetters: app.DeadLetters,
			Gatherer:    app.Gatherer,
			Logger:      logger,
		}).Handler(),
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-app.Engine.Done():
		logger.Info("all producers finished")
	case err := <-serveErr:
		logger.Error("listen failed", slog.String("error", err.Error()))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(),
		settings.Engine.GracePeriod+settings.Engine.DrainTimeout)
	defer stopCancel()

	var errs []error
	if err := app.Engine.Stop(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop engine: %w", err))
	}
	if err := srv.Shutdown(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	return errors.Join(errs...)
}

func newLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("config error: log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}
