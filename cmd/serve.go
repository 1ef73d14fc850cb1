package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneflow/internal/server"
	"github.com/desertthunder/tuneflow/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP gateway until SIGINT or SIGTERM, then drains in-flight requests.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = port
	}
	if limit := cmd.Int("max-concurrent"); limit >= 0 {
		r.config.Extractor.MaxConcurrent = limit
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	logger, err := r.serverLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", r.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.config.Server.Addr(), err)
	}
	return r.serve(ctx, ln, logger, cmd.Duration("sweep-age"), cmd.Duration("shutdown-timeout"))
}

func (r *Runner) serve(ctx context.Context, ln net.Listener, logger *log.Logger, sweepAge, shutdownTimeout time.Duration) error {
	// Services built from here on log wherever the server does.
	r.logger = logger
	extractor := r.Extractor()
	go func() {
		if _, err := extractor.NewJanitor(sweepAge, sweepInterval(sweepAge)).Run(ctx); err != nil {
			logger.Warn("temp sweeper stopped", "err", err)
		}
	}()

	srv := server.NewHTTPServer(ln.Addr().String(), r.Handler(logger), logger)
	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(ln)
	}()

	logger.Info("gateway listening",
		"addr", ln.Addr().String(),
		"extractor", r.config.Extractor.Binary,
		"max_concurrent", extractor.Gate().Limit(),
	)

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown incomplete, closing connections", "err", err)
		return srv.Close()
	}
	logger.Info("server stopped")
	return nil
}

// Handler builds the gateway router from the runner's dependencies.
func (r *Runner) Handler(logger *log.Logger) http.Handler {
	return server.New(r.config.Server, server.Deps{
		Searcher:   r.Searcher(),
		Streamer:   r.Extractor(),
		Downloader: r.Extractor(),
		Logger:     logger,
	})
}

func sweepInterval(maxAge time.Duration) time.Duration {
	if maxAge <= 0 || maxAge > time.Hour {
		return time.Hour
	}
	return maxAge
}

// serverLogger returns a file logger when server.log_file is set, otherwise the runner's logger.
func (r *Runner) serverLogger() (*log.Logger, error) {
	if r.config.Server.LogFile == "" {
		return r.logger, nil
	}

	logger, err := shared.NewFileLogger(r.config.Server.LogFile)
	if err != nil {
		return nil, err
	}
	shared.SetLogLevel(logger, r.logger.GetLevel())
	r.logger.Info("logging to file", "path", r.config.Server.LogFile)
	return logger, nil
}
