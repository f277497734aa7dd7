package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/iliyamo/marketplace-auth/internal/config"
	"github.com/iliyamo/marketplace-auth/internal/handler"
	"github.com/iliyamo/marketplace-auth/internal/job"
	"github.com/iliyamo/marketplace-auth/internal/middleware"
	"github.com/iliyamo/marketplace-auth/internal/router"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reset purge schedule",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := job.NewScheduler(cfg.ResetPurgeSchedule, d.flow, logger)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("schedule", cfg.ResetPurgeSchedule).Wrap(err)
	}
	sched.Start()
	defer sched.Stop()

	rdb := config.NewRedisClient(ctx)
	rl := config.LoadRateLimitConfig()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting disabled")
		rl.Enabled = false
	} else {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.BodyLimit("64K"))

	var pinger handler.Pinger
	if d.db != nil {
		pinger = d.db
	}
	router.RegisterRoutes(e, pinger)
	router.RegisterAuth(e, handler.NewAuthHandler(d.auth, logger), d.tokens,
		middleware.NewTokenBucket(rl, rdb, logger))

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.Store)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("HTTP_SERVER_FAILED").With("addr", addr).Wrap(err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	d.flow.Wait()
	return nil
}
