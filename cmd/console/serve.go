package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/opsdesk/userconsole/internal/infra"
	"github.com/opsdesk/userconsole/internal/routes"
	"github.com/opsdesk/userconsole/internal/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the console HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(os.Stdout, os.Stderr)
			if err != nil {
				return err
			}
			return serve(rt)
		},
	}
}

func serve(rt *runtime) error {
	cfg, logger := rt.cfg, rt.logger
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid server config", "error", err)
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db *pgxpool.Pool
	var sqliteDB *sql.DB
	switch cfg.JournalDriver {
	case "postgres":
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName, infra.DefaultDialTimeout)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			return err
		}
		defer pool.Close()
		db = pool
	case "sqlite":
		conn, err := infra.NewSQLiteDB(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Error("open sqlite", "error", err)
			return err
		}
		defer conn.Close()
		sqliteDB = conn
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL, infra.DefaultDialTimeout)
		if err != nil {
			logger.Error("connect redis", "error", err)
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		cache = client
	}

	if cfg.ServiceTokenFile != "" {
		go func() {
			if err := rt.creds.WatchFile(ctx, cfg.ServiceTokenFile); err != nil {
				logger.Error("watch credential file", "error", err)
			}
		}()
	}

	srv, err := server.New(routes.Deps{
		Cfg:     cfg,
		Client:  rt.client,
		Creds:   rt.creds,
		DB:      db,
		SQLite:  sqliteDB,
		Cache:   cache,
		Metrics: rt.metrics,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		return err
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server exited cleanly")
	return nil
}
