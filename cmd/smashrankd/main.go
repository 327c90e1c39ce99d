// Package main provides the smashrankd server daemon for the SmashRank ladder.
// It wires the SQLite store, matchmaking pool, rating engine, match coordinator,
// and websocket hub behind the HTTP API and runs until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MattMyers204453/smashrank-api/pkg/auth"
	"github.com/MattMyers204453/smashrank-api/pkg/config"
	"github.com/MattMyers204453/smashrank-api/pkg/elo"
	"github.com/MattMyers204453/smashrank-api/pkg/httpapi"
	"github.com/MattMyers204453/smashrank-api/pkg/ladder"
	"github.com/MattMyers204453/smashrank-api/pkg/match"
	"github.com/MattMyers204453/smashrank-api/pkg/pool"
	"github.com/MattMyers204453/smashrank-api/pkg/push"
	"github.com/MattMyers204453/smashrank-api/pkg/seed"
	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

// Version information - set by build process
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Options defines the command-line flags for the daemon.
type Options struct {
	Config   string `long:"config" short:"c" description:"Configuration file path" default:"smashrank.yaml"`
	Addr     string `long:"addr" short:"a" description:"Listen address (overrides config)"`
	Database string `long:"database" short:"d" description:"SQLite database path (overrides config)"`
	Version  bool   `long:"version" description:"Show version information"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if opts.Version {
		fmt.Printf("smashrankd version %s\n", Version)
		fmt.Printf("Build date: %s\n", BuildDate)
		fmt.Printf("Git commit: %s\n", GitCommit)
		return nil
	}

	// A local .env file is optional; variables already set in the
	// environment take precedence.
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvironment(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if cfg.Seed.Enabled {
		if err := seed.Run(context.Background(), st, logger); err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
	}

	var idx pool.Index
	if cfg.Pool.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Pool.RedisAddr})
		defer client.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Pool.RedisAddr, err)
		}
		idx = pool.NewRedisIndex(client)
		logger.Info("matchmaking pool backed by redis", "addr", cfg.Pool.RedisAddr)
	} else {
		idx = pool.NewMemoryIndex()
		logger.Info("matchmaking pool held in memory")
	}

	calc, err := elo.NewCalculator(cfg.Elo)
	if err != nil {
		return fmt.Errorf("invalid elo configuration: %w", err)
	}
	engine := ladder.NewEngine(st, calc, cfg.Match.LockTimeout(), logger)

	hub := push.NewHub(logger)
	go hub.Run()
	defer hub.Shutdown()

	coord := match.NewCoordinator(st, engine, idx, hub, cfg.Match.RematchWindow(), logger)
	defer coord.Close()

	authSvc, err := auth.NewService(st, auth.Config{
		Secret:          cfg.Auth.JWTSecret,
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL(),
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL(),
		InitialElo:      cfg.Elo.InitialRating,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	if cfg.Server.DevAuth {
		logger.Warn("dev auth endpoint is enabled; do not expose this server publicly")
	}

	api := httpapi.NewServer(st, authSvc, coord, idx, hub, httpapi.Config{
		DevAuth:    cfg.Server.DevAuth,
		InitialElo: cfg.Elo.InitialRating,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr, "version", Version)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down cleanly: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}
