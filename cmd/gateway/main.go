package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

func main() {
	app := cli.NewApp()
	app.Name = "gateway"
	app.Usage = "API gateway: route resolution, authentication and per-client rate limiting"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "config file (yaml, json or toml)",
			EnvVar: "GATEWAY_CONFIG",
		},
		cli.StringFlag{
			Name:  "env-file",
			Usage: "load environment variables from `FILE` before reading the config",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "human readable debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(c *cli.Context) error {
	if f := c.String("env-file"); f != "" {
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	log, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if !c.Bool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gw, err := NewGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	go gw.RunJanitor(ctx)

	servers := []*http.Server{newServer(cfg.Listen, gw.Handler())}
	if cfg.AdminListen != "" {
		servers = append(servers, newServer(cfg.AdminListen, gw.AdminHandler()))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			log.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}()
	}

	log.Info("gateway started",
		zap.Int("routes", len(gw.Router.ActiveRoutes())),
		zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute),
		zap.Int("burst", cfg.RateLimit.BurstSize),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Int("static_tokens", len(cfg.Auth.Tokens)),
		zap.Bool("signed_tokens", gw.Signer != nil),
		zap.Bool("token_issuing", cfg.Auth.IssueTokens),
		zap.Bool("redis_stats", cfg.Stats.Redis.Enabled),
		zap.Int("concurrency_max", cfg.Concurrency.Max),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	for _, srv := range servers {
		srv := srv
		_ = srv.Shutdown(shutdownCtx)
	}
	if err := gw.Close(shutdownCtx); err != nil {
		log.Warn("close", zap.Error(err))
	}
	log.Info("gateway stopped")
	return runErr
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}
