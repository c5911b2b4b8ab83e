// nametag serves the wallet identity registry.
//
// Usage:
//
//	nametag [--config <path>] [--log-level <level>] [serve|migrate]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/nametag/adapters/store"
	"github.com/layer-3/nametag/internal/config"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to the YAML configuration file",
		EnvVars: []string{"NAMETAG_CONFIG"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level (trace, debug, info, warn, error, crit); overrides the config file",
	}
)

func main() {
	app := &cli.App{
		Name:   "nametag",
		Usage:  "Wallet identity registry and NFT transfer preparer",
		Flags:  []cli.Flag{configFlag, logLevelFlag},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the PostgreSQL schema and exit",
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return config.Config{}, err
	}
	if lvl := c.String(logLevelFlag.Name); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, setupLogging(cfg.LogLevel)
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info", "":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}

func setupLogging(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
	if lvl > log.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           deps.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTP.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Storage.DatabaseURL == "" {
		return errors.New("storage.databaseURL is required to migrate")
	}

	pool, err := store.ConnectPostgres(c.Context, cfg.Storage.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.NewPostgresStore(pool).Migrate(c.Context); err != nil {
		return err
	}
	log.Info("Schema applied")
	return nil
}
