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

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/fuomag9/cheez-dashboard/internal/api"
	"github.com/fuomag9/cheez-dashboard/internal/config"
	"github.com/fuomag9/cheez-dashboard/internal/discord"
	"github.com/fuomag9/cheez-dashboard/internal/logging"
	"github.com/fuomag9/cheez-dashboard/internal/session"
	"github.com/fuomag9/cheez-dashboard/internal/static"
)

func main() {
	app := &cli.Command{
		Name:  "cheez-dashboard",
		Usage: "Serve the Cheez dashboard and its Discord login",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional TOML configuration file",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides PORT)",
			},
			&cli.StringFlag{
				Name:  "static-dir",
				Usage: "Directory holding the built client (overrides STATIC_DIR)",
			},
		},
		Action: serve,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal("server error", "err", err)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	// Load configuration
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("static-dir") {
		cfg.StaticDir = cmd.String("static-dir")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.Environment, cfg.LogLevel)

	client := discord.NewClientFromConfig(cfg.Discord)
	if client.ClientID() == "" {
		logger.Warn("Discord client ID not configured; login and invite routes will fail")
	}

	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.MaxAge, cfg.IsProduction())

	assets, err := static.NewResolver(cfg.StaticDir, logging.With(logger, "component", "static"))
	if err != nil {
		return fmt.Errorf("failed to open static directory: %w", err)
	}

	// Setup API router
	router := api.NewRouter(cfg, client, sessions, assets, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			"port", cfg.Port,
			"static_dir", assets.Root(),
			"domain", cfg.Discord.PublicDomain,
			"production", cfg.IsProduction(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
