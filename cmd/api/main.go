package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"variatio/adapters/api"
	"variatio/internal/config"
	"variatio/internal/container"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.InitDatabase(ctx); err != nil {
		return err
	}

	server := api.NewServer(cfg.Analysis, c.MetricRepo, c.Logger)
	err = server.Start(ctx, ":"+cfg.Server.Port)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	c.Logger.Info("API server stopped", zap.String("port", cfg.Server.Port))
	return nil
}
