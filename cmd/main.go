package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/victornm/moviequiz/internal/config"
	"github.com/victornm/moviequiz/internal/console"
	"github.com/victornm/moviequiz/internal/server"
)

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	view := console.NewView(os.Stdout)

	s, err := server.Init(c, view)
	if err != nil {
		log.Fatalf("Init server failed: %v", err)
	}

	go func() {
		if err := s.Start(ctx); err != nil {
			slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
			stop()
		}
	}()

	if err := console.Run(ctx, os.Stdin, view, s.Presenter()); err != nil {
		slog.ErrorContext(ctx, "console: read input failed", "error", err)
	}

	s.Shutdown()
}

// loadConfig reads the file at CONFIG_PATH, if set, over the defaults.
func loadConfig() (server.Config, error) {
	c := server.DefaultConfig()

	if err := config.Load(os.Getenv("CONFIG_PATH"), &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
