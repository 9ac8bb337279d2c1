package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/sagelearn/sagacity"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("SAGACITY_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	// Stdout carries the MCP stdio transport; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	eng, err := sagacity.New(
		sagacity.WithLogger(logger),
		sagacity.WithVersion(version),
	)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer func() {
		if err := eng.Close(context.Background()); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}()

	logger.Info("serving MCP over stdio", "version", version)

	done := make(chan error, 1)
	go func() {
		done <- mcpserver.ServeStdio(eng.MCPServer())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mcp stdio: %w", err)
		}
		return nil
	}
}
