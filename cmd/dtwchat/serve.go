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

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/api"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/config"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/extract"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/interview"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/llm"
	"github.com/manasgoel2002/DTW-ChatInterface/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dtwchat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	// Local .env is optional; real deployments set env vars directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	switch cfg.Storage.Backend {
	case "memory":
		store = storage.NewMemory()
		slog.Info("using in-memory storage")
	default:
		sqlStore, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer func() {
			if err := sqlStore.Close(); err != nil {
				slog.Warn("closing storage", "error", err)
			}
		}()
		store = sqlStore
		slog.Info("using sqlite storage", "data_dir", cfg.Storage.DataDir)
	}

	client := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey)
	extractor := extract.NewExtractor(client, cfg.LLM.ExtractModel)
	orchestrator := interview.New(store, client, extractor, cfg.LLM.ChatModel)

	handler := api.NewHandler(api.Deps{
		Interview: orchestrator,
		Token:     cfg.Server.APIToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server on stdio, same orchestrator behind it.
	mcpSrv := api.NewMCPServer(api.MCPDeps{Interview: orchestrator})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("dtwchat listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
