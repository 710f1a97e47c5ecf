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

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/api"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/config"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/docs"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/gemini"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/history"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/index"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/pipeline"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/rag"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/ratelimit"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/track"
	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the advisor server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "sfadvisor version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(os.Getenv("SFADVISOR_LOG_LEVEL"), "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := gemini.New(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.EmbedModel, cfg.Gemini.ChatModel)
	processor := docs.NewProcessor(cfg.Documents.ChunkSize, cfg.Documents.ChunkOverlap)
	store := index.New(cfg.Index.Dir, client)
	defer store.Close()

	// Build or load the index up front so the first query doesn't pay for it.
	if store.NeedsRebuild(cfg.Documents.Dir) {
		printStep("Building document index from %s...", cfg.Documents.Dir)
		chunks, err := processor.ProcessDir(cfg.Documents.Dir)
		if err != nil {
			return fmt.Errorf("processing documents: %w", err)
		}
		if err := store.Rebuild(ctx, chunks, cfg.Documents.Dir); err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		printSuccess("Indexed %d chunks", len(chunks))
	} else if err := store.Load(); err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	histStore, err := history.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer histStore.Close()

	tracker := track.New()
	limiter := ratelimit.New()

	engine := rag.New(
		func() (rag.Retriever, error) { return store, nil },
		func() (rag.Generator, error) { return client, nil },
		rag.WithGenerationObserver(func(prompt, response string) {
			tracker.RecordGeneration(cfg.Gemini.ChatModel, prompt, response)
		}),
	)

	answer := pipeline.Chain(
		func(ctx context.Context, req pipeline.Request) (*rag.Result, error) {
			return engine.Answer(ctx, req.Question)
		},
		pipeline.Tracking(tracker),
		pipeline.RateLimit(limiter),
	)

	handler := api.NewAppHandler(api.AppDeps{
		Answer:    answer,
		Index:     store,
		Processor: processor,
		DocsDir:   cfg.Documents.Dir,
		History:   histStore,
		Tracker:   tracker,
		Limiter:   limiter,
		Token:     cfg.Server.APIToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Keep the index in sync with the document directory.
	if cfg.Documents.Watch {
		watcher := watch.New(cfg.Documents.Dir, processor, store)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("document watcher stopped", "error", err)
			}
		}()
	}

	// MCP server over stdio.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Answer: func(mcpCtx context.Context, req pipeline.Request) (string, error) {
			result, err := answer(mcpCtx, req)
			if err != nil {
				return "", err
			}
			return result.Answer, nil
		},
		Index: func() (any, error) { return store.Info() },
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "sfadvisor listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
