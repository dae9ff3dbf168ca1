// Command launchforged runs the business-website generation daemon: an HTTP
// API that streams agent turns, applies website edits through the two-tier
// edit engine, and persists artifacts and transcripts in the configured
// stores.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/launchforge/launchforge/agent"
	"github.com/launchforge/launchforge/artifact"
	"github.com/launchforge/launchforge/artifact/store"
	"github.com/launchforge/launchforge/config"
	"github.com/launchforge/launchforge/editor"
	"github.com/launchforge/launchforge/orchestrator"
	"github.com/launchforge/launchforge/pkg/logging"
	"github.com/launchforge/launchforge/pkg/telemetry"
	"github.com/launchforge/launchforge/provider/claude"
	"github.com/launchforge/launchforge/provider/gemini"
	"github.com/launchforge/launchforge/provider/openai"
	"github.com/launchforge/launchforge/server"
	"github.com/launchforge/launchforge/tokenizer"
	"github.com/launchforge/launchforge/tool"
	"github.com/launchforge/launchforge/tool/mcp"
	"github.com/launchforge/launchforge/transcript"
)

const systemPrompt = `You are the website assistant for a business-generation platform.
You help users create and refine their generated business website through conversation.
When the user asks for a change to their site, use the edit_website tool rather than describing the change.
If an edit went wrong, the undo_last_edit tool restores the previous version.
Keep your answers short and concrete.`

const shutdownTimeout = 10 * time.Second

func main() {
	log := logging.WithComponent("main")

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log.Info("starting launchforged", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "launchforge",
		Logger:      log,
	})
	if err != nil {
		log.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	artifacts, closeArtifacts, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		log.Error("artifact store init failed", "error", err)
		os.Exit(1)
	}
	defer closeArtifacts()

	transcripts, closeTranscripts, err := buildTranscriptStore(cfg)
	if err != nil {
		log.Error("transcript store init failed", "error", err)
		os.Exit(1)
	}
	defer closeTranscripts()

	fullGen, closeFullGen, err := buildRegenProvider(ctx, cfg)
	if err != nil {
		log.Error("regeneration provider init failed", "error", err)
		os.Exit(1)
	}
	defer closeFullGen()

	fastGen := openai.New(&openai.Config{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.FastEditModel,
	})
	editService := editor.NewService(editor.NewEngine(fastGen, fullGen), artifacts)

	tokens, err := tokenizer.New(cfg.AgentModel)
	if err != nil {
		// Token accounting is optional; the turn still works without the
		// TOKENS marker.
		log.Warn("tokenizer unavailable, token usage reporting disabled", "error", err)
		tokens = nil
	}

	mcpTools, closeMCP := connectMCPServers(ctx, cfg)
	defer closeMCP()

	llm := openai.New(&openai.Config{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.AgentModel,
	})

	driver, err := orchestrator.NewDriver(orchestrator.Config{
		Agent:        agent.NewLoop(llm),
		Editor:       editService,
		Tools:        mcpTools,
		Transcripts:  transcripts,
		Tokens:       tokens,
		Pricing:      tokenizer.Pricing{InputPer1K: cfg.InputCostPer1K, OutputPer1K: cfg.OutputCostPer1K},
		SystemPrompt: systemPrompt,
		MaxSteps:     cfg.MaxSteps,
	})
	if err != nil {
		log.Error("driver init failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(driver).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", "error", err)
		}
	}
}

func buildArtifactStore(ctx context.Context, cfg *config.Config) (artifact.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := store.NewPostgresStore(&store.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			DBName:   cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Ping(ctx); err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case config.StoreRedis:
		rs := store.NewRedisStore(&store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		})
		if err := rs.Ping(ctx); err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		return store.NewInMemoryStore(), func() {}, nil
	}
}

func buildTranscriptStore(cfg *config.Config) (transcript.Store, func(), error) {
	if cfg.MongoURI == "" {
		return transcript.Noop{}, func() {}, nil
	}
	ms, err := transcript.NewMongoStore(&transcript.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
	})
	if err != nil {
		return nil, nil, err
	}
	return ms, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = ms.Close(ctx)
	}, nil
}

func buildRegenProvider(ctx context.Context, cfg *config.Config) (editor.Generator, func(), error) {
	if cfg.RegenProvider == "gemini" {
		g, err := gemini.New(ctx, &gemini.Config{
			APIKey: cfg.GeminiKey,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	}
	c := claude.New(&claude.Config{
		APIKey: cfg.AnthropicKey,
		Model:  cfg.RegenModel,
	})
	return c, func() {}, nil
}

// connectMCPServers dials the configured MCP endpoints and collects their
// tools. A failing endpoint is logged and skipped so one dead server does not
// block startup.
func connectMCPServers(ctx context.Context, cfg *config.Config) ([]*tool.Tool, func()) {
	log := logging.WithComponent("main")

	var (
		tools   []*tool.Tool
		clients []*mcp.Client
	)
	for _, endpoint := range cfg.MCPEndpoints {
		client, err := mcp.NewStreamableClient(ctx, endpoint, mcp.WithKeepAlive(30*time.Second))
		if err != nil {
			log.Warn("mcp connect failed", "endpoint", endpoint, "error", err)
			continue
		}
		built, err := client.BuildTools(ctx)
		if err != nil {
			log.Warn("mcp tool discovery failed", "endpoint", endpoint, "error", err)
			_ = client.Close()
			continue
		}
		log.Info("mcp server connected", "endpoint", endpoint, "tools", len(built))
		tools = append(tools, built...)
		clients = append(clients, client)
	}

	return tools, func() {
		for _, client := range clients {
			_ = client.Close()
		}
	}
}
