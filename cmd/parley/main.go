package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/voxhollow/parley/internal/agent"
	"github.com/voxhollow/parley/internal/api"
	"github.com/voxhollow/parley/internal/config"
	"github.com/voxhollow/parley/internal/conversation"
	"github.com/voxhollow/parley/internal/dispatch"
	"github.com/voxhollow/parley/internal/embedding"
	"github.com/voxhollow/parley/internal/gateway"
	"github.com/voxhollow/parley/internal/memory"
	"github.com/voxhollow/parley/internal/provider"
	"github.com/voxhollow/parley/internal/search"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Parley...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/parley.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	if len(cfg.Agents.Fallbacks) > 0 {
		router.SetFallbacks(cfg.Agents.Fallbacks)
	}

	// Initialize memory store: Redis cache in front of Postgres
	var cache memory.Cache
	if cfg.Database.Redis.URL != "" {
		rc, rcErr := memory.NewRedisCache(cfg.Database.Redis.URL, logger)
		if rcErr != nil {
			logger.Warn("Redis unavailable, running without memory cache", zap.Error(rcErr))
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	var durable memory.Durable
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := memory.NewPostgresStore(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Fatal("PostgreSQL unavailable", zap.Error(pgErr))
		}
		if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
			logger.Fatal("migration failed", zap.Error(mErr))
		}
		durable = ps
		defer ps.Close()
	} else {
		logger.Fatal("database.postgres.dsn is required")
	}

	store := memory.NewStore(cache, durable, memory.NewTopicSummarizer(), logger)

	// Initialize search backend
	var searcher agent.Searcher = search.PlaceholderSearcher{}
	switch cfg.Search.Backend {
	case "searxng":
		searcher = search.NewWebSearcher(cfg.Search.Endpoint, logger)
	case "knowledge":
		embedder := embedding.NewAPIProvider(embedding.Config{
			Endpoint:  cfg.Embedding.Endpoint,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			Dimension: cfg.Embedding.Dimension,
		})
		ks, ksErr := search.NewKnowledgeSearcher(search.QdrantConfig{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		}, embedder, logger)
		if ksErr != nil {
			logger.Warn("Qdrant unavailable, search degraded", zap.Error(ksErr))
		} else {
			searcher = ks
			defer ks.Close()
		}
	default:
		logger.Warn("no search backend configured, search degraded")
	}

	// Initialize strategies and dispatcher
	model := cfg.Agents.DefaultModel
	strategies := []agent.Strategy{
		agent.NewReasoningAgent(router, model, logger),
		agent.NewResearchAgent(router, searcher, model, logger),
		agent.NewTaskAgent(router, model, logger),
	}
	dispatcher := dispatch.New(store, strategies, logger)
	registry := conversation.NewRegistry(logger)

	// Initialize gateway
	gw := gateway.NewGateway(logger)

	// Wire bridge BEFORE registering adapters (Register captures handler)
	bridge := gateway.NewBridge(dispatcher, registry, gw, logger)
	gw.SetHandler(bridge.Handle)

	restAdapter := gateway.NewRESTAdapter(logger)
	gw.Register(restAdapter)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		slackAdapter := gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger)
		gw.Register(slackAdapter)
	}

	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		discordAdapter := gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger)
		gw.Register(discordAdapter)
	}

	gwCtx, gwCancel := context.WithCancel(context.Background())
	defer gwCancel()
	if err := gw.ConnectAll(gwCtx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Build HTTP handler
	handler := api.NewHandler(dispatcher, store, registry, logger)
	handler.MountGateway(restAdapter.Routes())

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Parley listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Parley...")
	srv.Shutdown(context.Background())
	gwCancel()
	gw.CloseAll()
}
