package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nidhogg/analysis-room/internal/api"
	"github.com/nidhogg/analysis-room/internal/config"
	"github.com/nidhogg/analysis-room/internal/gateway"
	"github.com/nidhogg/analysis-room/internal/memory"
	"github.com/nidhogg/analysis-room/internal/orchestrator"
	"github.com/nidhogg/analysis-room/internal/provider"
	"github.com/nidhogg/analysis-room/internal/scout"
	"github.com/nidhogg/analysis-room/internal/session"
	"github.com/nidhogg/analysis-room/internal/store"
	"github.com/nidhogg/analysis-room/internal/tts"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting The Analysis Room...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/room.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Provider router with per-expert bindings and fallback chains.
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models, Extra: pc.Extra,
		}
		switch pc.Type {
		case "gemini":
			router.Register(provider.NewGeminiProvider(provCfg, logger))
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	if cfg.Routing.Default != "" {
		router.SetDefault(cfg.Routing.Default)
	}
	for stage, providerID := range cfg.Routing.Bindings {
		router.Bind(stage, providerID)
	}
	for stage, chain := range cfg.Routing.Fallbacks {
		router.SetFallbacks(stage, chain)
	}
	model := cfg.Routing.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	// PostgreSQL store
	st, err := store.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("PostgreSQL unavailable", zap.Error(err))
	}
	if err := st.Migrate(context.Background(), "migrations"); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Core services
	mem := memory.New(st, router, model, logger)
	scoutCache := scout.NewCache()
	contextScout := scout.New(router, model, logger)
	engine := orchestrator.New(st, mem, contextScout, scoutCache, router, model, logger)

	sessions := session.NewManager(cfg.Database.Redis.URL, logger)

	// Speech synthesis
	var geminiTTS *tts.GeminiEngine
	if cfg.TTS.GeminiAPIKey != "" {
		geminiTTS = tts.NewGeminiEngine(cfg.TTS.GeminiEndpoint, cfg.TTS.GeminiAPIKey)
	}
	var elevenTTS *tts.ElevenLabsEngine
	if cfg.TTS.ElevenLabsAPIKey != "" {
		elevenTTS = tts.NewElevenLabsEngine(cfg.TTS.ElevenLabsAPIKey)
	}
	speech := tts.NewService(geminiTTS, elevenTTS, logger)

	// Chat platform gateways
	gw := gateway.NewGateway(logger)
	gateway.NewBridge(gw, engine, sessions, logger)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}
	if err := gw.ConnectAll(context.Background()); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	handler := api.NewHandler(engine, st, mem, speech, scoutCache, router, model, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("The Analysis Room listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down The Analysis Room...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	gw.Close()
	sessions.Close()
	st.Close()
}
