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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/ai-mail-assistant/cmd/mainconfig"
	"github.com/wolfman30/ai-mail-assistant/internal/api/router"
	"github.com/wolfman30/ai-mail-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/ai-mail-assistant/internal/config"
	"github.com/wolfman30/ai-mail-assistant/internal/http/handlers"
	"github.com/wolfman30/ai-mail-assistant/internal/line"
	"github.com/wolfman30/ai-mail-assistant/internal/observability/metrics"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting ai-mail-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	awsCfg, err := mainconfig.LoadAWSConfig(appCtx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.StateBackend == "redis" {
		redisClient = bootstrap.BuildRedisClient(appCtx, cfg, logger, true)
	}
	store, err := bootstrap.BuildStore(appCtx, cfg, redisClient, logger)
	if err != nil {
		logger.Error("failed to build conversation store", "error", err)
		os.Exit(1)
	}
	llmClient, closeLLM, err := bootstrap.BuildLLMClient(appCtx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}
	defer closeLLM()
	dispatcher, err := bootstrap.BuildDispatcher(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build mail dispatcher", "error", err)
		os.Exit(1)
	}

	metricsHandler, conversationMetrics := setupMetrics()
	engine, err := bootstrap.BuildEngine(cfg, store, llmClient, dispatcher, conversationMetrics, logger)
	if err != nil {
		logger.Error("failed to build conversation engine", "error", err)
		os.Exit(1)
	}

	lineWebhook, err := setupLineWebhook(cfg, engine, bootstrap.BuildProcessed(redisClient, time.Hour), conversationMetrics, logger)
	if err != nil {
		logger.Error("failed to configure LINE webhook", "error", err)
		os.Exit(1)
	}

	// Setup router
	routerCfg := &router.Config{
		Logger:            logger,
		Chat:              handlers.NewChatHandler(engine, logger),
		LineWebhook:       lineWebhook,
		MetricsHandler:    metricsHandler,
		OperatorJWTSecret: cfg.OperatorJWTSecret,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + cfg.MailTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	cancelApp()
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the conversation collectors on a private registry.
func setupMetrics() (http.Handler, *metrics.ConversationMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewConversationMetrics(reg)
}

// setupLineWebhook returns nil when LINE credentials are not configured.
func setupLineWebhook(cfg *appconfig.Config, responder line.Responder, processed line.ProcessedTracker, m *metrics.ConversationMetrics, logger *logging.Logger) (http.Handler, error) {
	if cfg.LineChannelSecret == "" || cfg.LineChannelAccessToken == "" {
		logger.Warn("LINE credentials not configured; /webhooks/line disabled")
		return nil, nil
	}
	client, err := line.New(line.Config{
		BaseURL:            cfg.LineAPIBaseURL,
		ChannelAccessToken: cfg.LineChannelAccessToken,
		ChannelSecret:      cfg.LineChannelSecret,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}
	return line.NewWebhookHandler(line.WebhookConfig{
		ChannelSecret: cfg.LineChannelSecret,
		Messenger:     client,
		Responder:     responder,
		Processed:     processed,
		ReplyWindow:   cfg.LineReplyWindow,
		Logger:        logger,
		Metrics:       m,
	}), nil
}
