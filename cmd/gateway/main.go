// cmd/gateway/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mcp-gateway/internal/api"
	"mcp-gateway/internal/common/config"
	"mcp-gateway/internal/common/database"
	"mcp-gateway/internal/common/logger"
	"mcp-gateway/internal/common/observability"
	"mcp-gateway/internal/intent"
	"mcp-gateway/internal/orchestrator"
	"mcp-gateway/internal/router"
	"mcp-gateway/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting orchestration gateway...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Session store ---
	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			// Test the connection with context
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")

		store = session.NewRedisStore(redis.GetClient(), config.GetDuration(cfg.Session.TTL))
	default:
		store = session.NewMemoryStore(
			config.GetDuration(cfg.Session.TTL),
			config.GetDuration(cfg.Session.SweepInterval),
		)
	}
	defer store.Close()

	// --- Intent resolver ---
	var classifier intent.Classifier
	if cfg.Intent.BaseURL != "" {
		classifier = intent.NewHTTPClassifier(
			cfg.Intent.BaseURL,
			cfg.Intent.APIKey,
			config.GetDuration(cfg.Intent.Timeout),
		)
		zapLog.Info("Using HTTP intent classifier", zap.String("base_url", cfg.Intent.BaseURL))
	} else {
		classifier = intent.NewKeywordClassifier()
		zapLog.Info("Using built-in keyword classifier")
	}

	resolver := intent.NewResolver(classifier, &intent.Config{
		BaseURL:       cfg.Intent.BaseURL,
		APIKey:        cfg.Intent.APIKey,
		Timeout:       config.GetDuration(cfg.Intent.Timeout),
		MinConfidence: cfg.Intent.MinConfidence,
		FallbackLabel: cfg.Intent.FallbackLabel,
	}, log)

	// --- Routing table and collaborators ---
	registry := router.NewRegistry()
	routes := make(map[string]router.Route, len(cfg.Routing.Routes))
	for label, rc := range cfg.Routing.Routes {
		if rc.URL != "" {
			registry.Register(router.NewHTTPCollaborator(rc.Target, rc.URL, config.GetDuration(cfg.Routing.Timeout)))
		} else {
			registry.Register(router.NewStaticCollaborator(rc.Target, rc.Reply))
		}
		routes[label] = router.Route{Name: rc.Route, Target: rc.Target}
	}
	tenants := make(map[string]map[string]router.Route, len(cfg.Routing.Tenants))
	for tenant, overrides := range cfg.Routing.Tenants {
		tenants[tenant] = make(map[string]router.Route, len(overrides))
		for label, rc := range overrides {
			if rc.URL != "" {
				registry.Register(router.NewHTTPCollaborator(rc.Target, rc.URL, config.GetDuration(cfg.Routing.Timeout)))
			} else {
				registry.Register(router.NewStaticCollaborator(rc.Target, rc.Reply))
			}
			tenants[tenant][label] = router.Route{Name: rc.Route, Target: rc.Target}
		}
	}
	table := router.NewTable(routes, tenants, cfg.Routing.CatchAll)
	flowRouter := router.New(table, registry, config.GetDuration(cfg.Routing.Timeout), log)
	zapLog.Info("Routing table initialized",
		zap.Int("routes", len(routes)),
		zap.Int("tenants", len(tenants)),
		zap.String("catch_all", cfg.Routing.CatchAll),
	)

	// --- Log shipping ---
	shipper := observability.NewLokiShipper(observability.LokiOptions{
		URL:      cfg.Loki.URL,
		Username: cfg.Loki.Username,
		Token:    cfg.Loki.Token,
		AppLabel: cfg.Loki.AppLabel,
		Timeout:  config.GetDuration(cfg.Loki.Timeout),
		QueueLen: cfg.Loki.QueueLen,
	}, log)
	defer shipper.Close()
	if shipper.Enabled() {
		zapLog.Info("Loki log shipping enabled", zap.String("url", cfg.Loki.URL))
	}

	// --- Coordinator and HTTP server ---
	coordinator := orchestrator.New(store, resolver, flowRouter, obs, shipper, log)
	server := api.NewServer(coordinator, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Routes(cfg),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Gateway listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down server", zap.Error(err))
	}

	zapLog.Info("Gateway stopped gracefully")
}
