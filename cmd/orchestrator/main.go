package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/booomerangs/ai-orchestrator/internal/api"
	"github.com/booomerangs/ai-orchestrator/internal/archive"
	"github.com/booomerangs/ai-orchestrator/internal/auth"
	"github.com/booomerangs/ai-orchestrator/internal/cache"
	"github.com/booomerangs/ai-orchestrator/internal/config"
	"github.com/booomerangs/ai-orchestrator/internal/crypto"
	"github.com/booomerangs/ai-orchestrator/internal/domain"
	"github.com/booomerangs/ai-orchestrator/internal/health"
	"github.com/booomerangs/ai-orchestrator/internal/httputil"
	"github.com/booomerangs/ai-orchestrator/internal/notify"
	"github.com/booomerangs/ai-orchestrator/internal/orchestrator"
	"github.com/booomerangs/ai-orchestrator/internal/provider/bedrock"
	"github.com/booomerangs/ai-orchestrator/internal/provider/g4f"
	"github.com/booomerangs/ai-orchestrator/internal/provider/ollama"
	"github.com/booomerangs/ai-orchestrator/internal/provider/openaicompat"
	"github.com/booomerangs/ai-orchestrator/internal/quota"
	"github.com/booomerangs/ai-orchestrator/internal/ratelimit"
	"github.com/booomerangs/ai-orchestrator/internal/registry"
	"github.com/booomerangs/ai-orchestrator/internal/secrets"
	"github.com/booomerangs/ai-orchestrator/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting response orchestrator", "addr", cfg.Addr, "version", "0.1.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.Init(ctx, "ai-orchestrator", cfg.OTLPEndpoint)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer shutdown(context.Background())
			slog.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint)
		}
	}

	httpClient := httputil.DefaultClient()

	// Secrets backend: AWS Secrets Manager in AWS deployments, env
	// vars everywhere else.
	var secretStore secrets.Store
	if cfg.AWSRegion != "" {
		store, err := secrets.NewAWSStore(ctx, cfg.AWSRegion)
		if err != nil {
			slog.Warn("secrets manager unavailable, using env store", "error", err)
			secretStore = secrets.NewEnvStore()
		} else {
			secretStore = store
			slog.Info("using aws secrets manager", "region", cfg.AWSRegion)
		}
	} else {
		secretStore = secrets.NewEnvStore()
	}

	credChecker := secrets.NewChecker(secretStore, map[string]string{
		"bedrock": "aws-access-key-id",
		"freegpt": "freegpt-api-key",
	})

	reg := registry.New(credChecker)
	bridge := g4f.NewClient(cfg.G4FBridgeURL, httpClient)

	registerProviders(ctx, cfg, reg, bridge, httpClient)

	checker := health.NewChecker(health.Config{
		DegradedAfter:    cfg.DegradedAfter,
		UnavailableAfter: cfg.UnavailableAfter,
		Cooldown:         cfg.Cooldown,
		ProbeTimeout:     cfg.ProbeTimeout,
	})

	notifier := buildNotifier(ctx, cfg)
	checker.OnTransition(func(provider string, from, to domain.HealthStatus) {
		slog.Info("provider health transition", "provider", provider, "from", from, "to", to)
		event := notify.Event{Provider: provider}
		switch {
		case to == domain.StatusUnavailable:
			event.Type = notify.EventProviderDown
			event.Message = provider + " marked unavailable"
		case from == domain.StatusUnavailable && to == domain.StatusHealthy:
			event.Type = notify.EventProviderUp
			event.Message = provider + " recovered"
		default:
			return
		}
		if err := notifier.Send(context.Background(), event); err != nil {
			slog.Warn("notification failed", "error", err)
		}
	})

	responseCache := buildCache(cfg)
	if memCache, ok := responseCache.(*cache.MemoryCache); ok {
		go memCache.Run(ctx, time.Minute)
	}
	tracker := buildQuota(cfg, notifier)
	rateLimiter := buildRateLimiter(cfg)

	orch := orchestrator.New(orchestrator.Config{
		Registry: reg,
		Health:   checker,
		Cache:    responseCache,
		Quota:    tracker,
		Policies: orchestrator.Policies{
			domain.LevelFull:      {Deadline: cfg.DeadlineFull, ConfidenceScale: 1.0, CacheWrites: true},
			domain.LevelBasic:     {Deadline: cfg.DeadlineBasic, ConfidenceScale: 0.8, CacheWrites: true},
			domain.LevelMinimal:   {Deadline: cfg.DeadlineMinimal, ConfidenceScale: 0.6, CacheWrites: true},
			domain.LevelFallback:  {Deadline: cfg.DeadlineFallback, ConfidenceScale: 0.4, CacheWrites: true},
			domain.LevelEmergency: {ConfidenceScale: 0.1},
		},
	})

	archiveRepo, archiveWorker, archiveDB := buildArchive(ctx, cfg)
	go archiveWorker.Run(ctx)

	targets := make([]health.ProbeTarget, 0)
	for _, name := range reg.Names() {
		if impl, ok := reg.Implementation(name); ok {
			targets = append(targets, impl)
		}
	}
	prober := health.NewProber(checker, targets, cfg.ProbeInterval)
	go prober.Run(ctx)

	verifier := auth.NewTokenVerifier(cfg.AdminTokenHash)
	admin := api.NewAdminHandler(reg, checker, tracker, archiveRepo, verifier)

	ready := []api.HealthChecker{
		api.NewBridgeHealthChecker("g4f-bridge", bridge.Health),
	}
	if cfg.RedisURL != "" {
		if redisCheck, err := api.NewRedisHealthChecker(cfg.RedisURL); err == nil {
			ready = append(ready, redisCheck)
		}
	}
	if archiveDB != nil {
		ready = append(ready, api.NewPostgresHealthChecker(archiveDB))
	}

	handler := api.NewHandler(api.HandlerConfig{
		Orchestrator: orch,
		Registry:     reg,
		Health:       checker,
		RateLimiter:  rateLimiter,
		RateLimitRPM: cfg.RateLimitRPM,
		Quota:        tracker,
		Archive:      archiveWorker,
		Bridge:       bridge,
		Admin:        admin,
		Ready:        ready,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop background loops and let the archive worker flush.
	cancel()
	select {
	case <-archiveWorker.Done():
	case <-shutdownCtx.Done():
		slog.Warn("archive worker did not flush in time")
	}

	slog.Info("server stopped")
}

func registerProviders(ctx context.Context, cfg *config.Config, reg *registry.Registry, bridge *g4f.Client, httpClient *http.Client) {
	text := []domain.Capability{domain.CapabilityText}

	reg.Register(domain.ProviderDescriptor{
		Name:         "qwen-2.5-72b",
		Capabilities: []domain.Capability{domain.CapabilityText, domain.CapabilityCode},
		BasePriority: 10,
		DefaultModel: "qwen-2.5-72b",
		MinLevel:     domain.LevelFull,
		MaxLevel:     domain.LevelBasic,
	}, g4f.NewProvider("qwen-2.5-72b", "Qwen_Qwen_2_72B", "qwen-2.5-72b", bridge))

	reg.Register(domain.ProviderDescriptor{
		Name:         "qwen-max",
		Capabilities: text,
		BasePriority: 9,
		DefaultModel: "qwen-max",
		MinLevel:     domain.LevelFull,
		MaxLevel:     domain.LevelBasic,
	}, g4f.NewProvider("qwen-max", "Qwen_Qwen_2_5_Max", "qwen-max", bridge))

	reg.Register(domain.ProviderDescriptor{
		Name:         "qwen-2.5",
		Capabilities: text,
		BasePriority: 8,
		DefaultModel: "qwen-2.5",
		MinLevel:     domain.LevelFull,
		MaxLevel:     domain.LevelMinimal,
	}, g4f.NewProvider("qwen-2.5", "Qwen_Qwen_2_5", "qwen-2.5", bridge))

	if cfg.BedrockEnabled && cfg.AWSRegion != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			slog.Warn("bedrock disabled", "error", err)
		} else {
			reg.Register(domain.ProviderDescriptor{
				Name:               "bedrock",
				Capabilities:       []domain.Capability{domain.CapabilityText, domain.CapabilityVision, domain.CapabilityCode},
				RequiresCredential: true,
				BasePriority:       7,
				DefaultModel:       "claude-3-haiku",
				MinLevel:           domain.LevelFull,
				MaxLevel:           domain.LevelFull,
			}, bedrock.NewWithConfig(awsCfg, "claude-3-haiku"))
			slog.Info("registered provider", "provider", "bedrock")
		}
	}

	if cfg.FreeGPTBaseURL != "" {
		reg.Register(domain.ProviderDescriptor{
			Name:         "freegpt",
			Capabilities: text,
			BasePriority: 5,
			DefaultModel: "gpt-4o-mini",
			MinLevel:     domain.LevelBasic,
			MaxLevel:     domain.LevelFallback,
		}, openaicompat.New("freegpt", cfg.FreeGPTBaseURL, cfg.FreeGPTAPIKey, "gpt-4o-mini", httpClient))
		slog.Info("registered provider", "provider", "freegpt")
	}

	if cfg.OllamaBaseURL != "" {
		reg.Register(domain.ProviderDescriptor{
			Name:         "ollama",
			Capabilities: []domain.Capability{domain.CapabilityText, domain.CapabilityCode},
			BasePriority: 3,
			DefaultModel: "llama3.1",
			MinLevel:     domain.LevelMinimal,
			MaxLevel:     domain.LevelFallback,
		}, ollama.New(cfg.OllamaBaseURL, "llama3.1", httpClient))
		slog.Info("registered provider", "provider", "ollama", "url", cfg.OllamaBaseURL)
	}

	slog.Info("provider registry ready", "providers", reg.Names())
}

func buildCache(cfg *config.Config) cache.Cache {
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheCapacity, cfg.CacheTTL)
		if err == nil {
			slog.Info("using redis response cache")
			return redisCache
		}
		slog.Warn("redis cache unavailable, using in-memory", "error", err)
	}
	slog.Info("using in-memory response cache", "capacity", cfg.CacheCapacity, "ttl", cfg.CacheTTL)
	return cache.NewMemoryCache(cfg.CacheCapacity, cfg.CacheTTL)
}

func buildRateLimiter(cfg *config.Config) ratelimit.Limiter {
	if cfg.RedisURL != "" {
		limiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL)
		if err == nil {
			slog.Info("using redis rate limiter")
			return limiter
		}
		slog.Warn("redis rate limiter unavailable, using in-memory", "error", err)
	}
	return ratelimit.NewInMemoryLimiter()
}

func buildQuota(cfg *config.Config, notifier notify.Notifier) *quota.Tracker {
	var dedup quota.Deduplicator
	if cfg.RedisURL != "" {
		redisDedup, err := quota.NewRedisDeduplicator(cfg.RedisURL, 24*time.Hour)
		if err == nil {
			dedup = redisDedup
		} else {
			slog.Warn("redis alert deduplicator unavailable, using in-memory", "error", err)
		}
	}

	tracker := quota.NewTracker(cfg.DailyQuota, dedup)
	tracker.OnAlert(quota.LogAlertHandler)
	tracker.OnAlert(func(alert quota.Alert) {
		eventType := notify.EventQuotaWarning
		switch alert.Level {
		case quota.AlertLevelCritical:
			eventType = notify.EventQuotaCritical
		case quota.AlertLevelExhausted:
			eventType = notify.EventQuotaSpent
		}
		notifier.Send(context.Background(), notify.Event{
			Type:     eventType,
			Provider: alert.Provider,
			Message:  "daily quota threshold crossed",
			Data: map[string]any{
				"used":  alert.Used,
				"limit": alert.Limit,
			},
		})
	})
	return tracker
}

func buildNotifier(ctx context.Context, cfg *config.Config) notify.Notifier {
	if cfg.SNSTopicArn != "" && cfg.AWSRegion != "" {
		notifier, err := notify.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicArn)
		if err == nil {
			slog.Info("using sns notifier", "topic", cfg.SNSTopicArn)
			return notifier
		}
		slog.Warn("sns notifier unavailable, using in-memory", "error", err)
	}
	return notify.NewInMemoryNotifier()
}

func buildArchive(ctx context.Context, cfg *config.Config) (archive.Repository, *archive.Worker, *sql.DB) {
	var (
		repo archive.Repository
		db   *sql.DB
	)

	if cfg.DatabaseURL != "" {
		var err error
		db, err = archive.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			slog.Warn("postgres unavailable, archiving in memory", "error", err)
			db = nil
		} else {
			var encryptor *crypto.Encryptor
			if cfg.ArchiveEncryptionKey != "" {
				encryptor, err = crypto.NewEncryptor(cfg.ArchiveEncryptionKey)
				if err != nil {
					slog.Error("invalid archive encryption key", "error", err)
					os.Exit(1)
				}
			}
			repo = archive.NewPostgresRepository(db, encryptor)
			slog.Info("archiving to postgres", "encrypted", encryptor != nil)
		}
	}
	if repo == nil {
		repo = archive.NewInMemoryRepository(1000)
	}

	var exporter archive.Exporter
	if cfg.ArchiveQueueURL != "" && cfg.AWSRegion != "" {
		sqsExporter, err := archive.NewSQSExporter(ctx, cfg.AWSRegion, cfg.ArchiveQueueURL)
		if err != nil {
			slog.Warn("sqs exporter unavailable", "error", err)
		} else {
			exporter = sqsExporter
			slog.Info("exporting archive records to sqs", "queue", cfg.ArchiveQueueURL)
		}
	}

	return repo, archive.NewWorker(repo, exporter, 256), db
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
