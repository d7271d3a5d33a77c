package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr     string
	LogLevel string

	RedisURL    string
	DatabaseURL string

	// Provider endpoints.
	G4FBridgeURL   string
	OllamaBaseURL  string
	FreeGPTBaseURL string
	FreeGPTAPIKey  string
	AWSRegion      string
	BedrockEnabled bool

	// Response cache.
	CacheCapacity int
	CacheTTL      time.Duration

	// Per-level attempt deadlines.
	DeadlineFull     time.Duration
	DeadlineBasic    time.Duration
	DeadlineMinimal  time.Duration
	DeadlineFallback time.Duration

	// Health checker.
	ProbeTimeout     time.Duration
	ProbeInterval    time.Duration
	Cooldown         time.Duration
	DegradedAfter    uint
	UnavailableAfter uint

	// Per-provider daily call quota; 0 disables quota tracking.
	DailyQuota int

	// Requests per minute per client.
	RateLimitRPM int

	// Archive.
	ArchiveQueueURL      string
	ArchiveEncryptionKey string

	// Notifications.
	SNSTopicArn string

	// Admin surface; empty hash disables admin auth.
	AdminTokenHash string

	OTLPEndpoint string

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:     getEnv("ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		G4FBridgeURL:   getEnv("G4F_BRIDGE_URL", "http://localhost:5004"),
		OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		FreeGPTBaseURL: getEnv("FREEGPT_BASE_URL", ""),
		FreeGPTAPIKey:  getEnv("FREEGPT_API_KEY", ""),
		AWSRegion:      getEnv("AWS_REGION", ""),
		BedrockEnabled: getEnv("BEDROCK_ENABLED", "false") == "true",

		CacheCapacity: getIntEnv("CACHE_CAPACITY", 100),
		CacheTTL:      getDurationEnv("CACHE_TTL", 30*time.Minute),

		DeadlineFull:     getDurationEnv("DEADLINE_FULL", 30*time.Second),
		DeadlineBasic:    getDurationEnv("DEADLINE_BASIC", 10*time.Second),
		DeadlineMinimal:  getDurationEnv("DEADLINE_MINIMAL", 5*time.Second),
		DeadlineFallback: getDurationEnv("DEADLINE_FALLBACK", 5*time.Second),

		ProbeTimeout:     getDurationEnv("PROBE_TIMEOUT", 5*time.Second),
		ProbeInterval:    getDurationEnv("PROBE_INTERVAL", 60*time.Second),
		Cooldown:         getDurationEnv("HEALTH_COOLDOWN", 120*time.Second),
		DegradedAfter:    uint(getIntEnv("DEGRADED_AFTER", 3)),
		UnavailableAfter: uint(getIntEnv("UNAVAILABLE_AFTER", 6)),

		DailyQuota: getIntEnv("PROVIDER_DAILY_QUOTA", 0),

		RateLimitRPM: getIntEnv("RATE_LIMIT_RPM", 60),

		ArchiveQueueURL:      getEnv("ARCHIVE_QUEUE_URL", ""),
		ArchiveEncryptionKey: getEnv("ARCHIVE_ENCRYPTION_KEY", ""),

		SNSTopicArn: getEnv("SNS_TOPIC_ARN", ""),

		AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
