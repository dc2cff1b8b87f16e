package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default values
const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = "8080"
	DefaultOpenAIModel = "gpt-4o-mini"

	// Pipeline defaults
	DefaultBatchSize = 500
	DefaultNReflect  = 1

	// Mapping thresholds
	DefaultThresholdAuto    = 0.60
	DefaultThresholdSuggest = 0.10
	DefaultThresholdReflect = 0.50

	// AI defaults
	DefaultAITemperature    = 0.1
	DefaultAIMaxTokens      = 2000
	DefaultAIRequestTimeout = 30 * time.Second
	DefaultAIMaxRetries     = 2
	DefaultAIRetryBaseDelay = 1 * time.Second
	DefaultAIParallelCalls  = 4

	// Cache defaults
	DefaultAICacheTTL     = 24 * time.Hour
	DefaultAICacheMaxSize = 1000
	DefaultAICacheDBPath  = ".cache/ai_cache.db"

	// Rate limit defaults
	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = time.Minute

	// Storage defaults
	DefaultReasoningDBPath = ".cache/reasoning.db"

	DefaultTrustedProxies = "127.0.0.1,::1"

	// Instance id strategies for compound names like FCU_01_25
	InstanceStrategyCompound    = "compound"
	InstanceStrategyLastNumeric = "last_numeric"
)

type Config struct {
	// Server
	Host           string
	Port           string
	CORSOrigins    []string
	TrustedProxies []string

	// Pipeline
	BatchSize        int
	NReflect         int
	OperationTimeout time.Duration // 0 = no overall deadline

	// Mapping thresholds
	ThresholdAuto    float64
	ThresholdSuggest float64
	ThresholdReflect float64

	// Instance extraction policy for compound names
	InstanceIDStrategy string

	// AI configuration
	OpenAIAPIKey     string
	OpenAIModel      string
	AIEnabled        bool // Auto-enabled when OPENAI_API_KEY is set
	AITemperature    float64
	AIMaxTokens      int
	AIRequestTimeout time.Duration
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIParallelCalls  int

	// Cache
	AICacheEnabled bool
	AICacheTTL     time.Duration
	AICacheMaxSize int
	AICacheDBPath  string

	// Rate limiting (token bucket per model)
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Ontology and canonical schema documents
	OntologyEquipmentPath string
	OntologyResourcesPath string
	CanonicalSchemaPath   string

	// Storage
	ReasoningDBPath string
}

func LoadConfig() *Config {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}

	openAIAPIKey := getEnv("OPENAI_API_KEY", "")
	aiEnabled := openAIAPIKey != ""

	if aiEnabled {
		slog.Info("AI mapping enabled (OPENAI_API_KEY is set)")
	} else {
		slog.Info("AI mapping disabled (OPENAI_API_KEY not set); rule-based path only")
	}

	return &Config{
		// Server
		Host:           getEnv("HOST", DefaultHost),
		Port:           getEnv("PORT", DefaultPort),
		CORSOrigins:    corsOrigins,
		TrustedProxies: splitCSV(getEnv("TRUSTED_PROXIES", DefaultTrustedProxies)),

		// Pipeline
		BatchSize:        getEnvInt("BATCH_SIZE", DefaultBatchSize),
		NReflect:         getEnvInt("N_REFLECT", DefaultNReflect),
		OperationTimeout: getEnvDuration("OPERATION_TIMEOUT", 0),

		// Thresholds
		ThresholdAuto:    getEnvFloat64("THRESHOLD_AUTO", DefaultThresholdAuto),
		ThresholdSuggest: getEnvFloat64("THRESHOLD_SUGGEST", DefaultThresholdSuggest),
		ThresholdReflect: getEnvFloat64("THRESHOLD_REFLECT", DefaultThresholdReflect),

		InstanceIDStrategy: getEnv("INSTANCE_ID_STRATEGY", InstanceStrategyCompound),

		// AI configuration
		OpenAIAPIKey:     openAIAPIKey,
		OpenAIModel:      getEnv("OPENAI_MODEL", DefaultOpenAIModel),
		AIEnabled:        aiEnabled,
		AITemperature:    getEnvFloat64("AI_TEMPERATURE", DefaultAITemperature),
		AIMaxTokens:      getEnvInt("AI_MAX_TOKENS", DefaultAIMaxTokens),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", DefaultAIRequestTimeout),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", DefaultAIMaxRetries),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", DefaultAIRetryBaseDelay),
		AIParallelCalls:  getEnvInt("AI_PARALLEL_CALLS", DefaultAIParallelCalls),

		// Cache
		AICacheEnabled: getEnvBool("AI_CACHE_ENABLED", true),
		AICacheTTL:     getEnvDuration("AI_CACHE_TTL", DefaultAICacheTTL),
		AICacheMaxSize: getEnvInt("AI_CACHE_MAX_SIZE", DefaultAICacheMaxSize),
		AICacheDBPath:  getEnv("AI_CACHE_DB_PATH", DefaultAICacheDBPath),

		// Rate limiting
		RateLimitRequests: getEnvInt("AI_RATE_LIMIT_REQUESTS", DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration("AI_RATE_LIMIT_WINDOW", DefaultRateLimitWindow),

		// Ontology documents
		OntologyEquipmentPath: getEnv("ONTOLOGY_EQUIPMENT_PATH", ""),
		OntologyResourcesPath: getEnv("ONTOLOGY_RESOURCES_PATH", ""),
		CanonicalSchemaPath:   getEnv("CANONICAL_SCHEMA_PATH", ""),

		// Storage
		ReasoningDBPath: getEnv("REASONING_DB_PATH", DefaultReasoningDBPath),
	}
}

// ValidateConfig checks config values and returns an error on failure.
// Call after LoadConfig to fail fast on invalid configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.Port != "" {
		if _, err := strconv.Atoi(cfg.Port); err != nil {
			return fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
		}
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if cfg.NReflect < 0 {
		return fmt.Errorf("N_REFLECT must not be negative")
	}
	if cfg.ThresholdAuto < 0 || cfg.ThresholdAuto > 1 {
		return fmt.Errorf("THRESHOLD_AUTO must be in range 0..1")
	}
	if cfg.ThresholdSuggest < 0 || cfg.ThresholdSuggest > 1 {
		return fmt.Errorf("THRESHOLD_SUGGEST must be in range 0..1")
	}
	if cfg.ThresholdSuggest >= cfg.ThresholdAuto {
		return fmt.Errorf("THRESHOLD_SUGGEST (%v) must be below THRESHOLD_AUTO (%v)", cfg.ThresholdSuggest, cfg.ThresholdAuto)
	}
	if cfg.ThresholdReflect < 0 || cfg.ThresholdReflect > 1 {
		return fmt.Errorf("THRESHOLD_REFLECT must be in range 0..1")
	}
	if cfg.InstanceIDStrategy != InstanceStrategyCompound && cfg.InstanceIDStrategy != InstanceStrategyLastNumeric {
		return fmt.Errorf("INSTANCE_ID_STRATEGY must be %q or %q, got %q",
			InstanceStrategyCompound, InstanceStrategyLastNumeric, cfg.InstanceIDStrategy)
	}
	if cfg.AITemperature < 0 || cfg.AITemperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be in range 0..2")
	}
	if cfg.AIMaxTokens <= 0 {
		return fmt.Errorf("AI_MAX_TOKENS must be positive")
	}
	if cfg.AIMaxRetries < 0 {
		return fmt.Errorf("AI_MAX_RETRIES must not be negative")
	}
	if cfg.AIParallelCalls <= 0 {
		return fmt.Errorf("AI_PARALLEL_CALLS must be positive")
	}
	if cfg.RateLimitRequests <= 0 || cfg.RateLimitWindow <= 0 {
		return fmt.Errorf("AI_RATE_LIMIT_REQUESTS and AI_RATE_LIMIT_WINDOW must be positive")
	}
	if len(cfg.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must have at least one origin")
	}
	for _, origin := range cfg.CORSOrigins {
		if origin == "" || !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("CORS_ORIGINS entry %q must be a valid http(s) URL", origin)
		}
	}
	if len(cfg.TrustedProxies) == 0 {
		return fmt.Errorf("TRUSTED_PROXIES must have at least one entry")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat64(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var items []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
