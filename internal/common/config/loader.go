package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like SERPAPI_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig pulls well-known env vars for values the yaml left
// empty after expansion.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Providers.AI.APIKey == "" {
		if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.Providers.AI.APIKey = val
		}
	}
	if cfg.Providers.WebSearch.APIKey == "" {
		if val := os.Getenv("WEB_SEARCH_API_KEY"); val != "" {
			cfg.Providers.WebSearch.APIKey = val
		}
	}
	if cfg.Providers.WebSearch.EngineID == "" {
		if val := os.Getenv("WEB_SEARCH_ENGINE_ID"); val != "" {
			cfg.Providers.WebSearch.EngineID = val
		}
	}
	if cfg.Providers.Places.APIKey == "" {
		if val := os.Getenv("SERPAPI_KEY"); val != "" {
			cfg.Providers.Places.APIKey = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.DeadlineMs == 0 {
		cfg.App.DeadlineMs = 30000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Cache.DefaultTTLMs == 0 {
		cfg.Cache.DefaultTTLMs = int((6 * time.Hour).Milliseconds())
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "feasibility"
	}

	if cfg.RateLimits == nil {
		cfg.RateLimits = map[string]RateLimitConfig{}
	}
	// AI calls are far more rate-constrained than places lookups.
	if _, ok := cfg.RateLimits["ai"]; !ok {
		cfg.RateLimits["ai"] = RateLimitConfig{Rate: 0.5, Burst: 2, MaxWaitMs: 5000}
	}
	if _, ok := cfg.RateLimits["websearch"]; !ok {
		cfg.RateLimits["websearch"] = RateLimitConfig{Rate: 2, Burst: 5, MaxWaitMs: 3000}
	}
	if _, ok := cfg.RateLimits["places"]; !ok {
		cfg.RateLimits["places"] = RateLimitConfig{Rate: 2, Burst: 10, MaxWaitMs: 3000}
	}

	if cfg.Geocoder.BaseURL == "" {
		cfg.Geocoder.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.Geocoder.UserAgent == "" {
		cfg.Geocoder.UserAgent = "business-advisor"
	}
	if cfg.Geocoder.TimeoutMs == 0 {
		cfg.Geocoder.TimeoutMs = 10000
	}

	if cfg.Providers.AI.TimeoutMs == 0 {
		cfg.Providers.AI.TimeoutMs = 60000
	}
	if cfg.Providers.AI.Model == "" {
		cfg.Providers.AI.Model = "gpt-4o-mini"
	}
	if cfg.Providers.AI.MaxTokens == 0 {
		cfg.Providers.AI.MaxTokens = 2000
	}
	if cfg.Providers.WebSearch.TimeoutMs == 0 {
		cfg.Providers.WebSearch.TimeoutMs = 10000
	}
	if cfg.Providers.WebSearch.MaxResults == 0 {
		cfg.Providers.WebSearch.MaxResults = 5
	}
	if cfg.Providers.WebSearch.MinRelevance == 0 {
		cfg.Providers.WebSearch.MinRelevance = 0.5
	}
	if cfg.Providers.Places.BaseURL == "" {
		cfg.Providers.Places.BaseURL = "https://serpapi.com"
	}
	if cfg.Providers.Places.TimeoutMs == 0 {
		cfg.Providers.Places.TimeoutMs = 15000
	}
	if cfg.Providers.Places.MaxResults == 0 {
		cfg.Providers.Places.MaxResults = 20
	}
	if cfg.Providers.Property.Table == "" {
		cfg.Providers.Property.Table = "places"
	}
	if cfg.Providers.Property.TimeoutMs == 0 {
		cfg.Providers.Property.TimeoutMs = 5000
	}

	if cfg.Dedup.NameSimilarity == 0 {
		cfg.Dedup.NameSimilarity = 0.82
	}
	if cfg.Dedup.CoordinateToleranceMeters == 0 {
		cfg.Dedup.CoordinateToleranceMeters = 30
	}
	if len(cfg.Dedup.ProviderPriority) == 0 {
		cfg.Dedup.ProviderPriority = []string{"places", "property", "websearch", "ai"}
	}
	if len(cfg.Dedup.CoordinateExempt) == 0 {
		cfg.Dedup.CoordinateExempt = []string{"property"}
	}
	if len(cfg.Dedup.ChainBrands) == 0 {
		cfg.Dedup.ChainBrands = []string{
			"starbucks", "cafe coffee day", "barista", "chaayos",
			"costa coffee", "mcdonald's", "domino's pizza", "subway",
			"kfc", "pizza hut", "burger king", "haldiram's",
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9104"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.Dedup.NameSimilarity < 0 || cfg.Dedup.NameSimilarity > 1 {
		return fmt.Errorf("dedup.name_similarity must be within [0,1]")
	}
	for id, rl := range cfg.RateLimits {
		if rl.Rate < 0 || rl.Burst < 0 {
			return fmt.Errorf("rate_limits.%s must be non-negative", id)
		}
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// ProviderTTL returns the cache TTL for a provider id, falling back to the
// default.
func (c CacheConfig) ProviderTTL(providerID string) time.Duration {
	if ms, ok := c.ProviderTTLMs[providerID]; ok && ms > 0 {
		return GetDuration(ms)
	}
	return GetDuration(c.DefaultTTLMs)
}
