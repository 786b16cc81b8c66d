package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig                  `mapstructure:"app"`
	Database   DatabaseConfig             `mapstructure:"database"`
	Cache      CacheConfig                `mapstructure:"cache"`
	RateLimits map[string]RateLimitConfig `mapstructure:"rate_limits"`
	Geocoder   GeocoderConfig             `mapstructure:"geocoder"`
	Providers  ProvidersConfig            `mapstructure:"providers"`
	Categories map[string][]string        `mapstructure:"categories"`
	Dedup      DedupConfig                `mapstructure:"dedup"`
	Logging    LoggingConfig              `mapstructure:"logging"`
	Metrics    MetricsConfig              `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// DeadlineMs bounds a full analyze run.
	DeadlineMs int `mapstructure:"deadline_ms"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig tunes the TTL cache shared by all providers.
type CacheConfig struct {
	// DefaultTTLMs applies to providers without an explicit entry.
	DefaultTTLMs int `mapstructure:"default_ttl_ms"`
	// ProviderTTLMs overrides TTL per provider id.
	ProviderTTLMs map[string]int `mapstructure:"provider_ttl_ms"`
	KeyPrefix     string         `mapstructure:"key_prefix"`
}

// RateLimitConfig is one provider's token bucket. Rate is tokens per second;
// a zero rate means the provider is not gated (local datasets).
type RateLimitConfig struct {
	Rate      float64 `mapstructure:"rate"`
	Burst     int     `mapstructure:"burst"`
	MaxWaitMs int     `mapstructure:"max_wait_ms"`
}

type GeocoderConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

// --- Provider Configuration Sections ---

type ProvidersConfig struct {
	AI        AIProviderConfig       `mapstructure:"ai"`
	WebSearch WebSearchConfig        `mapstructure:"web_search"`
	Places    PlacesProviderConfig   `mapstructure:"places"`
	Property  PropertyProviderConfig `mapstructure:"property"`
}

type AIProviderConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type WebSearchConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	EngineID   string `mapstructure:"engine_id"`
	TimeoutMs  int    `mapstructure:"timeout_ms"`
	MaxResults int    `mapstructure:"max_results"`
	// MinRelevance drops low-scoring results before they become citations.
	MinRelevance float64 `mapstructure:"min_relevance"`
}

type PlacesProviderConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TimeoutMs  int    `mapstructure:"timeout_ms"`
	MaxResults int    `mapstructure:"max_results"`
	// AmenityTypes enriches the lookup with surrounding amenities
	// (hospitals, schools...) when non-empty.
	AmenityTypes []string `mapstructure:"amenity_types"`
}

type PropertyProviderConfig struct {
	Table     string `mapstructure:"table"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

// DedupConfig holds the evidence merge policy. Thresholds are deliberately
// configuration, not constants.
type DedupConfig struct {
	NameSimilarity            float64  `mapstructure:"name_similarity"`
	CoordinateToleranceMeters float64  `mapstructure:"coordinate_tolerance_meters"`
	ProviderPriority          []string `mapstructure:"provider_priority"`
	// CoordinateExempt lists providers whose coordinate-less entities pass
	// the radius filter; entities carrying a point are filtered like any
	// other.
	CoordinateExempt []string `mapstructure:"coordinate_exempt"`
	// ChainBrands are known franchise names used to tag merged entities as
	// chain branches rather than independents.
	ChainBrands []string `mapstructure:"chain_brands"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
