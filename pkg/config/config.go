package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the insights engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables override YAML values. Secrets (API
// keys, warehouse password) must only come from environment variables.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// ArtifactsDir is the directory holding the curated context artifacts
	// (lookups.yaml, schema_metadata.yaml, patterns.yaml, syntax.yaml,
	// taxonomy.yaml). Loaded once at startup.
	ArtifactsDir string `yaml:"artifacts_dir" env:"ARTIFACTS_DIR" env-default:"artifacts"`

	Warehouse WarehouseConfig `yaml:"warehouse"`
	LLM       LLMConfig       `yaml:"llm"`
	Cache     CacheConfig     `yaml:"cache"`

	// RepairRetries bounds the LLM-assisted SQL repair loop per question.
	RepairRetries int `yaml:"repair_retries" env:"REPAIR_RETRIES" env-default:"1"`
}

// WarehouseConfig holds connection settings for the analytics warehouse.
type WarehouseConfig struct {
	Host     string `yaml:"host" env:"WAREHOUSE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"WAREHOUSE_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"WAREHOUSE_USER" env-default:"insights_ro"`
	Password string `yaml:"-" env:"WAREHOUSE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"WAREHOUSE_DATABASE" env-default:"insights"`
	SSLMode  string `yaml:"ssl_mode" env:"WAREHOUSE_SSLMODE" env-default:"disable"`

	// RowLimit caps rows returned by any generated query.
	RowLimit int `yaml:"row_limit" env:"WAREHOUSE_ROW_LIMIT" env-default:"500"`
}

// LLMConfig holds provider endpoints and model selection.
type LLMConfig struct {
	// AnthropicAPIKey enables the Anthropic provider for model names
	// without a provider prefix.
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML

	// OpenAIBaseURL and OpenAIAPIKey serve models addressed with the
	// "openai:" prefix. The base URL may point at any OpenAI-compatible
	// endpoint, including a local one.
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	OpenAIAPIKey  string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML

	// DefaultModel answers questions when the caller does not pick one.
	DefaultModel string `yaml:"default_model" env:"LLM_DEFAULT_MODEL" env-default:"claude-sonnet-4-20250514"`

	// InitModel pre-generates the common-question SQL library at startup.
	// A small fast model is fine here.
	InitModel string `yaml:"init_model" env:"LLM_INIT_MODEL" env-default:"claude-haiku-4-5-20251001"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	// ResponseTTLSeconds bounds the Tier-0 full response cache.
	ResponseTTLSeconds int `yaml:"response_ttl_seconds" env:"CACHE_RESPONSE_TTL_SECONDS" env-default:"1800"`

	// Redis is optional; when Host is empty the response cache is
	// an in-process map.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds optional Redis settings for the response cache.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Load reads configuration from path with environment variable overrides.
// If the file does not exist, configuration comes from environment
// variables and defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read config from env: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RepairRetries < 0 {
		return fmt.Errorf("repair_retries must be >= 0, got %d", c.RepairRetries)
	}
	if c.Warehouse.RowLimit <= 0 {
		return fmt.Errorf("warehouse row_limit must be > 0, got %d", c.Warehouse.RowLimit)
	}
	if c.Cache.ResponseTTLSeconds <= 0 {
		return fmt.Errorf("cache response_ttl_seconds must be > 0, got %d", c.Cache.ResponseTTLSeconds)
	}
	return nil
}

// ArtifactPath returns the path of a named artifact file under ArtifactsDir.
func (c *Config) ArtifactPath(name string) string {
	return filepath.Join(c.ArtifactsDir, name)
}

// ConnectionString returns a PostgreSQL-style connection string for the
// warehouse.
func (w *WarehouseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		w.Host, w.Port, w.User, w.Password, w.Database, w.SSLMode,
	)
}
