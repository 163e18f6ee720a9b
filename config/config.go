package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aadityasp/agreegraph/models"
)

// Config holds all configuration for the pipeline system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "console" or "json"
}

func (g GeneralConfig) Validate() error {
	switch strings.ToLower(g.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("general.log_format must be console or json, got %q", g.LogFormat)
	}
	switch strings.ToLower(g.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("general.log_level must be debug, info, warn or error, got %q", g.LogLevel)
	}
	return nil
}

// DebugLogging reports whether verbose output is requested, either through
// general.debug or a debug log level.
func (g GeneralConfig) DebugLogging() bool {
	return g.Debug || strings.EqualFold(g.LogLevel, "debug")
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the Groq provider configuration. Per-stage models and
// temperatures follow the upstream defaults: lower temperature for extraction,
// a small fast model for judgment and relationship inference.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	EntityModel string        `mapstructure:"entity_model"`
	GraphModel  string        `mapstructure:"graph_model"`
	JudgeModel  string        `mapstructure:"judge_model"`
	EntityTemp  float64       `mapstructure:"entity_temperature"`
	GraphTemp   float64       `mapstructure:"graph_temperature"`
	JudgeTemp   float64       `mapstructure:"judge_temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// Validate reports the missing-credential configuration error. This is the
// only run-aborting error class: graph construction and judgment cannot
// function at all without the key, so absence is fatal at startup rather than
// a per-call recoverable failure.
func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return models.ErrMissingAPIKey
	}
	return nil
}

// CacheConfig controls the cache layer shared by every stage.
type CacheConfig struct {
	Enabled           bool        `mapstructure:"enabled"`
	Backend           string      `mapstructure:"backend"` // "memory" or "redis"
	MaxSize           int         `mapstructure:"max_size"`
	EntityTTL         int         `mapstructure:"entity_cache_ttl"`          // seconds
	WebFetchTTL       int         `mapstructure:"web_fetch_cache_ttl"`       // seconds
	KnowledgeGraphTTL int         `mapstructure:"knowledge_graph_cache_ttl"` // seconds
	Redis             RedisConfig `mapstructure:"redis"`
}

func (c CacheConfig) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "", "memory":
	case "redis":
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Backend)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("cache.max_size cannot be negative")
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("cache.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("cache.redis.port required")
	}
	return nil
}

// FetchConfig contains the Wikipedia/news lookup settings
type FetchConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxNewsArticles int           `mapstructure:"max_news_articles"`
}

// AgentsConfig contains stage-level limits. GenericTypes lists entity type
// labels considered placeholders: during merge a generic type yields to any
// specific one, otherwise the first-seen type wins.
type AgentsConfig struct {
	MaxEntitiesPerQuery int      `mapstructure:"max_entities_per_query"`
	GenericTypes        []string `mapstructure:"generic_types"`
}

// StorageConfig contains graph store persistence settings
type StorageConfig struct {
	GraphBackend string         `mapstructure:"graph_backend"` // "postgres" or "memory"
	Postgres     PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort < 0 {
		return fmt.Errorf("telemetry.metrics_port cannot be negative")
	}
	return nil
}

// LoadConfig loads config from file and environment (AGREEGRAPH_* variables).
// A missing config file is fine: defaults plus environment are enough to run.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("AGREEGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	// GROQ_API_KEY is the conventional credential variable; prefer the
	// explicit config key when both are set.
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("GROQ_API_KEY")
	}

	if err := config.General.Validate(); err != nil {
		panic(err)
	}
	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	return &config
}

func setDefaults() {
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.log_format", "console")

	viper.SetDefault("server.address", ":10010")

	viper.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("llm.entity_model", "llama-3.3-70b-versatile")
	viper.SetDefault("llm.graph_model", "llama-3.1-8b-instant")
	viper.SetDefault("llm.judge_model", "llama-3.1-8b-instant")
	viper.SetDefault("llm.entity_temperature", 0.2)
	viper.SetDefault("llm.graph_temperature", 0.3)
	viper.SetDefault("llm.judge_temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", 30*time.Second)
	viper.SetDefault("llm.max_retries", 2)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.entity_cache_ttl", 3600)
	viper.SetDefault("cache.web_fetch_cache_ttl", 1800)
	viper.SetDefault("cache.knowledge_graph_cache_ttl", 3600)
	viper.SetDefault("cache.redis.host", "localhost")
	viper.SetDefault("cache.redis.port", "6379")
	viper.SetDefault("cache.redis.timeout", 5*time.Second)

	viper.SetDefault("fetch.user_agent", "agreegraph/1.0 (https://github.com/aadityasp/agreegraph)")
	viper.SetDefault("fetch.timeout", 30*time.Second)
	viper.SetDefault("fetch.max_news_articles", 3)

	viper.SetDefault("agents.max_entities_per_query", 20)
	viper.SetDefault("agents.generic_types", []string{"Thing", "Unknown"})

	viper.SetDefault("storage.graph_backend", "memory")
	viper.SetDefault("storage.postgres.timeout", 5*time.Second)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.metrics_port", 0)
}
