package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Log            LogConfig            `mapstructure:"log"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Postgres       PostgresConfig       `mapstructure:"postgres"`
	NLP            NLPConfig            `mapstructure:"nlp"`
	Graph          GraphConfig          `mapstructure:"graph"`
	Extraction     ExtractionConfig     `mapstructure:"extraction"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
	Alert          AlertConfig          `mapstructure:"alert"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
	// SQL enables the Postgres error log table, using postgres.dsn.
	SQL bool `mapstructure:"sql"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"` // gin mode: debug, release, test
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig holds graph database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j, memory
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// PostgresConfig holds the notes database configuration. An empty DSN
// disables the notes API.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// NLPConfig holds NLP configuration
type NLPConfig struct {
	// Models maps a usage name to a model. Only "default" is used for extraction.
	Models map[string]NLPModelConfig `mapstructure:"models"`
}

// NLPModelConfig holds configuration for a specific model
type NLPModelConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, none
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GraphConfig holds materialization settings
type GraphConfig struct {
	MatchThreshold float64         `mapstructure:"match_threshold"`
	NeighborLimit  int             `mapstructure:"neighbor_limit"`
	Evolution      EvolutionConfig `mapstructure:"evolution"`
}

// EvolutionConfig holds the promotion policy
type EvolutionConfig struct {
	PromoteLevel int `mapstructure:"promote_level"`
	MinTotal     int `mapstructure:"min_total"`
	MinOutgoing  int `mapstructure:"min_outgoing"`
	Concurrency  int `mapstructure:"concurrency"`
}

// ExtractionConfig holds settings for turning text into extractions
type ExtractionConfig struct {
	MaxKeywords     int           `mapstructure:"max_keywords"`
	DefaultTag      string        `mapstructure:"default_tag"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	InjectionFilter bool          `mapstructure:"injection_filter"`
}

// CacheConfig holds the extraction cache location. An empty path keeps the
// cache in memory.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	switch c.Database.Driver {
	case "neo4j", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be neo4j or memory, got %q", c.Database.Driver))
	}
	if c.Graph.MatchThreshold <= 0 || c.Graph.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("graph.match_threshold must be in (0, 1], got %v", c.Graph.MatchThreshold))
	}
	ev := c.Graph.Evolution
	if ev.PromoteLevel < 0 || ev.MinTotal < 0 || ev.MinOutgoing < 0 {
		errs = append(errs, errors.New("graph.evolution values must not be negative"))
	}
	if c.Extraction.MaxKeywords <= 0 {
		errs = append(errs, fmt.Errorf("extraction.max_keywords must be positive, got %d", c.Extraction.MaxKeywords))
	}
	return errors.Join(errs...)
}

// Address returns host:port for the HTTP server.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.request_timeout", 60*time.Second)

	viper.SetDefault("database.driver", "memory")
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "neo4j")

	viper.SetDefault("postgres.dsn", "")
	viper.SetDefault("postgres.max_open_conns", 10)
	viper.SetDefault("postgres.max_idle_conns", 5)
	viper.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)

	viper.SetDefault("nlp.models.default.provider", "none")
	viper.SetDefault("nlp.models.default.model", "gpt-4o-mini")
	viper.SetDefault("nlp.models.default.temperature", 0.2)
	viper.SetDefault("nlp.models.default.max_tokens", 2048)
	viper.SetDefault("nlp.models.default.max_retries", 3)
	viper.SetDefault("nlp.models.default.timeout", 60*time.Second)

	viper.SetDefault("graph.match_threshold", 0.9)
	viper.SetDefault("graph.neighbor_limit", 50)
	viper.SetDefault("graph.evolution.promote_level", 1)
	viper.SetDefault("graph.evolution.min_total", 5)
	viper.SetDefault("graph.evolution.min_outgoing", 3)
	viper.SetDefault("graph.evolution.concurrency", 4)

	viper.SetDefault("extraction.max_keywords", 12)
	viper.SetDefault("extraction.default_tag", "общее")
	viper.SetDefault("extraction.cache_ttl", 24*time.Hour)
	viper.SetDefault("extraction.injection_filter", true)

	viper.SetDefault("cache.enabled", true)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", filepath.Join(home, ".notegraph", "telemetry"))
		viper.SetDefault("cache.path", filepath.Join(home, ".notegraph", "cache"))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if config.NLP.Models == nil {
		config.NLP.Models = make(map[string]NLPModelConfig)
	}
	defaultModel := config.NLP.Models["default"]
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		defaultModel.APIKey = apiKey
		if defaultModel.Provider == "" || defaultModel.Provider == "none" {
			defaultModel.Provider = "openai"
		}
	}
	config.NLP.Models["default"] = defaultModel

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = dbDriver
	}

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		config.Postgres.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
	if path := os.Getenv("NOTEGRAPH_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	}
}
