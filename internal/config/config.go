package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the PromoPulse application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Geo        GeoConfig
	Report     ReportConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ClickHouseConfig configures the analytical redemption store.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	User     string
	Password string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled     bool
	IngestRPS   float64
	IngestBurst int
	ReportRPS   float64
	ReportBurst int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures GeoIP enrichment of redemptions and touchpoints.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
	CacheSize    int
	CacheTTL     time.Duration
}

// ReportConfig holds report generation settings.
type ReportConfig struct {
	// GenerateTimeout aborts the whole aggregation; a timed-out report is
	// an error, never silent partial data.
	GenerateTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("PROMOPULSE_HTTP_ADDR", ":8080"),
			Env:             getEnv("PROMOPULSE_ENV", "development"),
			ShutdownTimeout: getDurationEnv("PROMOPULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PROMOPULSE_DB_HOST", "localhost"),
			Port:     getIntEnv("PROMOPULSE_DB_PORT", 5432),
			User:     getEnv("PROMOPULSE_DB_USER", "promopulse"),
			Password: getEnv("PROMOPULSE_DB_PASSWORD", "promopulse_secret"),
			DBName:   getEnv("PROMOPULSE_DB_NAME", "promopulse"),
			SSLMode:  getEnv("PROMOPULSE_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("PROMOPULSE_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("PROMOPULSE_DB_MIN_CONNS", 5),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getBoolEnv("PROMOPULSE_CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("PROMOPULSE_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("PROMOPULSE_CLICKHOUSE_DB", "promopulse"),
			User:     getEnv("PROMOPULSE_CLICKHOUSE_USER", "default"),
			Password: getEnv("PROMOPULSE_CLICKHOUSE_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("PROMOPULSE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("PROMOPULSE_REDIS_PASSWORD", ""),
			DB:       getIntEnv("PROMOPULSE_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("PROMOPULSE_AUTH_ENABLED", true),
			MasterKey: getEnv("PROMOPULSE_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("PROMOPULSE_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getBoolEnv("PROMOPULSE_RATE_LIMIT_ENABLED", true),
			IngestRPS:   getFloatEnv("PROMOPULSE_RATE_LIMIT_INGEST_RPS", 1000),
			IngestBurst: getIntEnv("PROMOPULSE_RATE_LIMIT_INGEST_BURST", 100),
			ReportRPS:   getFloatEnv("PROMOPULSE_RATE_LIMIT_REPORT_RPS", 50),
			ReportBurst: getIntEnv("PROMOPULSE_RATE_LIMIT_REPORT_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("PROMOPULSE_LOG_LEVEL", "info"),
			Format: getEnv("PROMOPULSE_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("PROMOPULSE_METRICS_ENABLED", true),
			Path:    getEnv("PROMOPULSE_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("PROMOPULSE_GEO_ENABLED", false),
			DatabasePath: getEnv("PROMOPULSE_GEO_DB_PATH", "/app/data/GeoLite2-City.mmdb"),
			CacheSize:    getIntEnv("PROMOPULSE_GEO_CACHE_SIZE", 10000),
			CacheTTL:     getDurationEnv("PROMOPULSE_GEO_CACHE_TTL", 1*time.Hour),
		},
		Report: ReportConfig{
			GenerateTimeout: getDurationEnv("PROMOPULSE_REPORT_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("PROMOPULSE_API_KEY_MASTER is required when auth is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
