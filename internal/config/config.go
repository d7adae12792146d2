package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	CatalogStatic       = "static"
	CatalogPostgres     = "postgres"
	CatalogMovieService = "movie-service"
)

type Config struct {
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Catalog  CatalogConfig
	Port     string
	LogLevel slog.Level

	StoreBackend          string
	MaxMovieCount         int
	SessionTTL            time.Duration
	HistoryResyncInterval time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
}

type DBConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLRootCert string
}

func (d DBConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
	if d.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", d.SSLRootCert)
	}
	return dsn
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured. REDIS_ADDR=none
// turns Redis off.
func (r RedisConfig) Enabled() bool {
	return r.Addr != "" && r.Addr != "none"
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type CatalogConfig struct {
	Source               string
	MovieServiceURL      string
	Pages                int
	CacheTTL             time.Duration
	BreakerFailures      uint32
	BreakerTimeout       time.Duration
	MainstreamPopularity float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "recommender"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SSLRootCert: getEnv("DB_SSLROOTCERT", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 3),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", "movie-discovery"),
		},
		Catalog: CatalogConfig{
			Source:               strings.ToLower(getEnv("CATALOG_SOURCE", CatalogStatic)),
			MovieServiceURL:      getEnv("MOVIE_SERVICE_URL", "http://localhost:8081"),
			Pages:                getInt("CATALOG_PAGES", 5),
			CacheTTL:             getDuration("CATALOG_CACHE_TTL", 10*time.Minute),
			BreakerFailures:      uint32(getInt("CATALOG_BREAKER_FAILURES", 5)),
			BreakerTimeout:       getDuration("CATALOG_BREAKER_TIMEOUT", 30*time.Second),
			MainstreamPopularity: getFloat("CATALOG_MAINSTREAM_POPULARITY", 100),
		},
		Port:     getEnv("SERVER_PORT", "8084"),
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),

		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		MaxMovieCount:         getInt("MAX_MOVIE_COUNT", 20),
		SessionTTL:            getDuration("SESSION_TTL", 30*time.Minute),
		HistoryResyncInterval: getDuration("HISTORY_RESYNC_INTERVAL", 30*time.Second),

		RateLimitMax:    getInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: time.Duration(getInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.MaxMovieCount < 1 {
		errs = append(errs, fmt.Errorf("MAX_MOVIE_COUNT must be at least 1, got %d", c.MaxMovieCount))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	switch c.StoreBackend {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendMemory, c.StoreBackend))
	}

	switch c.Catalog.Source {
	case CatalogStatic, CatalogPostgres, CatalogMovieService:
	default:
		errs = append(errs, fmt.Errorf("CATALOG_SOURCE must be one of %s, %s, %s, got %q",
			CatalogStatic, CatalogPostgres, CatalogMovieService, c.Catalog.Source))
	}

	return errors.Join(errs...)
}

// NeedsPostgres reports whether any configured component reads the database.
func (c *Config) NeedsPostgres() bool {
	return c.StoreBackend == StoreBackendPostgres || c.Catalog.Source == CatalogPostgres
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

// getDuration accepts Go durations ("90s", "5m") or a plain number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
