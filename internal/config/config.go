package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	Bootstrap   BootstrapUserConfig
	Environment string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	AutoMigrate    bool
	MigrationsPath string
}

type AuthConfig struct {
	JWTSecret     string
	JWTIssuer     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type RateLimitConfig struct {
	PublicPerMinute        int
	AuthenticatedPerMinute int
	LoginPer15Minutes      int
	TrustedProxyCIDRs      []string
}

type CORSConfig struct {
	AllowAllOrigins bool
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

// BootstrapUserConfig provisions an initial account on startup when both
// username and password are set.
type BootstrapUserConfig struct {
	Username string
	Password string
	Email    string
}

// Load reads configuration from the process environment. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment take precedence over it.
func Load() (Config, error) {
	cfg, err := loadEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			AutoMigrate:    getEnvBool("MIGRATIONS_AUTO", false),
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			JWTIssuer:     getEnv("JWT_ISSUER", "gatherings"),
			AccessExpiry:  time.Duration(getEnvInt("JWT_ACCESS_EXPIRY_MINUTES", 60)) * time.Minute,
			RefreshExpiry: time.Duration(getEnvInt("JWT_REFRESH_EXPIRY_HOURS", 24)) * time.Hour,
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:        getEnvInt("RATE_LIMIT_PUBLIC", 60),
			AuthenticatedPerMinute: getEnvInt("RATE_LIMIT_AUTHENTICATED", 300),
			LoginPer15Minutes:      getEnvInt("RATE_LIMIT_LOGIN", 5),
			TrustedProxyCIDRs:      splitList(getEnv("TRUSTED_PROXY_CIDRS", "")),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "none"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "gatherings"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Bootstrap: BootstrapUserConfig{
			Username: getEnv("BOOTSTRAP_USERNAME", ""),
			Password: getEnv("BOOTSTRAP_PASSWORD", ""),
			Email:    getEnv("BOOTSTRAP_EMAIL", ""),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	cfg.CORS = loadCORS(cfg.Environment)
	return cfg, nil
}

// LoadFile loads the environment configuration and then applies the values
// set in the YAML file at path on top of it.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Load()
	}
	cfg, err := loadEnv()
	if err != nil {
		return Config{}, err
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return Config{}, fmt.Errorf("read config file: %w", readErr)
	}
	var overlay fileConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	overlay.apply(&cfg)
	cfg.CORS.AllowAllOrigins = cfg.Environment == "development" || cfg.Environment == "test"

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Environment == "production" && !c.CORS.AllowAllOrigins && len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS is required in production")
	}
	return nil
}

// IsDevelopment reports whether error details may be exposed to clients.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

func loadCORS(env string) CORSConfig {
	origins := splitList(getEnv("CORS_ALLOWED_ORIGINS", ""))
	if env == "development" || env == "test" {
		return CORSConfig{AllowAllOrigins: true, AllowedOrigins: origins}
	}
	return CORSConfig{AllowedOrigins: origins}
}

// fileConfig mirrors the subset of settings that may be set from a YAML file.
type fileConfig struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`
	Database struct {
		URL            string `yaml:"url"`
		MaxConnections int    `yaml:"max_connections"`
		AutoMigrate    *bool  `yaml:"auto_migrate"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret           string `yaml:"jwt_secret"`
		JWTIssuer           string `yaml:"jwt_issuer"`
		AccessExpiryMinutes int    `yaml:"access_expiry_minutes"`
		RefreshExpiryHours  int    `yaml:"refresh_expiry_hours"`
	} `yaml:"auth"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	Tracing struct {
		Enabled  *bool  `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
		Endpoint string `yaml:"otlp_endpoint"`
	} `yaml:"tracing"`
}

func (f fileConfig) apply(cfg *Config) {
	setString(&cfg.Environment, f.Environment)
	setString(&cfg.Server.Host, f.Server.Host)
	setInt(&cfg.Server.Port, f.Server.Port)
	setString(&cfg.Server.BaseURL, f.Server.BaseURL)
	setString(&cfg.Database.URL, f.Database.URL)
	setInt(&cfg.Database.MaxConnections, f.Database.MaxConnections)
	if f.Database.AutoMigrate != nil {
		cfg.Database.AutoMigrate = *f.Database.AutoMigrate
	}
	setString(&cfg.Auth.JWTSecret, f.Auth.JWTSecret)
	setString(&cfg.Auth.JWTIssuer, f.Auth.JWTIssuer)
	if f.Auth.AccessExpiryMinutes > 0 {
		cfg.Auth.AccessExpiry = time.Duration(f.Auth.AccessExpiryMinutes) * time.Minute
	}
	if f.Auth.RefreshExpiryHours > 0 {
		cfg.Auth.RefreshExpiry = time.Duration(f.Auth.RefreshExpiryHours) * time.Hour
	}
	setString(&cfg.Logging.Level, f.Logging.Level)
	setString(&cfg.Logging.Format, f.Logging.Format)
	if len(f.CORS.AllowedOrigins) > 0 {
		cfg.CORS.AllowedOrigins = f.CORS.AllowedOrigins
	}
	if f.Tracing.Enabled != nil {
		cfg.Tracing.Enabled = *f.Tracing.Enabled
	}
	setString(&cfg.Tracing.Exporter, f.Tracing.Exporter)
	setString(&cfg.Tracing.OTLPEndpoint, f.Tracing.Endpoint)
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
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
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
