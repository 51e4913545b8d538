package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Handoff  HandoffConfig
	Provider ProviderConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token parameters.
type AuthConfig struct {
	SessionTokenTTLMinutes int
	UserDataSecret         string
}

// HandoffConfig tunes orchestration behavior.
type HandoffConfig struct {
	IdleMessageTimeoutMS      int
	KeepAliveSeconds          int
	PollIntervalMS            int
	StandardRequestsPerMinute int
	BurstRequestsPerSecond    int
}

// ProviderConfig is the static fallback provider configuration used when a
// tenant has no settings-service entry.
type ProviderConfig struct {
	Type                    string
	APIKey                  string
	APISecret               string
	AppID                   string
	Subdomain               string
	OrgID                   string
	ButtonID                string
	DeploymentID            string
	ChatHostURL             string
	SigningSecret           string
	AllowAnonymousHandoff   bool
	SurveyLink              string
	EnableAvailabilityCheck bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-handoff-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			SessionTokenTTLMinutes: getEnvAsInt("AUTH_SESSION_TOKEN_TTL_MINUTES", 60),
			UserDataSecret:         os.Getenv("AUTH_USER_DATA_SECRET"),
		},
		Handoff: HandoffConfig{
			IdleMessageTimeoutMS:      getEnvAsInt("HANDOFF_IDLE_MESSAGE_TIMEOUT_MS", 30000),
			KeepAliveSeconds:          getEnvAsInt("HANDOFF_SSE_KEEPALIVE_SECONDS", 25),
			PollIntervalMS:            getEnvAsInt("HANDOFF_POLL_INTERVAL_MS", 1000),
			StandardRequestsPerMinute: getEnvAsInt("HANDOFF_STANDARD_REQUESTS_PER_MINUTE", 120),
			BurstRequestsPerSecond:    getEnvAsInt("HANDOFF_BURST_REQUESTS_PER_SECOND", 5),
		},
		Provider: ProviderConfig{
			Type:                    os.Getenv("PROVIDER_TYPE"),
			APIKey:                  os.Getenv("PROVIDER_API_KEY"),
			APISecret:               os.Getenv("PROVIDER_API_SECRET"),
			AppID:                   os.Getenv("PROVIDER_APP_ID"),
			Subdomain:               os.Getenv("PROVIDER_SUBDOMAIN"),
			OrgID:                   os.Getenv("PROVIDER_ORG_ID"),
			ButtonID:                os.Getenv("PROVIDER_BUTTON_ID"),
			DeploymentID:            os.Getenv("PROVIDER_DEPLOYMENT_ID"),
			ChatHostURL:             os.Getenv("PROVIDER_CHAT_HOST_URL"),
			SigningSecret:           os.Getenv("PROVIDER_SIGNING_SECRET"),
			AllowAnonymousHandoff:   getEnvAsBool("PROVIDER_ALLOW_ANONYMOUS_HANDOFF", false),
			SurveyLink:              os.Getenv("PROVIDER_SURVEY_LINK"),
			EnableAvailabilityCheck: getEnvAsBool("PROVIDER_ENABLE_AVAILABILITY_CHECK", false),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IdleTimeout returns the idle-monitor threshold.
func (h HandoffConfig) IdleTimeout() time.Duration {
	if h.IdleMessageTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(h.IdleMessageTimeoutMS) * time.Millisecond
}

// KeepAlive returns the SSE keep-alive interval.
func (h HandoffConfig) KeepAlive() time.Duration {
	return time.Duration(h.KeepAliveSeconds) * time.Second
}

// PollInterval returns the polling-bridge interval.
func (h HandoffConfig) PollInterval() time.Duration {
	return time.Duration(h.PollIntervalMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
