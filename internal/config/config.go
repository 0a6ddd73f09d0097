package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	SignedURLTTL   time.Duration `mapstructure:"SIGNED_URL_TTL"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`

	AssistantAPIKey     string        `mapstructure:"ASSISTANT_API_KEY"`
	AssistantBaseURL    string        `mapstructure:"ASSISTANT_BASE_URL"`
	AssistantModel      string        `mapstructure:"ASSISTANT_MODEL"`
	DocFetchTimeout     time.Duration `mapstructure:"DOC_FETCH_TIMEOUT"`
	DocFetchConcurrency int           `mapstructure:"DOC_FETCH_CONCURRENCY"`

	CalendarBaseURL string `mapstructure:"CALENDAR_BASE_URL"`
	CalendarAPIKey  string `mapstructure:"CALENDAR_API_KEY"`

	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TOKEN_TTL", "30m")
	v.SetDefault("SIGNED_URL_TTL", "15m")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("ASSISTANT_MODEL", "asi1-mini")
	v.SetDefault("DOC_FETCH_TIMEOUT", "5s")
	v.SetDefault("DOC_FETCH_CONCURRENCY", 8)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL")
	v.BindEnv("SIGNED_URL_TTL")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("ASSISTANT_API_KEY")
	v.BindEnv("ASSISTANT_BASE_URL")
	v.BindEnv("ASSISTANT_MODEL")
	v.BindEnv("DOC_FETCH_TIMEOUT")
	v.BindEnv("DOC_FETCH_CONCURRENCY")
	v.BindEnv("CALENDAR_BASE_URL")
	v.BindEnv("CALENDAR_API_KEY")
	v.BindEnv("PUBLIC_BASE_URL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret must be set so tokens cannot be forged, and the assistant API
// key must be present so the triage assistant can answer.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret))
		}
		if c.AssistantAPIKey == "" {
			return fmt.Errorf("ASSISTANT_API_KEY is required when ENV=%q", c.Env)
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.SignedURLTTL <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL must be positive")
	}
	if c.DocFetchConcurrency <= 0 {
		return fmt.Errorf("DOC_FETCH_CONCURRENCY must be positive")
	}
	return nil
}
