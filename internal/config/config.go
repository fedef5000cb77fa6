package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience       string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	SweepSchedule      string        `mapstructure:"SWEEP_SCHEDULE"`
	SweepBatchSize     int           `mapstructure:"SWEEP_BATCH_SIZE"`
	ExpiryGrace        time.Duration `mapstructure:"EXPIRY_GRACE"`
	CheckInOpensBefore time.Duration `mapstructure:"CHECKIN_OPENS_BEFORE"`
	CheckInClosesAfter time.Duration `mapstructure:"CHECKIN_CLOSES_AFTER"`
	MeetingBaseURL     string        `mapstructure:"MEETING_BASE_URL"`
	SurveySessionTTL   time.Duration `mapstructure:"SURVEY_SESSION_TTL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("SWEEP_SCHEDULE", "@every 5m")
	v.SetDefault("SWEEP_BATCH_SIZE", 50)
	v.SetDefault("EXPIRY_GRACE", "15m")
	v.SetDefault("CHECKIN_OPENS_BEFORE", "15m")
	v.SetDefault("CHECKIN_CLOSES_AFTER", "60m")
	v.SetDefault("MEETING_BASE_URL", "https://meet.jit.si")
	v.SetDefault("SURVEY_SESSION_TTL", "2h")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
		"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY", "CORS_ORIGINS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SWEEP_SCHEDULE", "SWEEP_BATCH_SIZE",
		"EXPIRY_GRACE", "CHECKIN_OPENS_BEFORE", "CHECKIN_CLOSES_AFTER",
		"MEETING_BASE_URL", "SURVEY_SESSION_TTL",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode, unauthenticated requests get admin access")
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
// a signing key or issuer must be configured, and every engine duration must
// be positive.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_ISSUER must be set when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}
	if c.ExpiryGrace <= 0 {
		return fmt.Errorf("EXPIRY_GRACE must be positive")
	}
	if c.CheckInOpensBefore < 0 || c.CheckInClosesAfter <= 0 {
		return fmt.Errorf("CHECKIN_OPENS_BEFORE must be >= 0 and CHECKIN_CLOSES_AFTER > 0")
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be positive, got %d", c.SweepBatchSize)
	}
	if c.SurveySessionTTL <= 0 {
		return fmt.Errorf("SURVEY_SESSION_TTL must be positive")
	}
	return nil
}
