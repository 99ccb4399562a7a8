package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	Storage              string        `mapstructure:"STORAGE"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema             string        `mapstructure:"DB_SCHEMA"`
	MigrationsDir        string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	AuthSigningKey       string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer           string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience         string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	RecomputeConcurrency int           `mapstructure:"RECOMPUTE_CONCURRENCY"`
	RecomputeLockTTL     time.Duration `mapstructure:"RECOMPUTE_LOCK_TTL"`
	ConsentPendingTTL    time.Duration `mapstructure:"CONSENT_PENDING_TTL"`
}

var keys = []string{
	"PORT",
	"ENV",
	"LOG_LEVEL",
	"STORAGE",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"DB_SCHEMA",
	"MIGRATIONS_DIR",
	"REDIS_URL",
	"AUTH_SIGNING_KEY",
	"AUTH_ISSUER",
	"AUTH_AUDIENCE",
	"CORS_ORIGINS",
	"RECOMPUTE_CONCURRENCY",
	"RECOMPUTE_LOCK_TTL",
	"CONSENT_PENDING_TTL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE", StoragePostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("AUTH_ISSUER", "kinetic")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RECOMPUTE_CONCURRENCY", 4)
	v.SetDefault("RECOMPUTE_LOCK_TTL", "30s")
	v.SetDefault("CONSENT_PENDING_TTL", "336h")

	// Unmarshal only sees keys viper already knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" && !cfg.UsesMemory() {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Warn().Msg("running in development mode, every request is treated as admin")
	}

	return cfg, nil
}

const (
	StoragePostgres = "postgres"
	// StorageMemory keeps everything in process and loses it on restart.
	// Development only.
	StorageMemory = "memory"
)

func (c *Config) UsesMemory() bool {
	return c.Storage == StorageMemory
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate refuses configurations that would serve patient data without
// real token verification.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}
	switch c.Storage {
	case StoragePostgres, "":
	case StorageMemory:
		if !c.IsDev() {
			return fmt.Errorf("STORAGE=%s is only allowed when ENV=development", StorageMemory)
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	if c.RecomputeConcurrency < 1 {
		return fmt.Errorf("RECOMPUTE_CONCURRENCY must be positive, got %d", c.RecomputeConcurrency)
	}
	if c.ConsentPendingTTL <= 0 {
		return fmt.Errorf("CONSENT_PENDING_TTL must be positive")
	}
	return nil
}
