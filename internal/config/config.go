package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	DatabaseType   string
	DatabaseURL    string
	DatabasePath   string
	MigrationsPath string

	// Bearer tokens are issued by the external identity provider
	JWTSecret string
	JWTIssuer string

	// Catalog cache is disabled when RedisURL is empty
	RedisURL        string
	CatalogCacheTTL time.Duration

	AllowPassedRetake  bool
	StaleAttemptAfter  time.Duration
	RateLimitPerMinute int
}

// Load reads configuration from environment variables (and an optional app.env
// file in the working directory) with sensible defaults
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_TYPE", "sqlite")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_PATH", "./trainingtracker.db")
	v.SetDefault("MIGRATIONS_PATH", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CATALOG_CACHE_TTL", 10*time.Minute)
	v.SetDefault("ALLOW_PASSED_RETAKE", true)
	v.SetDefault("STALE_ATTEMPT_AFTER", 24*time.Hour)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return &Config{
		ServerPort:         v.GetString("PORT"),
		DatabaseType:       v.GetString("DATABASE_TYPE"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		DatabasePath:       v.GetString("DB_PATH"),
		MigrationsPath:     v.GetString("MIGRATIONS_PATH"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTIssuer:          v.GetString("JWT_ISSUER"),
		RedisURL:           v.GetString("REDIS_URL"),
		CatalogCacheTTL:    v.GetDuration("CATALOG_CACHE_TTL"),
		AllowPassedRetake:  v.GetBool("ALLOW_PASSED_RETAKE"),
		StaleAttemptAfter:  v.GetDuration("STALE_ATTEMPT_AFTER"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
	}, nil
}
