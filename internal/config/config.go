// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	APIBaseURL   string `mapstructure:"API_BASE_URL"`
	APITimeoutMS int    `mapstructure:"API_TIMEOUT_MS"`
	GeocoderURL  string `mapstructure:"GEOCODER_URL"`
	GeoTimeoutMS int    `mapstructure:"GEO_TIMEOUT_MS"`
	GeoMaxAgeMS  int    `mapstructure:"GEO_MAX_AGE_MS"`
	GuardGraceMS int    `mapstructure:"GUARD_GRACE_MS"`
	FeedPageSize int    `mapstructure:"FEED_PAGE_SIZE"`
	RedisURL     string `mapstructure:"REDIS_URL"`
	Lang         string `mapstructure:"LANG"`
	Env          string `mapstructure:"APP_ENV"`

	// Stub backend settings, used by cmd/stubserver only.
	StubPort      string `mapstructure:"STUB_PORT"`
	StubDBPath    string `mapstructure:"STUB_DB_PATH"`
	StubJWTSecret string `mapstructure:"STUB_JWT_SECRET"`
	StubSeedPosts int    `mapstructure:"STUB_SEED_POSTS"`
}

// APITimeout returns the remote API timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutMS) * time.Millisecond
}

// GeoTimeout returns the geolocation resolution timeout as a duration.
func (c *Config) GeoTimeout() time.Duration {
	return time.Duration(c.GeoTimeoutMS) * time.Millisecond
}

// GeoMaxAge returns the maximum accepted age of a cached platform position.
func (c *Config) GeoMaxAge() time.Duration {
	return time.Duration(c.GeoMaxAgeMS) * time.Millisecond
}

// GuardGrace returns the route-guard hydration grace window as a duration.
func (c *Config) GuardGrace() time.Duration {
	return time.Duration(c.GuardGraceMS) * time.Millisecond
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional; environment variables and defaults are
	// enough for a working client.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("API_BASE_URL", "http://localhost:8418")
	viper.SetDefault("API_TIMEOUT_MS", 10000)
	viper.SetDefault("GEOCODER_URL", "http://localhost:8418/api/reverseGeocode")
	viper.SetDefault("GEO_TIMEOUT_MS", 5000)
	viper.SetDefault("GEO_MAX_AGE_MS", 60000)
	viper.SetDefault("GUARD_GRACE_MS", 150)
	viper.SetDefault("FEED_PAGE_SIZE", 10)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("LANG", "en")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("STUB_PORT", "8418")
	viper.SetDefault("STUB_DB_PATH", "stubserver.db")
	viper.SetDefault("STUB_JWT_SECRET", "dev-secret-change-in-production")
	viper.SetDefault("STUB_SEED_POSTS", 60)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and sane.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.APITimeoutMS <= 0 {
		return errors.New("API_TIMEOUT_MS must be positive")
	}
	if c.GeoTimeoutMS <= 0 {
		return errors.New("GEO_TIMEOUT_MS must be positive")
	}
	if c.GuardGraceMS < 0 {
		return errors.New("GUARD_GRACE_MS must not be negative")
	}
	if c.FeedPageSize <= 0 {
		return errors.New("FEED_PAGE_SIZE must be positive")
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction && c.StubJWTSecret == "dev-secret-change-in-production" {
		log.Println("WARNING: STUB_JWT_SECRET still has its default value. The stub backend is not meant for production use.")
	}

	return nil
}
