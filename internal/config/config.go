package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port           string
		RateLimit      int
		SessionMaxIdle time.Duration
	}
	Database struct {
		URL string
	}
	Redis struct {
		URL string
	}
	Felicity struct {
		APIKey          string
		BaseURL         string
		Timeout         time.Duration
		FeedbackRetries int
	}
	Log struct {
		Level string
	}
}

// envBindings maps config keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"server.port":               "PORT",
	"server.rate_limit":         "RATE_LIMIT",
	"server.session_max_idle":   "SESSION_MAX_IDLE",
	"database.url":              "DATABASE_URL",
	"redis.url":                 "REDIS_URL",
	"felicity.api_key":          "FELICITY_API_KEY",
	"felicity.base_url":         "FELICITY_BASE_URL",
	"felicity.timeout":          "FELICITY_TIMEOUT",
	"felicity.feedback_retries": "FELICITY_FEEDBACK_RETRIES",
	"log.level":                 "LOG_LEVEL",
}

// Load reads config.yaml from the working directory, or path when given,
// then applies environment overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Set defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.session_max_idle", 30*time.Minute)
	v.SetDefault("felicity.timeout", felicity.DefaultTimeout)
	v.SetDefault("felicity.feedback_retries", 0)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	config.Server.Port = v.GetString("server.port")
	config.Server.RateLimit = v.GetInt("server.rate_limit")
	config.Server.SessionMaxIdle = v.GetDuration("server.session_max_idle")
	config.Database.URL = v.GetString("database.url")
	config.Redis.URL = v.GetString("redis.url")
	config.Felicity.APIKey = v.GetString("felicity.api_key")
	config.Felicity.BaseURL = v.GetString("felicity.base_url")
	config.Felicity.Timeout = v.GetDuration("felicity.timeout")
	config.Felicity.FeedbackRetries = v.GetInt("felicity.feedback_retries")
	config.Log.Level = v.GetString("log.level")

	return &config, nil
}

// ValidateFelicity reports a missing or malformed credential or endpoint as
// a *felicity.ConfigError.
func (c *Config) ValidateFelicity() error {
	return c.FelicityConfig().Validate()
}

// FelicityConfig returns the client settings.
func (c *Config) FelicityConfig() felicity.Config {
	retry := felicity.DefaultRetryConfig()
	retry.MaxRetries = c.Felicity.FeedbackRetries
	return felicity.Config{
		APIKey:  c.Felicity.APIKey,
		BaseURL: c.Felicity.BaseURL,
		Timeout: c.Felicity.Timeout,
		Retry:   retry,
	}
}
