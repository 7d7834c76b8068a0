package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and optionally a
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file and use the OPHELIA_ prefix
// with underscores for nesting (e.g. OPHELIA_SERVER_PORT, OPHELIA_LLM_GEMINI_API_KEY).
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("OPHELIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A config file is optional; environment variables alone are enough.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for everything that has a sensible one.
// Secrets and connection strings deliberately have no default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 10080) // 7 days
	v.SetDefault("auth.bcrypt_cost", 0)                        // 0 = bcrypt.DefaultCost

	v.SetDefault("llm.model_name", "gemini-2.5-flash")
	v.SetDefault("llm.image_model_name", "gemini-2.5-flash-image")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("storage.bucket", "artisan-content")

	v.SetDefault("quota.daily_limit", 25)

	// Bind nested keys explicitly so AutomaticEnv sees them even when no
	// config file mentions them.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"auth.jwt_secret", "auth.token_lifetime_minutes",
		"auth.refresh_token_lifetime_minutes", "auth.bcrypt_cost",
		"llm.gemini_api_key", "llm.model_name", "llm.image_model_name",
		"llm.max_retries", "llm.retry_delay_seconds",
		"storage.url", "storage.service_key", "storage.bucket",
		"quota.redis_url", "quota.daily_limit",
	} {
		// BindEnv only errors on an empty key.
		_ = v.BindEnv(key)
	}
}
