package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment variables.
type Config struct {
	// Server
	Host string `env:"KEYMASTER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"KEYMASTER_PORT" envDefault:"8080"`

	// Redis connection shared by both principals.
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Validator credentials: read-only on documents, write on stream/counter/usage.
	RedisValidatorUsername string `env:"REDIS_VALIDATOR_USERNAME" envDefault:"validator"`
	RedisValidatorPassword string `env:"REDIS_VALIDATOR_PASSWORD"`

	// Manager credentials: full read/write.
	RedisManagerUsername string `env:"REDIS_MANAGER_USERNAME" envDefault:"manager"`
	RedisManagerPassword string `env:"REDIS_MANAGER_PASSWORD"`

	// Admin authentication (optional — if not set, admin endpoints are disabled).
	AdminSecret string `env:"ADMIN_SECRET"`

	// Rate limiting
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Telemetry
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ValidatorRedisURL builds the redis:// connection string for the
// read-mostly validator principal.
func (c *Config) ValidatorRedisURL() string {
	return redisURL(c.RedisHost, c.RedisPort, c.RedisDB, c.RedisValidatorUsername, c.RedisValidatorPassword)
}

// ManagerRedisURL builds the redis:// connection string for the
// full-access manager principal.
func (c *Config) ManagerRedisURL() string {
	return redisURL(c.RedisHost, c.RedisPort, c.RedisDB, c.RedisManagerUsername, c.RedisManagerPassword)
}

func redisURL(host string, port, db int, username, password string) string {
	auth := ""
	if username != "" || password != "" {
		auth = fmt.Sprintf("%s:%s@", username, password)
	}
	return fmt.Sprintf("redis://%s%s:%d/%d", auth, host, port, db)
}
