package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"user-sync/internal/domain"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"3000"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	Auth0IssuerURL      string                `env:"AUTH0_ISSUER_URL,required,notEmpty"`
	Auth0Audience       string                `env:"AUTH0_AUDIENCE,required,notEmpty"`
	Auth0MgmtAudience   string                `env:"AUTH0_MANAGEMENT_AUDIENCE"`
	Auth0ClientID       string                `env:"AUTH0_CLIENT_ID"`
	Auth0ClientSecret   string                `env:"AUTH0_CLIENT_SECRET"`
	Auth0IPWhitelist    []string              `env:"AUTH0_IP_WHITELIST" envSeparator:","`
	Auth0NameSyncPolicy domain.NameSyncPolicy `env:"AUTH0_NAME_SYNC_POLICY" envDefault:"best_effort"`
	Auth0HTTPTimeout    time.Duration         `env:"AUTH0_HTTP_TIMEOUT" envDefault:"10s"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Auth0IssuerURL = strings.TrimRight(strings.TrimSpace(c.Auth0IssuerURL), "/") + "/"
	if strings.TrimSpace(c.Auth0MgmtAudience) == "" {
		c.Auth0MgmtAudience = c.Auth0Audience
	}

	ips := c.Auth0IPWhitelist[:0]
	for _, ip := range c.Auth0IPWhitelist {
		if ip = strings.TrimSpace(ip); ip != "" {
			ips = append(ips, ip)
		}
	}
	c.Auth0IPWhitelist = ips
	return nil
}
