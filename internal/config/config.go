package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the plugin registry CLI.
type Config struct {
	DBDSN    string `env:"DB_DSN,required"`
	NATSURL  string `env:"NATS_URL"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
