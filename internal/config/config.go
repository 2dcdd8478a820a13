// Package config loads daemon settings from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	// DataDir is where the JSON snapshot files live.
	DataDir string `env:"FLOWDECK_DATA_DIR" envDefault:"./data"`
	// Port is the HTTP/websocket listen port.
	Port int `env:"FLOWDECK_PORT" envDefault:"7300"`

	Auth struct {
		Secret   string        `env:"FLOWDECK_JWT_SECRET" envDefault:"dev-secret-change-me"`
		TokenTTL time.Duration `env:"FLOWDECK_TOKEN_TTL" envDefault:"168h"`
	}
}

func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	return &cfg, err
}
