package app

import (
	"fmt"
	"net"

	"github.com/roman-kulish/antenna-survey/internal/config"
	"github.com/roman-kulish/antenna-survey/internal/instrument"
)

const defaultListen = "127.0.0.1:8090"

// Config represents the relay configuration
type Config struct {
	Settings   Settings          `yaml:"settings"`
	Listen     string            `yaml:"listen"` // Address to serve on (default: 127.0.0.1:8090)
	Instrument instrument.Config `yaml:"instrument"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// LoadConfig reads and validates the configuration file at path
func LoadConfig(path string) (*Config, error) {
	return config.Load[Config](path)
}

func (c *Config) Validate() error {
	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("app.Config: invalid listen address: %w", err)
		}
	}
	return c.Instrument.Validate()
}

func (c *Config) listen() string {
	if c.Listen == "" {
		return defaultListen
	}
	return c.Listen
}
