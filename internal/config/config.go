// Package config holds the settings of the console client, read from HMS_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const prefix = "hms"

type Config struct {
	APIURL   string        `envconfig:"API_URL" default:"http://localhost:8080"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"30s"`
	PageSize int           `envconfig:"PAGE_SIZE" default:"10"`
	LogLevel string        `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool          `envconfig:"DEBUG" default:"false"`

	Email    string `envconfig:"EMAIL"`
	Password string `envconfig:"PASSWORD"`

	// Letterhead printed on reports.
	Hospital string `envconfig:"HOSPITAL" default:"City Hospital"`
	Address  string `envconfig:"ADDRESS"`
	Phone    string `envconfig:"PHONE"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid HMS_API_URL %q", c.APIURL)
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")

	if c.Timeout <= 0 {
		return fmt.Errorf("HMS_TIMEOUT must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("HMS_PAGE_SIZE must be positive")
	}
	return nil
}

// Usage prints the supported variables.
func Usage() error {
	var cfg Config
	return envconfig.Usage(prefix, &cfg)
}
