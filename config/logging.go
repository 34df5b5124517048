package config

import (
	"github.com/rs/zerolog"
)

// LoggingConfig sets the global log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level is known to zerolog.
func (c LoggingConfig) Validate() error {
	_, err := zerolog.ParseLevel(c.Level)
	return err
}
