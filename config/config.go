package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/antsid/core/metrics"
)

type Config struct {
	Data      DataConfig     `json:"data"`
	Model     ModelConfig    `json:"model"`
	Fit       FitConfig      `json:"fit"`
	Quantiles QuantileConfig `json:"quantiles"`
	Metrics   metrics.Config `json:"metrics"`
	Store     StoreConfig    `json:"store"`
	Output    OutputConfig   `json:"output"`
	Logging   LoggingConfig  `json:"logging"`
	API       APIConfig      `json:"api"`
}

// Load reads the configuration file at path, applies K_-prefixed
// environment overrides (K_FIT__WORKERS=4 sets fit.workers) and fills
// defaults before validating every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	c.Model.SetDefaults()
	c.Fit.SetDefaults()
	c.Quantiles.SetDefaults()
	c.Output.SetDefaults()
	c.Logging.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	validators := []struct {
		name string
		fn   func() error
	}{
		{"data", c.Data.Validate},
		{"model", c.Model.Validate},
		{"fit", c.Fit.Validate},
		{"quantiles", c.Quantiles.Validate},
		{"output", c.Output.Validate},
		{"logging", c.Logging.Validate},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}
	return nil
}
