package config

import "fmt"

// StoreConfig locates the SQLite database of calibration runs.
// An empty path disables persistence.
type StoreConfig struct {
	Path string `json:"path"`
}

// OutputConfig controls the exported files.
type OutputConfig struct {
	Dir string `json:"dir"`
	// Format is json or csv.
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *OutputConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "out"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

// Validate checks the format.
func (c OutputConfig) Validate() error {
	if c.Format != "json" && c.Format != "csv" {
		return fmt.Errorf("unknown format %s", c.Format)
	}
	return nil
}
