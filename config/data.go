package config

import "fmt"

// DataConfig locates the calibration inputs.
type DataConfig struct {
	// Forcing is a CSV table (year + one column per scenario) or a YAML
	// dataset holding forcing and reference together.
	Forcing string `json:"forcing"`
	// Reference maps a scenario to its ensemble CSV (year + one column per
	// member). Leave empty when Forcing is a YAML dataset.
	Reference map[string]string `json:"reference"`
}

// Validate checks mandatory fields.
func (c DataConfig) Validate() error {
	if c.Forcing == "" {
		return fmt.Errorf("forcing path is required")
	}
	for scen, path := range c.Reference {
		if path == "" {
			return fmt.Errorf("reference path for %s is empty", scen)
		}
	}
	return nil
}
