package config

import (
	"fmt"

	"github.com/kilianp07/antsid/core/quantile"
)

// QuantileConfig configures the ensemble bands computed after calibration.
type QuantileConfig struct {
	Enabled *bool     `json:"enabled"`
	Levels  []float64 `json:"levels"`
	// BaseYear anchors every projected trajectory before aggregation.
	// Zero means the model anomaly year.
	BaseYear int `json:"base_year"`
	// Method is empirical or lininterp.
	Method string `json:"method"`
}

// SetDefaults enables the bands with the usual likely and very likely ranges.
func (c *QuantileConfig) SetDefaults() {
	if c.Enabled == nil {
		t := true
		c.Enabled = &t
	}
	if len(c.Levels) == 0 {
		c.Levels = append([]float64(nil), quantile.DefaultLevels...)
	}
}

// On reports whether bands are computed.
func (c QuantileConfig) On() bool { return c.Enabled == nil || *c.Enabled }

// Validate checks levels and method.
func (c QuantileConfig) Validate() error {
	for _, l := range c.Levels {
		if l < 0 || l > 1 {
			return fmt.Errorf("%w: %g", quantile.ErrLevel, l)
		}
	}
	_, err := quantile.ParseMethod(c.Method)
	return err
}
