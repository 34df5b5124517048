package config

import (
	"fmt"

	"github.com/kilianp07/antsid/core/discharge"
	"github.com/kilianp07/antsid/core/fit"
)

// FitConfig configures the optimizer and the ensemble calibration.
type FitConfig struct {
	// Method names the registered minimizer, nelder_mead by default.
	Method   string            `json:"method"`
	Start    *discharge.Params `json:"start"`
	Lower    *discharge.Params `json:"lower"`
	Upper    *discharge.Params `json:"upper"`
	Settings fit.Settings      `json:"settings"`
	// WarmStart chains each member's fit from the previous member's result.
	WarmStart  bool `json:"warm_start"`
	Workers    int  `json:"workers"`
	SkipFailed bool `json:"skip_failed"`
}

// DefaultStart is the initial guess of the published workflow.
var DefaultStart = discharge.Params{SIDSens: 1e-5, FastRate: 20, Temp0: 4, TempThresh: 4}

// DefaultBounds is the search box of the published workflow.
var DefaultBounds = fit.Bounds{
	Lower: discharge.Params{SIDSens: 0, FastRate: 0, Temp0: -2, TempThresh: 0},
	Upper: discharge.Params{SIDSens: 1e-4, FastRate: 100, Temp0: 10, TempThresh: 10},
}

// SetDefaults fills the start point, bounds and optimizer settings.
func (c *FitConfig) SetDefaults() {
	if c.Method == "" {
		c.Method = "nelder_mead"
	}
	if c.Start == nil {
		p := DefaultStart
		c.Start = &p
	}
	if c.Lower == nil {
		p := DefaultBounds.Lower
		c.Lower = &p
	}
	if c.Upper == nil {
		p := DefaultBounds.Upper
		c.Upper = &p
	}
	d := fit.DefaultSettings()
	if c.Settings.Tolerance == 0 {
		c.Settings.Tolerance = d.Tolerance
	}
	if c.Settings.StallIterations == 0 {
		c.Settings.StallIterations = d.StallIterations
	}
	if c.Settings.MaxIterations == 0 {
		c.Settings.MaxIterations = d.MaxIterations
	}
	if c.Settings.SimplexSize == 0 {
		c.Settings.SimplexSize = d.SimplexSize
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
}

// Bounds returns the configured search box.
func (c FitConfig) Bounds() fit.Bounds {
	return fit.Bounds{Lower: *c.Lower, Upper: *c.Upper}
}

// Validate checks the box contains the start point.
func (c FitConfig) Validate() error {
	if c.Start == nil || c.Lower == nil || c.Upper == nil {
		return fmt.Errorf("start and bounds are required")
	}
	b := c.Bounds()
	if err := b.Validate(); err != nil {
		return err
	}
	if !b.Contains(*c.Start) {
		return fmt.Errorf("start %v outside bounds", *c.Start)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Settings.Tolerance < 0 || c.Settings.MaxIterations < 0 || c.Settings.MaxEvaluations < 0 {
		return fmt.Errorf("optimizer limits must not be negative")
	}
	return nil
}
