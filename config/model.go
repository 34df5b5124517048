package config

import (
	"fmt"

	"github.com/kilianp07/antsid/core/objective"
	"github.com/kilianp07/antsid/core/sensitivity"
)

// ModelConfig selects the discharge model inputs shared by every fit.
type ModelConfig struct {
	// Sensitivity is signed_square, identity or exponential.
	Sensitivity string `json:"sensitivity"`
	// AnomalyYear anchors simulated and reference series before comparison.
	AnomalyYear int `json:"anomaly_year"`
	// MaxVolume is the ice volume every simulation starts from. When zero it
	// is taken from the reference ensemble maximum of MaxVolumeScenario.
	MaxVolume float64 `json:"max_volume"`
	// MaxVolumeScenario restricts the ensemble maximum to one scenario.
	// Empty means all scenarios.
	MaxVolumeScenario string `json:"max_volume_scenario"`
	// ObjectiveWorkers evaluates scenarios concurrently when above 1.
	ObjectiveWorkers int `json:"objective_workers"`
}

// SetDefaults applies the defaults of the published workflow.
func (c *ModelConfig) SetDefaults() {
	if c.Sensitivity == "" {
		c.Sensitivity = sensitivity.SignedSquare.String()
	}
	if c.AnomalyYear == 0 {
		c.AnomalyYear = objective.DefaultAnomalyYear
	}
}

// Validate checks the sensitivity name and volume.
func (c ModelConfig) Validate() error {
	if _, err := sensitivity.Parse(c.Sensitivity); err != nil {
		return err
	}
	if c.MaxVolume < 0 {
		return fmt.Errorf("max_volume must not be negative")
	}
	if c.ObjectiveWorkers < 0 {
		return fmt.Errorf("objective_workers must not be negative")
	}
	return nil
}

// SensitivityFunc returns the parsed sensitivity.
func (c ModelConfig) SensitivityFunc() sensitivity.Function {
	k, err := sensitivity.Parse(c.Sensitivity)
	if err != nil {
		return objective.DefaultSensitivity
	}
	return k
}
