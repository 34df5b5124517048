package discharge

import (
	"errors"
	"fmt"
)

// NumParams is the length of the parameter vector handed to optimizers.
const NumParams = 4

// ErrParamsLength is returned when a vector does not hold NumParams values.
var ErrParamsLength = errors.New("parameter vector must have 4 elements")

// Params is the free parameter set of the primary discharge model.
type Params struct {
	// SIDSens scales the volume- and temperature-dependent slow discharge.
	SIDSens float64 `json:"sid_sens" yaml:"sid_sens"`
	// FastRate is added each year the temperature exceeds TempThresh.
	FastRate float64 `json:"fast_rate" yaml:"fast_rate"`
	// Temp0 is the reference temperature of the slow term.
	Temp0 float64 `json:"temp0" yaml:"temp0"`
	// TempThresh triggers the fast term.
	TempThresh float64 `json:"temp_thresh" yaml:"temp_thresh"`
}

// Vector returns the parameters in optimizer order.
func (p Params) Vector() []float64 {
	return []float64{p.SIDSens, p.FastRate, p.Temp0, p.TempThresh}
}

// FromVector is the inverse of Vector.
func FromVector(x []float64) (Params, error) {
	if len(x) != NumParams {
		return Params{}, fmt.Errorf("%w: got %d", ErrParamsLength, len(x))
	}
	return Params{SIDSens: x[0], FastRate: x[1], Temp0: x[2], TempThresh: x[3]}, nil
}

func (p Params) String() string {
	return fmt.Sprintf("sid_sens=%g fast_rate=%g temp0=%g temp_thresh=%g", p.SIDSens, p.FastRate, p.Temp0, p.TempThresh)
}
