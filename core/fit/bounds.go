package fit

import (
	"errors"
	"fmt"

	"github.com/kilianp07/antsid/core/discharge"
)

// ErrBounds reports a box constraint whose lower edge exceeds its upper edge.
var ErrBounds = errors.New("invalid bounds")

// Bounds is a box constraint on the parameter vector.
type Bounds struct {
	Lower discharge.Params `json:"lower"`
	Upper discharge.Params `json:"upper"`
}

var paramNames = [discharge.NumParams]string{"sid_sens", "fast_rate", "temp0", "temp_thresh"}

// Validate checks that every lower edge is at most its upper edge.
func (b Bounds) Validate() error {
	lo, hi := b.Lower.Vector(), b.Upper.Vector()
	for i := range lo {
		if !(lo[i] <= hi[i]) {
			return fmt.Errorf("%w: %s lower %g > upper %g", ErrBounds, paramNames[i], lo[i], hi[i])
		}
	}
	return nil
}

// Contains reports whether p lies inside the box.
func (b Bounds) Contains(p discharge.Params) bool {
	lo, hi, x := b.Lower.Vector(), b.Upper.Vector(), p.Vector()
	for i := range x {
		if x[i] < lo[i] || x[i] > hi[i] {
			return false
		}
	}
	return true
}

// Clip projects p onto the box.
func (b Bounds) Clip(p discharge.Params) discharge.Params {
	lo, hi, x := b.Lower.Vector(), b.Upper.Vector(), p.Vector()
	for i := range x {
		x[i] = min(max(x[i], lo[i]), hi[i])
	}
	out, _ := discharge.FromVector(x)
	return out
}

// toUnit maps p into the unit hypercube spanned by the box. Degenerate
// dimensions map to 0.
func (b Bounds) toUnit(p discharge.Params) []float64 {
	lo, hi, x := b.Lower.Vector(), b.Upper.Vector(), b.Clip(p).Vector()
	u := make([]float64, len(x))
	for i := range x {
		if w := hi[i] - lo[i]; w > 0 {
			u[i] = (x[i] - lo[i]) / w
		}
	}
	return u
}

// fromUnit is the inverse of toUnit. Coordinates outside [0,1] are clipped,
// so every candidate the optimizer proposes is evaluated inside the box.
func (b Bounds) fromUnit(u []float64) discharge.Params {
	lo, hi := b.Lower.Vector(), b.Upper.Vector()
	x := make([]float64, len(u))
	for i := range u {
		x[i] = lo[i] + min(max(u[i], 0), 1)*(hi[i]-lo[i])
	}
	p, _ := discharge.FromVector(x)
	return p
}
