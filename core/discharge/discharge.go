// Package discharge integrates solid ice discharge forward in time from a
// temperature forcing series.
//
// The recurrence is strictly sequential: every step reads the volume left by
// the previous one. Only the fast term, which does not depend on volume, is
// computed independently per step.
package discharge

import "github.com/kilianp07/antsid/core/sensitivity"

// Trajectory is the full state of one primary-model run. All slices share
// the length of the forcing series. Discharge[t] is the volume removed
// between t and t+1; the last element is always 0.
type Trajectory struct {
	SLR       []float64
	Volume    []float64
	Discharge []float64
}

// FastDischarge returns fastRate wherever the forcing exceeds the threshold.
func FastDischarge(forcing []float64, p Params) []float64 {
	fast := make([]float64, len(forcing))
	for i, temp := range forcing {
		if temp > p.TempThresh {
			fast[i] = p.FastRate
		}
	}
	return fast
}

// SlowResponse returns sens(T - temp0) for every step, the volume-independent
// factor of the slow term.
func SlowResponse(forcing []float64, p Params, sens sensitivity.Function) []float64 {
	anomaly := make([]float64, len(forcing))
	for i, temp := range forcing {
		anomaly[i] = temp - p.Temp0
	}
	return sensitivity.Apply(sens, anomaly)
}

// loss returns the capped discharge for one year from its slow response and
// fast term. The cap bounds the loss by the available volume only from
// above: a negative slow term still lets the volume grow.
func loss(volume, response, fast float64, p Params) float64 {
	rate := p.SIDSens*volume*response + fast
	if rate > volume {
		return volume
	}
	return rate
}

func step(volume, temp float64, p Params, sens sensitivity.Function) float64 {
	var fast float64
	if temp > p.TempThresh {
		fast = p.FastRate
	}
	return loss(volume, sens.Eval(temp-p.Temp0), fast, p)
}

// Simulate runs the primary model and returns the cumulative sea-level-rise
// contribution, initialVolume - volume[t], for every step. The result has
// the length of forcing and starts at 0. It evaluates each step inline and
// allocates only the result, which keeps it cheap inside an optimizer loop.
func Simulate(forcing []float64, p Params, initialVolume float64, sens sensitivity.Function) []float64 {
	slr := make([]float64, len(forcing))
	volume := initialVolume
	for t := 0; t+1 < len(forcing); t++ {
		volume -= step(volume, forcing[t], p, sens)
		slr[t+1] = initialVolume - volume
	}
	return slr
}

// Run is Simulate with the volume and discharge series retained. The fast
// term and the slow response are computed up front for the whole series;
// only the volume recurrence runs step by step. Run and Simulate return the
// same sea-level rise.
func Run(forcing []float64, p Params, initialVolume float64, sens sensitivity.Function) Trajectory {
	n := len(forcing)
	tr := Trajectory{
		SLR:       make([]float64, n),
		Volume:    make([]float64, n),
		Discharge: make([]float64, n),
	}
	if n == 0 {
		return tr
	}
	fast := FastDischarge(forcing, p)
	response := SlowResponse(forcing, p, sens)
	tr.Volume[0] = initialVolume
	for t := 0; t < n-1; t++ {
		d := loss(tr.Volume[t], response[t], fast[t], p)
		tr.Discharge[t] = d
		tr.Volume[t+1] = tr.Volume[t] - d
		tr.SLR[t+1] = initialVolume - tr.Volume[t+1]
	}
	return tr
}
