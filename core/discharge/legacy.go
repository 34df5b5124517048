package discharge

import "github.com/kilianp07/antsid/core/sensitivity"

// SimulateLegacy runs the exponential model kept for comparison with earlier
// published results:
//
//	ds = -(a * volume[t] * sens(b * T[t]))
//	volume[t+1] = volume[t] + ds
//
// There is no floor on the volume, so extreme coefficients drive it negative
// and the returned sea-level rise can be negative as well. The second slice
// holds ds per step; its last element is 0.
func SimulateLegacy(forcing []float64, totalVolume, a, b float64, sens sensitivity.Function) ([]float64, []float64) {
	n := len(forcing)
	slr := make([]float64, n)
	ds := make([]float64, n)
	volume := totalVolume
	for t := 0; t+1 < n; t++ {
		d := -(a * volume * sens.Eval(b*forcing[t]))
		volume += d
		ds[t] = d
		slr[t+1] = totalVolume - volume
	}
	return slr, ds
}
