package discharge

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/antsid/core/sensitivity"
)

func TestSimulate_ThresholdExample(t *testing.T) {
	// step 0: slow = 0.1*100*3² = 90, 3 <= 4 so no fast term -> volume 10
	// step 1: slow = 0.1*10*5² = 25, fast = 10, capped at the 10 left -> volume 0
	// step 2: nothing left to lose
	forcing := []float64{3, 5, 5, 2}
	p := Params{SIDSens: 0.1, FastRate: 10, Temp0: 0, TempThresh: 4}
	got := Simulate(forcing, p, 100, sensitivity.SignedSquare)
	assert.InDeltaSlice(t, []float64{0, 90, 100, 100}, got, 1e-9)
}

func TestSimulate_IdentityMatchesLinearRecurrence(t *testing.T) {
	forcing := []float64{1, 2, 0.5, 3}
	p := Params{SIDSens: 0.1, FastRate: 5, Temp0: 0, TempThresh: 100}

	want := make([]float64, len(forcing))
	vol := 100.0
	for i := 0; i < len(forcing)-1; i++ {
		vol -= p.SIDSens * vol * forcing[i]
		want[i+1] = 100 - vol
	}
	got := Simulate(forcing, p, 100, sensitivity.Identity)
	assert.InDeltaSlice(t, []float64{0, 10, 28, 31.6}, got, 1e-9)
	assert.InDeltaSlice(t, want, got, 1e-12)

	squared := Simulate(forcing, p, 100, sensitivity.SignedSquare)
	assert.NotEqual(t, got, squared)
}

func TestSimulate_LengthAndFirstElement(t *testing.T) {
	p := Params{SIDSens: 1e-3, FastRate: 1, Temp0: 0, TempThresh: 1}
	for _, n := range []int{0, 1, 2, 7, 50} {
		forcing := make([]float64, n)
		for i := range forcing {
			forcing[i] = float64(i) / 10
		}
		got := Simulate(forcing, p, 42, sensitivity.SignedSquare)
		require.Len(t, got, n)
		if n > 0 {
			assert.Equal(t, 0.0, got[0])
		}
	}
}

func TestSimulate_ConventionalRegimeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(60)
		p := Params{
			SIDSens:    rng.Float64() * 0.05,
			FastRate:   rng.Float64() * 20,
			Temp0:      rng.Float64()*4 - 2,
			TempThresh: rng.Float64() * 6,
		}
		forcing := make([]float64, n)
		for i := range forcing {
			// keep anomalies non-negative so the slow term never adds ice
			forcing[i] = p.Temp0 + rng.Float64()*6
		}
		v0 := 50 + rng.Float64()*100
		tr := Run(forcing, p, v0, sensitivity.SignedSquare)

		assert.Equal(t, 0.0, tr.SLR[0])
		for i := 1; i < n; i++ {
			assert.GreaterOrEqual(t, tr.SLR[i], tr.SLR[i-1], "trial %d step %d", trial, i)
			assert.LessOrEqual(t, tr.Volume[i], tr.Volume[i-1])
		}
		for i := 0; i < n; i++ {
			assert.GreaterOrEqual(t, tr.Volume[i], 0.0)
			assert.LessOrEqual(t, tr.Volume[i], v0)
			assert.LessOrEqual(t, tr.Discharge[i], tr.Volume[i], "discharge exceeds volume at %d", i)
		}
		assert.Equal(t, Simulate(forcing, p, v0, sensitivity.SignedSquare), tr.SLR)
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	forcing := []float64{0.1, 0.4, 1.3, 2.2, 3.9, 4.4}
	p := Params{SIDSens: 0.01, FastRate: 3, Temp0: -0.5, TempThresh: 3}
	a := Simulate(forcing, p, 1000, sensitivity.SignedSquare)
	b := Simulate(forcing, p, 1000, sensitivity.SignedSquare)
	for i := range a {
		assert.Equal(t, math.Float64bits(a[i]), math.Float64bits(b[i]))
	}
}

func TestSimulate_NegativeSlowTermRegrowsVolume(t *testing.T) {
	// cooling below temp0 yields a negative slow term; the cap only bounds
	// discharge from above, so the volume grows.
	forcing := []float64{-1, -1, -1}
	p := Params{SIDSens: 0.1, FastRate: 0, Temp0: 0, TempThresh: 10}
	tr := Run(forcing, p, 100, sensitivity.SignedSquare)
	assert.InDelta(t, 110, tr.Volume[1], 1e-9)
	assert.InDelta(t, -10, tr.SLR[1], 1e-9)
	assert.Less(t, tr.Discharge[0], 0.0)
}

func TestFastDischarge(t *testing.T) {
	p := Params{FastRate: 7, TempThresh: 4}
	assert.Equal(t, []float64{0, 7, 0, 0}, FastDischarge([]float64{3, 5, 4, 2}, p))
}

func TestSlowResponse(t *testing.T) {
	p := Params{Temp0: 1}
	assert.Equal(t, []float64{4, 0, -1}, SlowResponse([]float64{3, 1, 0}, p, sensitivity.SignedSquare))
	assert.Empty(t, SlowResponse(nil, p, sensitivity.Identity))
}

func TestRun_PrecomputedTermsMatchSimulate(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 100; trial++ {
		forcing := make([]float64, 2+rng.Intn(40))
		for i := range forcing {
			forcing[i] = rng.Float64()*8 - 2
		}
		p := Params{
			SIDSens:    rng.Float64() * 0.05,
			FastRate:   rng.Float64() * 20,
			Temp0:      rng.Float64()*4 - 2,
			TempThresh: rng.Float64() * 6,
		}
		for _, sens := range []sensitivity.Function{sensitivity.SignedSquare, sensitivity.Identity} {
			slr := Simulate(forcing, p, 500, sens)
			tr := Run(forcing, p, 500, sens)
			for i := range slr {
				require.Equal(t, math.Float64bits(slr[i]), math.Float64bits(tr.SLR[i]), "trial %d step %d", trial, i)
			}
		}
	}
}

func TestSimulateLegacy(t *testing.T) {
	slr, ds := SimulateLegacy([]float64{0, 1}, 100, 0.01, 1, sensitivity.Exponential)
	require.Len(t, slr, 2)
	// ds = -(0.01*100*e^0) = -1, volume 99
	assert.InDelta(t, -1, ds[0], 1e-12)
	assert.InDelta(t, 1, slr[1], 1e-12)
	assert.Equal(t, 0.0, ds[1])

	slr, _ = SimulateLegacy([]float64{1, 0, 0}, 100, 0.01, 1, sensitivity.Exponential)
	assert.InDelta(t, math.E, slr[1], 1e-9)

	// a negative coefficient adds ice and the rise goes negative
	slr, _ = SimulateLegacy([]float64{1, 0}, 100, -0.01, 1, sensitivity.Exponential)
	assert.InDelta(t, -math.E, slr[1], 1e-9)
}

func TestSimulateLegacy_NoVolumeFloor(t *testing.T) {
	// a = 2 removes twice the current volume per step
	slr, _ := SimulateLegacy([]float64{0, 0, 0}, 10, 2, 1, sensitivity.Exponential)
	assert.InDelta(t, 20, slr[1], 1e-12)
	assert.Greater(t, slr[1], 10.0, "volume went negative")
}

func TestParamsVector(t *testing.T) {
	p := Params{SIDSens: 1, FastRate: 2, Temp0: 3, TempThresh: 4}
	back, err := FromVector(p.Vector())
	require.NoError(t, err)
	assert.Equal(t, p, back)

	_, err = FromVector([]float64{1, 2})
	assert.ErrorIs(t, err, ErrParamsLength)
	assert.Contains(t, p.String(), "fast_rate=2")
}
