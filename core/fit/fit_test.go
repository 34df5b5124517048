package fit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/antsid/core/discharge"
	"github.com/kilianp07/antsid/core/events"
	"github.com/kilianp07/antsid/core/logger"
	"github.com/kilianp07/antsid/core/objective"
	"github.com/kilianp07/antsid/core/sensitivity"
	"github.com/kilianp07/antsid/core/series"
	"github.com/kilianp07/antsid/internal/eventbus"
)

var box = Bounds{
	Lower: discharge.Params{SIDSens: 0, FastRate: 0, Temp0: -2, TempThresh: 0},
	Upper: discharge.Params{SIDSens: 1e-4, FastRate: 100, Temp0: 10, TempThresh: 10},
}

var start = discharge.Params{SIDSens: 1e-5, FastRate: 20, Temp0: 4, TempThresh: 4}

func TestBounds(t *testing.T) {
	require.NoError(t, box.Validate())
	bad := box
	bad.Lower.FastRate = 200
	assert.ErrorIs(t, bad.Validate(), ErrBounds)

	assert.True(t, box.Contains(start))
	out := discharge.Params{SIDSens: -1, FastRate: 500, Temp0: 3, TempThresh: 11}
	assert.False(t, box.Contains(out))
	assert.Equal(t, discharge.Params{SIDSens: 0, FastRate: 100, Temp0: 3, TempThresh: 10}, box.Clip(out))

	u := box.toUnit(start)
	assert.InDeltaSlice(t, []float64{0.1, 0.2, 0.5, 0.4}, u, 1e-12)
	back := box.fromUnit(u)
	assert.InDeltaSlice(t, start.Vector(), back.Vector(), 1e-12)
	assert.Equal(t, box.Upper, box.fromUnit([]float64{3, 3, 3, 3}))
}

func TestBounds_DegenerateDimension(t *testing.T) {
	b := box
	b.Lower.Temp0, b.Upper.Temp0 = 1, 1
	require.NoError(t, b.Validate())
	u := b.toUnit(discharge.Params{Temp0: 1})
	assert.Equal(t, 0.0, u[2])
	assert.Equal(t, 1.0, b.fromUnit([]float64{0, 0, 0.7, 0}).Temp0)
}

// bowl is a quadratic with its minimum at target, scaled by the box width.
func bowl(target discharge.Params) Func {
	lo, hi, tv := box.Lower.Vector(), box.Upper.Vector(), target.Vector()
	return func(p discharge.Params) float64 {
		var s float64
		for i, x := range p.Vector() {
			d := (x - tv[i]) / (hi[i] - lo[i])
			s += d * d
		}
		return s
	}
}

func TestNelderMead_FindsInteriorMinimum(t *testing.T) {
	target := discharge.Params{SIDSens: 5e-5, FastRate: 30, Temp0: 4, TempThresh: 6}
	nm := NelderMead{Settings: Settings{Tolerance: 1e-14, StallIterations: 100, MaxIterations: 20000}}
	res, err := nm.Minimize(context.Background(), bowl(target), start, box)
	require.NoError(t, err)
	assert.InDelta(t, target.SIDSens, res.Params.SIDSens, 5e-7)
	assert.InDelta(t, target.FastRate, res.Params.FastRate, 0.5)
	assert.InDelta(t, target.Temp0, res.Params.Temp0, 0.06)
	assert.InDelta(t, target.TempThresh, res.Params.TempThresh, 0.05)
	assert.Less(t, res.Objective, 1e-4)
	assert.Positive(t, res.Evaluations)
	assert.NotEmpty(t, res.Status)
}

func TestNelderMead_RespectsBox(t *testing.T) {
	target := discharge.Params{SIDSens: 5e-5, FastRate: 150, Temp0: 4, TempThresh: 6}
	var outside bool
	f := bowl(target)
	probe := func(p discharge.Params) float64 {
		if !box.Contains(p) {
			outside = true
		}
		return f(p)
	}
	res, err := NelderMead{}.Minimize(context.Background(), probe, start, box)
	require.NoError(t, err)
	assert.False(t, outside, "objective evaluated outside the box")
	assert.True(t, box.Contains(res.Params))
	assert.InDelta(t, 100, res.Params.FastRate, 1)
}

func TestNelderMead_Errors(t *testing.T) {
	bad := box
	bad.Lower.TempThresh = 20
	_, err := NelderMead{}.Minimize(context.Background(), bowl(start), start, bad)
	assert.ErrorIs(t, err, ErrBounds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NelderMead{}.Minimize(ctx, bowl(start), start, box)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	d := DefaultSettings()
	assert.Equal(t, d.Tolerance, s.Tolerance)
	assert.Equal(t, d.StallIterations, s.StallIterations)
	assert.Equal(t, d.SimplexSize, s.SimplexSize)
	assert.Equal(t, 0, s.MaxIterations)
}

// recorder is a Minimizer that returns start shifted by one unit of
// FastRate and remembers every start it was given.
type recorder struct {
	mu     sync.Mutex
	starts []discharge.Params
	fail   map[float64]bool
}

func (r *recorder) Minimize(_ context.Context, f Func, s discharge.Params, _ Bounds) (Result, error) {
	r.mu.Lock()
	r.starts = append(r.starts, s)
	fail := r.fail[s.FastRate]
	r.mu.Unlock()
	if fail {
		return Result{}, errors.New("simplex collapsed")
	}
	p := s
	p.FastRate++
	return Result{Params: p, Objective: f(p), Evaluations: 1, Status: "Success"}, nil
}

func ramp(slope float64) series.Series {
	v := make([]float64, 151)
	for i := range v {
		v[i] = slope * float64(i)
	}
	return series.Range(1950, v)
}

func ensemble(forcing map[string]series.Series, vol float64, truths ...discharge.Params) []Member {
	members := make([]Member, len(truths))
	for i, p := range truths {
		ref := make(map[string]series.Series)
		for name, f := range forcing {
			slr := discharge.Simulate(f.Values, p, vol, sensitivity.SignedSquare)
			var s series.Series
			for j := 0; j < len(slr); j += 10 {
				s.Index = append(s.Index, f.Index[j])
				s.Values = append(s.Values, slr[j])
			}
			ref[name] = s
		}
		members[i] = Member{Name: string(rune('a' + i)), Reference: ref}
	}
	return members
}

func testForcing() map[string]series.Series {
	return map[string]series.Series{"rcp26": ramp(0.01), "rcp85": ramp(0.04)}
}

func TestCalibrator_WarmStartChainsMembers(t *testing.T) {
	forcing := testForcing()
	members := ensemble(forcing, 300,
		discharge.Params{SIDSens: 2e-5, FastRate: 10, Temp0: 0, TempThresh: 3},
		discharge.Params{SIDSens: 4e-5, FastRate: 5, Temp0: 1, TempThresh: 4},
		discharge.Params{SIDSens: 6e-5, FastRate: 2, Temp0: 0.5, TempThresh: 5},
	)
	rec := &recorder{}
	bus := eventbus.New()
	sub := bus.Subscribe()
	cal, err := NewCalibrator(Config{
		Minimizer: rec,
		Forcing:   forcing,
		Objective: objective.Options{MaxVolume: 300},
		Start:     start,
		Bounds:    box,
		WarmStart: true,
		Workers:   4,
	}, bus, logger.Nop{})
	require.NoError(t, err)

	run, err := cal.Calibrate(context.Background(), members)
	require.NoError(t, err)
	require.Len(t, run.Results, 3)
	assert.NotEmpty(t, run.ID)
	require.Len(t, rec.starts, 3)
	assert.Equal(t, 20.0, rec.starts[0].FastRate)
	assert.Equal(t, 21.0, rec.starts[1].FastRate)
	assert.Equal(t, 22.0, rec.starts[2].FastRate)
	assert.Equal(t, []string{"rcp26", "rcp85"}, run.Results[0].Scenarios)

	bus.Close()
	var fitted, started, completed int
	for ev := range sub {
		switch e := ev.(type) {
		case events.RunStarted:
			started++
			assert.Equal(t, 3, e.Members)
		case events.MemberFitted:
			fitted++
			assert.Equal(t, run.ID, e.RunID)
		case events.RunCompleted:
			completed++
			assert.Equal(t, 3, e.Fitted)
			assert.NoError(t, e.Err)
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 3, fitted)
	assert.Equal(t, 1, completed)
}

func TestCalibrator_ParallelUsesCommonStart(t *testing.T) {
	forcing := testForcing()
	members := ensemble(forcing, 300,
		discharge.Params{SIDSens: 2e-5, FastRate: 10, Temp0: 0, TempThresh: 3},
		discharge.Params{SIDSens: 4e-5, FastRate: 5, Temp0: 1, TempThresh: 4},
	)
	rec := &recorder{}
	cal, err := NewCalibrator(Config{
		Minimizer: rec,
		Forcing:   forcing,
		Objective: objective.Options{MaxVolume: 300},
		Start:     start,
		Bounds:    box,
		Workers:   2,
	}, nil, logger.Nop{})
	require.NoError(t, err)
	run, err := cal.Calibrate(context.Background(), members)
	require.NoError(t, err)
	require.Len(t, run.Fitted(), 2)
	for _, s := range rec.starts {
		assert.Equal(t, start, s)
	}
	assert.Equal(t, "a", run.Results[0].Member)
	assert.Equal(t, "b", run.Results[1].Member)
}

func TestCalibrator_Failures(t *testing.T) {
	forcing := testForcing()
	members := ensemble(forcing, 300,
		discharge.Params{SIDSens: 2e-5, FastRate: 10, Temp0: 0, TempThresh: 3},
		discharge.Params{SIDSens: 4e-5, FastRate: 5, Temp0: 1, TempThresh: 4},
	)
	cfg := Config{
		Forcing:   forcing,
		Objective: objective.Options{MaxVolume: 300},
		Start:     start,
		Bounds:    box,
	}

	t.Run("abort", func(t *testing.T) {
		cfg.Minimizer = &recorder{fail: map[float64]bool{20: true}}
		cal, err := NewCalibrator(cfg, nil, logger.Nop{})
		require.NoError(t, err)
		_, err = cal.Calibrate(context.Background(), members)
		assert.ErrorContains(t, err, "simplex collapsed")
	})

	t.Run("skip", func(t *testing.T) {
		cfg.Minimizer = &recorder{fail: map[float64]bool{20: true}}
		cfg.SkipFailed = true
		cal, err := NewCalibrator(cfg, nil, logger.Nop{})
		require.NoError(t, err)
		run, err := cal.Calibrate(context.Background(), members)
		require.NoError(t, err)
		assert.Len(t, run.Results, 2)
		assert.Empty(t, run.Fitted())
	})

	t.Run("missing forcing", func(t *testing.T) {
		cfg.Minimizer = &recorder{}
		cfg.Forcing = map[string]series.Series{"rcp26": forcing["rcp26"]}
		cal, err := NewCalibrator(cfg, nil, logger.Nop{})
		require.NoError(t, err)
		_, err = cal.Calibrate(context.Background(), members)
		assert.ErrorIs(t, err, objective.ErrMissingScenario)
	})

	t.Run("no members", func(t *testing.T) {
		cal, err := NewCalibrator(cfg, nil, logger.Nop{})
		require.NoError(t, err)
		_, err = cal.Calibrate(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNoMembers)
	})

	t.Run("start outside box", func(t *testing.T) {
		bad := cfg
		bad.Start.FastRate = -1
		_, err := NewCalibrator(bad, nil, logger.Nop{})
		assert.ErrorIs(t, err, ErrBounds)
	})
}

func TestCalibrator_NelderMeadImprovesObjective(t *testing.T) {
	forcing := testForcing()
	truth := discharge.Params{SIDSens: 3e-5, FastRate: 8, Temp0: 0, TempThresh: 3}
	members := ensemble(forcing, 300, truth)
	opts := objective.Options{MaxVolume: 300}
	cal, err := NewCalibrator(Config{
		Minimizer: NelderMead{Settings: Settings{MaxIterations: 2000}},
		Forcing:   forcing,
		Objective: opts,
		Start:     start,
		Bounds:    box,
	}, nil, logger.Nop{})
	require.NoError(t, err)
	run, err := cal.Calibrate(context.Background(), members)
	require.NoError(t, err)

	o, err := objective.New(forcing, members[0].Reference, opts)
	require.NoError(t, err)
	res := run.Results[0]
	assert.LessOrEqual(t, res.Objective, o.Evaluate(start))
	assert.InDelta(t, o.Evaluate(res.Params), res.Objective, 1e-12)
	assert.True(t, box.Contains(res.Params))
}

func TestMaxVolume(t *testing.T) {
	members := []Member{
		{Name: "a", Reference: map[string]series.Series{
			"low":  {Index: []int{1, 2}, Values: []float64{0, 3}},
			"high": {Index: []int{1, 2}, Values: []float64{0, 9}},
		}},
		{Name: "b", Reference: map[string]series.Series{
			"high": {Index: []int{1, 2}, Values: []float64{0, 12}},
		}},
	}
	v, err := MaxVolume(members, "high")
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	v, err = MaxVolume(members, "low")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	v, err = MaxVolume(members, "")
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	_, err = MaxVolume(members, "none")
	assert.ErrorIs(t, err, ErrNoMembers)
}

func TestProject(t *testing.T) {
	forcing := testForcing()
	results := []MemberResult{
		{Member: "a", Result: Result{Params: start}},
		{Member: "b", Result: Result{Params: discharge.Params{SIDSens: 5e-5, FastRate: 1, TempThresh: 2}}},
	}
	out := Project(forcing, results, objective.Options{MaxVolume: 300})
	require.Len(t, out, 2)
	require.Len(t, out["rcp85"], 2)
	assert.Equal(t, forcing["rcp85"].Index, out["rcp85"][1].Index)
	assert.Equal(t, discharge.Simulate(forcing["rcp85"].Values, start, 300, sensitivity.SignedSquare), out["rcp85"][0].Values)
}
