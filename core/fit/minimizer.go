package fit

import (
	"context"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/kilianp07/antsid/core/discharge"
)

// Func is an objective over the parameter vector.
type Func func(discharge.Params) float64

// Minimizer searches for the parameters minimizing f inside bounds.
type Minimizer interface {
	Minimize(ctx context.Context, f Func, start discharge.Params, bounds Bounds) (Result, error)
}

// Result is the outcome of one minimization.
type Result struct {
	Params      discharge.Params
	Objective   float64
	Evaluations int
	Iterations  int
	Status      string
	Runtime     time.Duration
}

// Settings bounds the work done by a minimization.
type Settings struct {
	// Tolerance is the absolute improvement of the best objective value below
	// which the search counts as stalled.
	Tolerance float64 `json:"tolerance"`
	// StallIterations is the number of stalled iterations before stopping.
	StallIterations int `json:"stall_iterations"`
	// MaxIterations caps simplex moves; 0 means unlimited.
	MaxIterations int `json:"max_iterations"`
	// MaxEvaluations caps objective calls; 0 means unlimited.
	MaxEvaluations int `json:"max_evaluations"`
	// SimplexSize is the initial simplex edge in unit-box coordinates.
	SimplexSize float64 `json:"simplex_size"`
}

// DefaultSettings mirrors the tolerances used for the published fits.
func DefaultSettings() Settings {
	return Settings{
		Tolerance:       1e-5,
		StallIterations: 50,
		MaxIterations:   10000,
		SimplexSize:     0.05,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Tolerance <= 0 {
		s.Tolerance = d.Tolerance
	}
	if s.StallIterations <= 0 {
		s.StallIterations = d.StallIterations
	}
	if s.SimplexSize <= 0 {
		s.SimplexSize = d.SimplexSize
	}
	return s
}

// NelderMead is a derivative-free simplex search. It works in the unit
// hypercube spanned by the bounds, so parameters of very different scales
// move at comparable rates and every evaluated point respects the box.
type NelderMead struct {
	Settings Settings
}

// Minimize implements Minimizer.
func (nm NelderMead) Minimize(ctx context.Context, f Func, start discharge.Params, bounds Bounds) (Result, error) {
	if err := bounds.Validate(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s := nm.Settings.withDefaults()
	problem := optimize.Problem{
		Func: func(u []float64) float64 { return f(bounds.fromUnit(u)) },
	}
	settings := &optimize.Settings{
		MajorIterations: s.MaxIterations,
		FuncEvaluations: s.MaxEvaluations,
		Converger: &contextConverger{
			ctx:   ctx,
			inner: &optimize.FunctionConverge{Absolute: s.Tolerance, Iterations: s.StallIterations},
		},
	}
	res, err := optimize.Minimize(problem, bounds.toUnit(start), settings, &optimize.NelderMead{SimplexSize: s.SimplexSize})
	if cerr := ctx.Err(); cerr != nil {
		return Result{}, cerr
	}
	if err != nil {
		return Result{}, err
	}
	return Result{
		Params:      bounds.fromUnit(res.X),
		Objective:   res.F,
		Evaluations: res.FuncEvaluations,
		Iterations:  res.MajorIterations,
		Status:      res.Status.String(),
		Runtime:     res.Runtime,
	}, nil
}

// contextConverger stops the search once ctx is done.
type contextConverger struct {
	ctx   context.Context
	inner optimize.Converger
}

func (c *contextConverger) Init(dim int) { c.inner.Init(dim) }

func (c *contextConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.RuntimeLimit
	}
	return c.inner.Converged(loc)
}
