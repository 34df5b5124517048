// Package objective scores a discharge parameter set against reference
// sea-level-rise trajectories across several forcing scenarios.
//
// For each scenario the simulated trajectory is sampled at the reference
// years, both trajectories are anchored to zero at the anomaly year, and the
// squared residuals are divided by the range of the reference series. The
// objective is the sum over scenarios.
package objective

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/antsid/core/discharge"
	"github.com/kilianp07/antsid/core/sensitivity"
	"github.com/kilianp07/antsid/core/series"
)

// DefaultAnomalyYear anchors trajectories when Options leaves it unset.
const DefaultAnomalyYear = 1950

// DefaultSensitivity is used when Options leaves Sensitivity unset.
var DefaultSensitivity sensitivity.Function = sensitivity.SignedSquare

var (
	// ErrInvalidIndex reports an anomaly year missing from a reference index.
	ErrInvalidIndex = errors.New("anomaly year not in reference index")
	// ErrMissingScenario reports a reference scenario without forcing.
	ErrMissingScenario = errors.New("scenario missing from forcing")
	// ErrDegenerateNormalization reports a constant reference series.
	ErrDegenerateNormalization = errors.New("reference series has zero range")
)

// Options holds the inputs shared by every scenario.
type Options struct {
	// MaxVolume is the initial ice volume of every simulation: the single
	// maximum volume that can be lost, independent of the parameters.
	MaxVolume float64
	// Sensitivity defaults to sensitivity.SignedSquare.
	Sensitivity sensitivity.Function
	// AnomalyYear defaults to DefaultAnomalyYear.
	AnomalyYear int
	// Workers > 1 evaluates scenarios concurrently.
	Workers int
}

type scenario struct {
	name    string
	forcing []float64
	pos     []int
	anchor  int
	ref     []float64
	span    float64
}

// Objective is a compiled least-squares objective. Everything that does not
// depend on the parameters is resolved once in New; Evaluate is safe for
// concurrent use.
type Objective struct {
	scenarios []scenario
	opts      Options
}

// New validates the inputs and precomputes the alignment of every reference
// series against its forcing series. Only scenarios present in reference are
// scored.
func New(forcing, reference map[string]series.Series, opts Options) (*Objective, error) {
	if opts.Sensitivity == nil {
		opts.Sensitivity = DefaultSensitivity
	}
	if opts.AnomalyYear == 0 {
		opts.AnomalyYear = DefaultAnomalyYear
	}
	names := make([]string, 0, len(reference))
	for name := range reference {
		names = append(names, name)
	}
	sort.Strings(names)

	o := &Objective{opts: opts, scenarios: make([]scenario, 0, len(names))}
	for _, name := range names {
		sc, err := compile(name, forcing, reference[name], opts.AnomalyYear)
		if err != nil {
			return nil, err
		}
		o.scenarios = append(o.scenarios, sc)
	}
	return o, nil
}

func compile(name string, forcing map[string]series.Series, ref series.Series, year int) (scenario, error) {
	forc, ok := forcing[name]
	if !ok {
		return scenario{}, fmt.Errorf("%w: %q", ErrMissingScenario, name)
	}
	if err := forc.Validate(); err != nil {
		return scenario{}, fmt.Errorf("forcing %q: %w", name, err)
	}
	if err := ref.Validate(); err != nil {
		return scenario{}, fmt.Errorf("reference %q: %w", name, err)
	}
	pos, err := forc.Align(ref)
	if err != nil {
		return scenario{}, fmt.Errorf("scenario %q: %w", name, err)
	}
	anchor, err := ref.Position(year)
	if err != nil {
		return scenario{}, fmt.Errorf("%w: scenario %q year %d", ErrInvalidIndex, name, year)
	}
	span := ref.Span()
	if span == 0 {
		return scenario{}, fmt.Errorf("%w: %q", ErrDegenerateNormalization, name)
	}
	rebased, err := ref.Rebase(year)
	if err != nil {
		return scenario{}, err
	}
	return scenario{
		name:    name,
		forcing: forc.Values,
		pos:     pos,
		anchor:  anchor,
		ref:     rebased.Values,
		span:    span,
	}, nil
}

// Scenarios returns the scored scenario names in evaluation order.
func (o *Objective) Scenarios() []string {
	out := make([]string, len(o.scenarios))
	for i, sc := range o.scenarios {
		out[i] = sc.name
	}
	return out
}

// Options returns the resolved options.
func (o *Objective) Options() Options { return o.opts }

// Evaluate returns the summed normalized squared error for p.
func (o *Objective) Evaluate(p discharge.Params) float64 {
	var total float64
	for _, e := range o.errors(p) {
		total += e
	}
	return total
}

// Breakdown returns the normalized squared error of each scenario.
func (o *Objective) Breakdown(p discharge.Params) map[string]float64 {
	errs := o.errors(p)
	out := make(map[string]float64, len(errs))
	for i, sc := range o.scenarios {
		out[sc.name] = errs[i]
	}
	return out
}

// errors computes per-scenario terms in scenario order. Summing them in that
// order keeps the total identical regardless of Workers.
func (o *Objective) errors(p discharge.Params) []float64 {
	errs := make([]float64, len(o.scenarios))
	if o.opts.Workers <= 1 || len(o.scenarios) < 2 {
		for i := range o.scenarios {
			errs[i] = o.scenarios[i].score(p, o.opts)
		}
		return errs
	}
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for i := range o.scenarios {
		g.Go(func() error {
			errs[i] = o.scenarios[i].score(p, o.opts)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (sc *scenario) score(p discharge.Params, opts Options) float64 {
	slr := discharge.Simulate(sc.forcing, p, opts.MaxVolume, opts.Sensitivity)
	base := slr[sc.pos[sc.anchor]]
	var sum float64
	for i, at := range sc.pos {
		d := (slr[at] - base) - sc.ref[i]
		sum += d * d
	}
	return sum / sc.span
}

// LeastSquares compiles and evaluates the objective in one call.
func LeastSquares(p discharge.Params, forcing, reference map[string]series.Series, maxVolume float64, sens sensitivity.Function, anomalyYear int) (float64, error) {
	o, err := New(forcing, reference, Options{MaxVolume: maxVolume, Sensitivity: sens, AnomalyYear: anomalyYear})
	if err != nil {
		return 0, err
	}
	return o.Evaluate(p), nil
}
