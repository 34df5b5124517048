package fit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/antsid/core/discharge"
	"github.com/kilianp07/antsid/core/events"
	"github.com/kilianp07/antsid/core/logger"
	"github.com/kilianp07/antsid/core/objective"
	"github.com/kilianp07/antsid/core/series"
	"github.com/kilianp07/antsid/internal/eventbus"
)

// ErrNoMembers is returned when there is nothing to calibrate against.
var ErrNoMembers = errors.New("no ensemble members")

// Member is one reference ensemble member: a reference trajectory per
// scenario. Members may cover only a subset of the scenarios.
type Member struct {
	Name      string
	Reference map[string]series.Series
}

// MemberResult is the fit of one member.
type MemberResult struct {
	Member    string
	Scenarios []string
	Result
	Err error
}

// Run groups the member fits of one calibration.
type Run struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Results  []MemberResult
}

// Fitted returns the results without an error.
func (r Run) Fitted() []MemberResult {
	out := make([]MemberResult, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res)
		}
	}
	return out
}

// Config configures a Calibrator.
type Config struct {
	Minimizer Minimizer
	Forcing   map[string]series.Series
	Objective objective.Options
	Start     discharge.Params
	Bounds    Bounds
	// WarmStart starts each member from the previous member's best fit.
	// Members are then fitted one after the other.
	WarmStart bool
	// Workers fits members concurrently when WarmStart is off.
	Workers int
	// SkipFailed records optimizer failures and moves on instead of aborting.
	SkipFailed bool
}

// Calibrator fits one parameter set per ensemble member.
type Calibrator struct {
	cfg Config
	bus eventbus.EventBus
	log logger.Logger
}

// NewCalibrator validates cfg. bus may be nil.
func NewCalibrator(cfg Config, bus eventbus.EventBus, log logger.Logger) (*Calibrator, error) {
	if cfg.Minimizer == nil {
		cfg.Minimizer = NelderMead{Settings: DefaultSettings()}
	}
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Bounds.Contains(cfg.Start) {
		return nil, fmt.Errorf("%w: start %s outside box", ErrBounds, cfg.Start)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Calibrator{cfg: cfg, bus: bus, log: log}, nil
}

// Calibrate fits every member. Data errors (missing scenarios, bad indices,
// constant references) abort the run before any optimization starts.
func (c *Calibrator) Calibrate(ctx context.Context, members []Member) (Run, error) {
	run := Run{ID: uuid.NewString(), Started: time.Now()}
	if len(members) == 0 {
		return run, ErrNoMembers
	}
	objs := make([]*objective.Objective, len(members))
	for i, m := range members {
		o, err := objective.New(c.cfg.Forcing, m.Reference, c.cfg.Objective)
		if err != nil {
			return run, fmt.Errorf("member %s: %w", m.Name, err)
		}
		objs[i] = o
	}

	c.publish(events.RunStarted{RunID: run.ID, Members: len(members), Time: run.Started})
	c.log.Infof("calibration %s: %d members, warm start %t", run.ID, len(members), c.cfg.WarmStart)

	run.Results = make([]MemberResult, len(members))
	var err error
	if c.cfg.WarmStart || c.cfg.Workers == 1 {
		err = c.sequential(ctx, run.ID, members, objs, run.Results)
	} else {
		err = c.parallel(ctx, run.ID, members, objs, run.Results)
	}
	run.Duration = time.Since(run.Started)

	failed := 0
	for _, r := range run.Results {
		if r.Err != nil {
			failed++
		}
	}
	c.publish(events.RunCompleted{RunID: run.ID, Fitted: len(run.Fitted()), Failed: failed, Duration: run.Duration, Err: err})
	if err != nil {
		c.log.Errorf("calibration %s aborted: %v", run.ID, err)
		return run, err
	}
	c.log.Infof("calibration %s done in %s: %d fitted, %d failed", run.ID, run.Duration, len(run.Fitted()), failed)
	return run, nil
}

func (c *Calibrator) sequential(ctx context.Context, runID string, members []Member, objs []*objective.Objective, out []MemberResult) error {
	start := c.cfg.Start
	for i := range members {
		res, err := c.fitMember(ctx, runID, members[i], objs[i], start)
		out[i] = res
		if err != nil {
			return err
		}
		if res.Err == nil && c.cfg.WarmStart {
			start = res.Params
		}
	}
	return nil
}

func (c *Calibrator) parallel(ctx context.Context, runID string, members []Member, objs []*objective.Objective, out []MemberResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i := range members {
		g.Go(func() error {
			res, err := c.fitMember(gctx, runID, members[i], objs[i], c.cfg.Start)
			out[i] = res
			return err
		})
	}
	return g.Wait()
}

// fitMember returns a non-nil error only when the run must stop.
func (c *Calibrator) fitMember(ctx context.Context, runID string, m Member, o *objective.Objective, start discharge.Params) (MemberResult, error) {
	res := MemberResult{Member: m.Name, Scenarios: o.Scenarios()}
	r, err := c.cfg.Minimizer.Minimize(ctx, o.Evaluate, start, c.cfg.Bounds)
	if err != nil {
		res.Err = err
		c.publish(events.MemberFailed{RunID: runID, Member: m.Name, Err: err})
		c.log.Errorf("member %s: %v", m.Name, err)
		if c.cfg.SkipFailed && ctx.Err() == nil {
			return res, nil
		}
		return res, fmt.Errorf("member %s: %w", m.Name, err)
	}
	res.Result = r
	c.publish(events.MemberFitted{
		RunID:       runID,
		Member:      m.Name,
		Params:      r.Params,
		Objective:   r.Objective,
		Evaluations: r.Evaluations,
		Iterations:  r.Iterations,
		Status:      r.Status,
		Duration:    r.Runtime,
	})
	c.log.Infof("member %s: %s objective=%g", m.Name, r.Params, r.Objective)
	c.log.Debugw("member converged", map[string]any{
		"member":      m.Name,
		"status":      r.Status,
		"evaluations": r.Evaluations,
		"iterations":  r.Iterations,
		"scenarios":   res.Scenarios,
	})
	return res, nil
}

func (c *Calibrator) publish(ev eventbus.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

// MaxVolume returns the largest reference value found in the given scenario
// across members, or across all scenarios when scenario is empty. It is the
// single volume every simulation may lose.
func MaxVolume(members []Member, scenario string) (float64, error) {
	best := math.Inf(-1)
	for _, m := range members {
		for name, ref := range m.Reference {
			if scenario != "" && name != scenario {
				continue
			}
			for _, v := range ref.Values {
				best = math.Max(best, v)
			}
		}
	}
	if math.IsInf(best, -1) {
		return 0, fmt.Errorf("%w: no reference values for %q", ErrNoMembers, scenario)
	}
	return best, nil
}

// Project simulates every forcing scenario with each fitted member's
// parameters. The result maps scenario to one trajectory per member, in the
// order of results.
func Project(forcing map[string]series.Series, results []MemberResult, opts objective.Options) map[string][]series.Series {
	sens := opts.Sensitivity
	if sens == nil {
		sens = objective.DefaultSensitivity
	}
	out := make(map[string][]series.Series, len(forcing))
	for name, f := range forcing {
		trajs := make([]series.Series, 0, len(results))
		for _, r := range results {
			slr := discharge.Simulate(f.Values, r.Params, opts.MaxVolume, sens)
			trajs = append(trajs, series.Series{Index: f.Index, Values: slr})
		}
		out[name] = trajs
	}
	return out
}
