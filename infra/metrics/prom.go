package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/antsid/core/metrics"
)

// PromSink records calibration progress in Prometheus metrics.
type PromSink struct {
	fits        *prometheus.CounterVec
	failures    prometheus.Counter
	evaluations prometheus.Counter
	objective   prometheus.Histogram
	duration    prometheus.Histogram
	lastRun     *prometheus.GaugeVec
}

// NewPromSink registers calibration metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		fits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "antsid_member_fits_total",
			Help: "Ensemble members fitted, by optimizer termination status",
		}, []string{"status"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "antsid_member_failures_total",
			Help: "Ensemble members the optimizer could not fit",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "antsid_objective_evaluations_total",
			Help: "Objective function evaluations across all fits",
		}),
		objective: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "antsid_member_objective",
			Help:    "Best normalized least-squares error per fitted member",
			Buckets: prometheus.ExponentialBuckets(1e-4, 10, 9),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "antsid_member_fit_seconds",
			Help:    "Wall time spent fitting one member",
			Buckets: prometheus.DefBuckets,
		}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "antsid_last_run_members",
			Help: "Members of the last completed run, by outcome",
		}, []string{"outcome"}),
	}
	var err error
	s.fits = register(reg, s.fits, &err)
	s.failures = register(reg, s.failures, &err)
	s.evaluations = register(reg, s.evaluations, &err)
	s.objective = register(reg, s.objective, &err)
	s.duration = register(reg, s.duration, &err)
	s.lastRun = register(reg, s.lastRun, &err)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
// The first failure is kept in errp.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if *errp != nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		*errp = err
	}
	return c
}

// RecordFit counts the fit and observes its objective, cost and duration.
func (s *PromSink) RecordFit(rec coremetrics.FitRecord) error {
	s.fits.WithLabelValues(rec.Status).Inc()
	s.evaluations.Add(float64(rec.Evaluations))
	s.objective.Observe(rec.Objective)
	s.duration.Observe(rec.Duration.Seconds())
	return nil
}

// RecordFailure counts a failed member.
func (s *PromSink) RecordFailure(coremetrics.FailureRecord) error {
	s.failures.Inc()
	return nil
}

// RecordRun sets the last-run gauges.
func (s *PromSink) RecordRun(rec coremetrics.RunRecord) error {
	s.lastRun.WithLabelValues("fitted").Set(float64(rec.Fitted))
	s.lastRun.WithLabelValues("failed").Set(float64(rec.Failed))
	return nil
}
