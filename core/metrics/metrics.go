package metrics

import (
	"time"

	"github.com/kilianp07/antsid/core/discharge"
)

// FitRecord is the outcome of fitting one ensemble member.
type FitRecord struct {
	RunID       string
	Member      string
	Params      discharge.Params
	Objective   float64
	Evaluations int
	Iterations  int
	Status      string
	Duration    time.Duration
	Time        time.Time
}

// MetricsSink records fitted members for observability purposes.
type MetricsSink interface {
	RecordFit(rec FitRecord) error
}

// FailureRecord describes a member the optimizer could not fit.
type FailureRecord struct {
	RunID  string
	Member string
	Error  string
	Time   time.Time
}

// FailureRecorder records member failures.
type FailureRecorder interface {
	RecordFailure(rec FailureRecord) error
}

// RunRecord summarizes a finished calibration run.
type RunRecord struct {
	RunID    string
	Fitted   int
	Failed   int
	Duration time.Duration
	Error    string
	Time     time.Time
}

// RunRecorder records run summaries.
type RunRecorder interface {
	RecordRun(rec RunRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordFit(FitRecord) error         { return nil }
func (NopSink) RecordFailure(FailureRecord) error { return nil }
func (NopSink) RecordRun(RunRecord) error         { return nil }
