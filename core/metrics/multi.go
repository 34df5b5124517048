package metrics

import "errors"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordFit forwards the record to all sinks. A failing sink does not keep
// the record from the others; the failures are joined.
func (m *MultiSink) RecordFit(rec FitRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordFit(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordFailure forwards failures to sinks implementing FailureRecorder.
func (m *MultiSink) RecordFailure(rec FailureRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(FailureRecorder); ok {
			if err := r.RecordFailure(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordRun forwards run summaries to sinks implementing RunRecorder.
func (m *MultiSink) RecordRun(rec RunRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(RunRecorder); ok {
			if err := r.RecordRun(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
