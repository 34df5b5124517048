package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/antsid/core/events"
	coremetrics "github.com/kilianp07/antsid/core/metrics"
	"github.com/kilianp07/antsid/infra/logger"
	"github.com/kilianp07/antsid/internal/eventbus"
)

// StartEventCollector subscribes to bus and forwards calibration events to
// sink. Sinks that do not implement FailureRecorder or RunRecorder only see
// fits. The returned channel is closed once the subscription ends, either
// because ctx was canceled or because the bus was closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	ch := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Errorf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	now := time.Now()
	switch e := ev.(type) {
	case events.MemberFitted:
		return sink.RecordFit(coremetrics.FitRecord{
			RunID:       e.RunID,
			Member:      e.Member,
			Params:      e.Params,
			Objective:   e.Objective,
			Evaluations: e.Evaluations,
			Iterations:  e.Iterations,
			Status:      e.Status,
			Duration:    e.Duration,
			Time:        now,
		})
	case events.MemberFailed:
		fr, ok := sink.(coremetrics.FailureRecorder)
		if !ok {
			return nil
		}
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return fr.RecordFailure(coremetrics.FailureRecord{RunID: e.RunID, Member: e.Member, Error: msg, Time: now})
	case events.RunCompleted:
		rr, ok := sink.(coremetrics.RunRecorder)
		if !ok {
			return nil
		}
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return rr.RecordRun(coremetrics.RunRecord{
			RunID:    e.RunID,
			Fitted:   e.Fitted,
			Failed:   e.Failed,
			Duration: e.Duration,
			Error:    msg,
			Time:     now,
		})
	}
	return nil
}
