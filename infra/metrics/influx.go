package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/antsid/core/metrics"
	"github.com/kilianp07/antsid/infra/logger"
)

// InfluxSink writes fitted parameter sets to an InfluxDB instance using the
// official client, one point per member.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails, so a missing database never blocks a calibration.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordFit writes the fitted parameters of one member.
func (s *InfluxSink) RecordFit(rec coremetrics.FitRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("member_fit").
		AddTag("run_id", rec.RunID).
		AddTag("member", rec.Member).
		AddTag("status", rec.Status).
		AddField("sid_sens", rec.Params.SIDSens).
		AddField("fast_rate", rec.Params.FastRate).
		AddField("temp0", rec.Params.Temp0).
		AddField("temp_thresh", rec.Params.TempThresh).
		AddField("objective", rec.Objective).
		AddField("evaluations", rec.Evaluations).
		AddField("iterations", rec.Iterations).
		AddField("duration_ms", rec.Duration.Milliseconds()).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFailure writes a failed member.
func (s *InfluxSink) RecordFailure(rec coremetrics.FailureRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("member_failure").
		AddTag("run_id", rec.RunID).
		AddTag("member", rec.Member).
		AddField("error", rec.Error).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRun writes the run summary.
func (s *InfluxSink) RecordRun(rec coremetrics.RunRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("calibration_run").
		AddTag("run_id", rec.RunID).
		AddField("fitted", rec.Fitted).
		AddField("failed", rec.Failed).
		AddField("duration_ms", rec.Duration.Milliseconds()).
		AddField("error", rec.Error).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}
