package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kilianp07/antsid/app/plugins"
	"github.com/kilianp07/antsid/config"
	"github.com/kilianp07/antsid/core/fit"
	coremetrics "github.com/kilianp07/antsid/core/metrics"
	"github.com/kilianp07/antsid/core/objective"
	"github.com/kilianp07/antsid/core/quantile"
	"github.com/kilianp07/antsid/dataset"
	"github.com/kilianp07/antsid/infra/logger"
	"github.com/kilianp07/antsid/infra/metrics"
	"github.com/kilianp07/antsid/infra/store"
	"github.com/kilianp07/antsid/internal/eventbus"
	"github.com/kilianp07/antsid/pkg/export"
)

// ErrNoStore is returned by result queries when persistence is disabled.
var ErrNoStore = errors.New("no store configured")

// Service wires the configuration to the calibration pipeline: dataset
// loading, ensemble fitting, persistence, metrics, quantile bands and export.
type Service struct {
	cfg   *config.Config
	sink  coremetrics.MetricsSink
	store *store.SQLiteStore
	log   logger.Logger
}

// Report is the outcome of one calibration.
type Report struct {
	Run       fit.Run
	MaxVolume float64
	Bands     map[string]quantile.Band
	Files     []string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logg := logger.New("service")
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	svc := &Service{cfg: cfg, sink: sink, log: logg}
	if cfg.Store.Path != "" {
		st, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			closeSink(sink)
			return nil, fmt.Errorf("store: %w", err)
		}
		svc.store = st
	}
	return svc, nil
}

// Options resolves the objective options for ds, deriving the shared
// maximum volume from the ensemble when it is not configured.
func (s *Service) Options(ds dataset.Dataset) (objective.Options, error) {
	mc := s.cfg.Model
	maxVol := mc.MaxVolume
	if maxVol == 0 {
		v, err := fit.MaxVolume(ds.Members, mc.MaxVolumeScenario)
		if err != nil {
			return objective.Options{}, fmt.Errorf("max volume: %w", err)
		}
		maxVol = v
	}
	return objective.Options{
		MaxVolume:   maxVol,
		Sensitivity: mc.SensitivityFunc(),
		AnomalyYear: mc.AnomalyYear,
		Workers:     mc.ObjectiveWorkers,
	}, nil
}

// Calibrate loads the dataset, fits every member and writes the outputs.
func (s *Service) Calibrate(ctx context.Context) (Report, error) {
	var rep Report
	ds, err := dataset.Load(s.cfg.Data.Forcing, s.cfg.Data.Reference)
	if err != nil {
		return rep, fmt.Errorf("load dataset: %w", err)
	}
	s.log.Infof("dataset: %d scenarios, %d members", len(ds.Forcing), len(ds.Members))
	opts, err := s.Options(ds)
	if err != nil {
		return rep, err
	}
	rep.MaxVolume = opts.MaxVolume

	minimizer, err := plugins.NewMinimizer(s.cfg.Fit.Method, s.cfg.Fit.Settings)
	if err != nil {
		return rep, err
	}
	bus := eventbus.New()
	cal, err := fit.NewCalibrator(fit.Config{
		Minimizer:  minimizer,
		Forcing:    ds.Forcing,
		Objective:  opts,
		Start:      *s.cfg.Fit.Start,
		Bounds:     s.cfg.Fit.Bounds(),
		WarmStart:  s.cfg.Fit.WarmStart,
		Workers:    s.cfg.Fit.Workers,
		SkipFailed: s.cfg.Fit.SkipFailed,
	}, bus, logger.New("calibrator"))
	if err != nil {
		return rep, err
	}

	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	done := metrics.StartEventCollector(ctx, bus, s.sink)
	run, err := cal.Calibrate(ctx, ds.Members)
	bus.Close()
	<-done
	if n := bus.Dropped(); n > 0 {
		s.log.Warnf("%d calibration events dropped before reaching the metrics sink", n)
	}
	rep.Run = run
	if err != nil {
		return rep, err
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			return rep, fmt.Errorf("save run: %w", err)
		}
	}
	if s.cfg.Quantiles.On() && len(run.Fitted()) > 0 {
		rep.Bands, err = s.bands(ds, run, opts)
		if err != nil {
			return rep, err
		}
	}
	rep.Files, err = s.write(run, rep.Bands)
	return rep, err
}

func (s *Service) bands(ds dataset.Dataset, run fit.Run, opts objective.Options) (map[string]quantile.Band, error) {
	qc := s.cfg.Quantiles
	method, err := quantile.ParseMethod(qc.Method)
	if err != nil {
		return nil, err
	}
	base := qc.BaseYear
	if base == 0 {
		base = opts.AnomalyYear
	}
	trajs := fit.Project(ds.Forcing, run.Fitted(), opts)
	bands, err := quantile.AggregateAll(trajs, base, qc.Levels, method)
	if err != nil {
		return nil, fmt.Errorf("quantiles: %w", err)
	}
	return bands, nil
}

func (s *Service) write(run fit.Run, bands map[string]quantile.Band) ([]string, error) {
	oc := s.cfg.Output
	if err := os.MkdirAll(oc.Dir, 0o755); err != nil {
		return nil, err
	}
	var files []string
	rows := export.Rows(run.Results)
	p := filepath.Join(oc.Dir, "params."+oc.Format)
	if err := writeFile(p, func(w io.Writer) error {
		if oc.Format == "csv" {
			return export.WriteParamsCSV(w, rows)
		}
		return export.WriteParamsJSON(w, rows)
	}); err != nil {
		return files, err
	}
	files = append(files, p)
	if len(bands) > 0 {
		p := filepath.Join(oc.Dir, "bands."+oc.Format)
		if err := writeFile(p, func(w io.Writer) error {
			if oc.Format == "csv" {
				return export.WriteBandsCSV(w, bands)
			}
			return export.WriteBandsJSON(w, bands)
		}); err != nil {
			return files, err
		}
		files = append(files, p)
	}
	return files, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Runs lists stored calibration runs.
func (s *Service) Runs(ctx context.Context) ([]store.RunInfo, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.ListRuns(ctx)
}

// Results returns the stored parameter ensemble of runID, or of the latest
// run when runID is empty.
func (s *Service) Results(ctx context.Context, runID string) (string, []store.Record, error) {
	if s.store == nil {
		return "", nil, ErrNoStore
	}
	if runID == "" {
		id, err := s.store.LatestRun(ctx)
		if err != nil {
			return "", nil, err
		}
		runID = id
	}
	recs, err := s.store.ListResults(ctx, runID)
	return runID, recs, err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	closeSink(s.sink)
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func closeSink(sink coremetrics.MetricsSink) {
	if m, ok := sink.(*coremetrics.MultiSink); ok {
		for _, inner := range m.Sinks {
			closeSink(inner)
		}
		return
	}
	if c, ok := sink.(io.Closer); ok {
		_ = c.Close()
	}
}
