// Package export writes calibration outputs as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/kilianp07/antsid/core/discharge"
	"github.com/kilianp07/antsid/core/fit"
	"github.com/kilianp07/antsid/core/quantile"
)

// ParamRow is one fitted member in the parameter ensemble.
type ParamRow struct {
	Member      string           `json:"member"`
	Params      discharge.Params `json:"params"`
	Objective   float64          `json:"objective"`
	Evaluations int              `json:"evaluations"`
	Iterations  int              `json:"iterations"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
}

// Rows converts member results to export rows.
func Rows(results []fit.MemberResult) []ParamRow {
	out := make([]ParamRow, len(results))
	for i, r := range results {
		out[i] = ParamRow{
			Member:      r.Member,
			Params:      r.Params,
			Objective:   r.Objective,
			Evaluations: r.Evaluations,
			Iterations:  r.Iterations,
			Status:      r.Status,
		}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteParamsJSON writes the parameter ensemble to w in JSON format.
func WriteParamsJSON(w io.Writer, rows []ParamRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteParamsCSV writes the parameter ensemble to w in CSV format, one row
// per member.
func WriteParamsCSV(w io.Writer, rows []ParamRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"member", "sid_sens", "fast_rate", "temp0", "temp_thresh", "objective", "evaluations", "iterations", "status", "error"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Member,
			ftoa(r.Params.SIDSens),
			ftoa(r.Params.FastRate),
			ftoa(r.Params.Temp0),
			ftoa(r.Params.TempThresh),
			ftoa(r.Objective),
			strconv.Itoa(r.Evaluations),
			strconv.Itoa(r.Iterations),
			r.Status,
			r.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func sortedBands(bands map[string]quantile.Band) []quantile.Band {
	out := make([]quantile.Band, 0, len(bands))
	for _, b := range bands {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scenario < out[j].Scenario })
	return out
}

// WriteBandsJSON writes quantile bands sorted by scenario.
func WriteBandsJSON(w io.Writer, bands map[string]quantile.Band) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sortedBands(bands))
}

// WriteBandsCSV writes quantile bands in wide format: one row per scenario
// and year, one column per level (q0.05, q0.5, ...). All bands must share
// the same levels.
func WriteBandsCSV(w io.Writer, bands map[string]quantile.Band) error {
	sorted := sortedBands(bands)
	cw := csv.NewWriter(w)
	var levels []float64
	if len(sorted) > 0 {
		levels = sorted[0].Levels
	}
	header := []string{"scenario", "year"}
	for _, l := range levels {
		header = append(header, "q"+ftoa(l))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, b := range sorted {
		if len(b.Levels) != len(levels) {
			return fmt.Errorf("band %s: %d levels, want %d", b.Scenario, len(b.Levels), len(levels))
		}
		for t, year := range b.Index {
			rec := []string{b.Scenario, strconv.Itoa(year)}
			for l := range b.Levels {
				rec = append(rec, ftoa(b.Values[l][t]))
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrajectoryCSV writes a simulated trajectory: year, sea-level
// contribution, remaining volume and discharge per step.
func WriteTrajectoryCSV(w io.Writer, index []int, tr discharge.Trajectory) error {
	if len(index) != len(tr.SLR) {
		return fmt.Errorf("trajectory has %d values for %d years", len(tr.SLR), len(index))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"year", "slr", "volume", "discharge"}); err != nil {
		return err
	}
	for i, year := range index {
		rec := []string{strconv.Itoa(year), ftoa(tr.SLR[i]), ftoa(tr.Volume[i]), ftoa(tr.Discharge[i])}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
