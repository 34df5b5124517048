// Package quantile summarizes an ensemble of fitted trajectories as
// cross-member quantile bands relative to a base year.
package quantile

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/antsid/core/series"
)

var (
	// ErrNoMembers is returned for a scenario without trajectories.
	ErrNoMembers = errors.New("no trajectories to aggregate")
	// ErrLevel reports a quantile level outside [0, 1].
	ErrLevel = errors.New("quantile level outside [0, 1]")
	// ErrMethod reports an unknown estimation method name.
	ErrMethod = errors.New("unknown quantile method")
)

// DefaultLevels are the likely and very likely ranges plus the median.
var DefaultLevels = []float64{0.05, 0.17, 0.5, 0.83, 0.95}

// Method selects the quantile estimator.
type Method = stat.CumulantKind

// ParseMethod resolves "empirical" (default) or "lininterp".
func ParseMethod(name string) (Method, error) {
	switch name {
	case "", "empirical":
		return stat.Empirical, nil
	case "lininterp", "linear":
		return stat.LinInterp, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrMethod, name)
	}
}

// Band holds one row of values per level. Values[l][t] is the Levels[l]
// quantile across members at Index[t].
type Band struct {
	Scenario string      `json:"scenario"`
	BaseYear int         `json:"base_year"`
	Index    []int       `json:"index"`
	Levels   []float64   `json:"levels"`
	Values   [][]float64 `json:"values"`
}

// Aggregate computes quantile bands over members. Every member must share
// the same index and contain baseYear; each is re-baselined to zero there
// before the quantiles are taken.
func Aggregate(members []series.Series, baseYear int, levels []float64, method Method) (Band, error) {
	if len(members) == 0 {
		return Band{}, ErrNoMembers
	}
	for _, l := range levels {
		if !(l >= 0 && l <= 1) {
			return Band{}, fmt.Errorf("%w: %g", ErrLevel, l)
		}
	}
	index := members[0].Index
	rebased := make([][]float64, len(members))
	for i, m := range members {
		if !slices.Equal(m.Index, index) {
			return Band{}, fmt.Errorf("%w: member %d", series.ErrIndexMismatch, i)
		}
		r, err := m.Rebase(baseYear)
		if err != nil {
			return Band{}, fmt.Errorf("member %d: %w", i, err)
		}
		rebased[i] = r.Values
	}

	band := Band{
		BaseYear: baseYear,
		Index:    append([]int(nil), index...),
		Levels:   append([]float64(nil), levels...),
		Values:   make([][]float64, len(levels)),
	}
	for l := range levels {
		band.Values[l] = make([]float64, len(index))
	}
	column := make([]float64, len(members))
	for t := range index {
		for i := range rebased {
			column[i] = rebased[i][t]
		}
		sort.Float64s(column)
		for l, q := range levels {
			band.Values[l][t] = stat.Quantile(q, method, column, nil)
		}
	}
	return band, nil
}

// AggregateAll runs Aggregate for every scenario.
func AggregateAll(trajectories map[string][]series.Series, baseYear int, levels []float64, method Method) (map[string]Band, error) {
	out := make(map[string]Band, len(trajectories))
	for name, members := range trajectories {
		b, err := Aggregate(members, baseYear, levels, method)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", name, err)
		}
		b.Scenario = name
		out[name] = b
	}
	return out, nil
}
