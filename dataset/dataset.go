// Package dataset loads temperature forcing and reference sea-level
// ensembles from CSV or YAML files and turns them into the series the
// calibration works on.
package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kilianp07/antsid/core/fit"
	"github.com/kilianp07/antsid/core/series"
)

// ErrFormat reports a malformed input file.
var ErrFormat = errors.New("invalid dataset format")

// Dataset is the input of a calibration: one forcing series per scenario
// and the reference ensemble.
type Dataset struct {
	Forcing map[string]series.Series
	Members []fit.Member
}

// Scenarios returns the forcing scenario names in sorted order.
func (d Dataset) Scenarios() []string {
	out := make([]string, 0, len(d.Forcing))
	for name := range d.Forcing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Members regroups reference series given per scenario and member into one
// fit.Member per member name, sorted by name. A member absent from a
// scenario simply does not cover it.
func Members(byScenario map[string]map[string]series.Series) []fit.Member {
	index := map[string]int{}
	var out []fit.Member
	scenarios := make([]string, 0, len(byScenario))
	for name := range byScenario {
		scenarios = append(scenarios, name)
	}
	sort.Strings(scenarios)
	for _, scen := range scenarios {
		for member, s := range byScenario[scen] {
			i, ok := index[member]
			if !ok {
				i = len(out)
				index[member] = i
				out = append(out, fit.Member{Name: member, Reference: map[string]series.Series{}})
			}
			out[i].Reference[scen] = s
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Load reads a dataset. A YAML forcing path with no reference paths is
// read as a single YAML dataset; otherwise forcing and each scenario's
// reference ensemble are read from CSV.
func Load(forcingPath string, referencePaths map[string]string) (Dataset, error) {
	if isYAML(forcingPath) && len(referencePaths) == 0 {
		return LoadYAML(forcingPath)
	}
	forcing, err := LoadForcingCSV(forcingPath)
	if err != nil {
		return Dataset{}, err
	}
	refs := make(map[string]map[string]series.Series, len(referencePaths))
	for scen, path := range referencePaths {
		if _, ok := forcing[scen]; !ok {
			return Dataset{}, fmt.Errorf("%w: reference scenario %q has no forcing column", ErrFormat, scen)
		}
		m, err := LoadReferenceCSV(path)
		if err != nil {
			return Dataset{}, fmt.Errorf("reference %q: %w", scen, err)
		}
		refs[scen] = m
	}
	return Dataset{Forcing: forcing, Members: Members(refs)}, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
