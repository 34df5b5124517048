package dataset

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/antsid/core/series"
)

// yamlSeries is either an explicit index or a start year for consecutive
// values.
type yamlSeries struct {
	Start  int       `yaml:"start"`
	Index  []int     `yaml:"index"`
	Values []float64 `yaml:"values"`
}

type yamlDataset struct {
	Forcing   map[string]yamlSeries            `yaml:"forcing"`
	Reference map[string]map[string]yamlSeries `yaml:"reference"`
}

func (y yamlSeries) series() (series.Series, error) {
	if len(y.Index) == 0 {
		return series.Range(y.Start, y.Values), nil
	}
	return series.New(y.Index, y.Values)
}

// ReadYAML decodes a dataset document of the form
//
//	forcing:
//	  RCP85: {start: 1850, values: [...]}
//	reference:
//	  RCP85:
//	    member1: {index: [...], values: [...]}
func ReadYAML(r io.Reader) (Dataset, error) {
	var doc yamlDataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(doc.Forcing) == 0 {
		return Dataset{}, fmt.Errorf("%w: no forcing scenarios", ErrFormat)
	}
	forcing := make(map[string]series.Series, len(doc.Forcing))
	for name, ys := range doc.Forcing {
		s, err := ys.series()
		if err != nil {
			return Dataset{}, fmt.Errorf("%w: forcing %s: %v", ErrFormat, name, err)
		}
		forcing[name] = s
	}
	refs := make(map[string]map[string]series.Series, len(doc.Reference))
	for scen, members := range doc.Reference {
		if _, ok := forcing[scen]; !ok {
			return Dataset{}, fmt.Errorf("%w: reference scenario %q has no forcing", ErrFormat, scen)
		}
		refs[scen] = make(map[string]series.Series, len(members))
		for name, ys := range members {
			s, err := ys.series()
			if err != nil {
				return Dataset{}, fmt.Errorf("%w: reference %s/%s: %v", ErrFormat, scen, name, err)
			}
			refs[scen][name] = s
		}
	}
	return Dataset{Forcing: forcing, Members: Members(refs)}, nil
}

// LoadYAML reads the YAML dataset at path.
func LoadYAML(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()
	return ReadYAML(f)
}
