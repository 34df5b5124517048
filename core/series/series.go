// Package series holds annual, year-indexed time series and the index
// operations the objective needs: validation, exact alignment and anchoring.
package series

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrInvalidSeries reports a series whose index and values disagree in
	// length or whose index is not strictly increasing.
	ErrInvalidSeries = errors.New("invalid series")
	// ErrIndexMismatch reports a year of one series absent from another.
	ErrIndexMismatch = errors.New("index mismatch")
	// ErrYearNotFound reports a lookup of a year absent from the index.
	ErrYearNotFound = errors.New("year not found")
)

// Series is an ordered sequence of values indexed by year.
type Series struct {
	Index  []int
	Values []float64
}

// New builds a Series and validates it.
func New(index []int, values []float64) (Series, error) {
	s := Series{Index: index, Values: values}
	if err := s.Validate(); err != nil {
		return Series{}, err
	}
	return s, nil
}

// Range builds a series for consecutive years starting at first.
func Range(first int, values []float64) Series {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = first + i
	}
	return Series{Index: idx, Values: values}
}

// Len returns the number of samples.
func (s Series) Len() int { return len(s.Values) }

// Validate checks the structural invariants of the series.
func (s Series) Validate() error {
	if len(s.Index) != len(s.Values) {
		return fmt.Errorf("%w: %d years for %d values", ErrInvalidSeries, len(s.Index), len(s.Values))
	}
	for i := 1; i < len(s.Index); i++ {
		if s.Index[i] <= s.Index[i-1] {
			return fmt.Errorf("%w: index not strictly increasing at year %d", ErrInvalidSeries, s.Index[i])
		}
	}
	return nil
}

// Position returns the position of year in the index.
func (s Series) Position(year int) (int, error) {
	i := sort.SearchInts(s.Index, year)
	if i == len(s.Index) || s.Index[i] != year {
		return -1, fmt.Errorf("%w: %d", ErrYearNotFound, year)
	}
	return i, nil
}

// At returns the value recorded for year.
func (s Series) At(year int) (float64, error) {
	i, err := s.Position(year)
	if err != nil {
		return 0, err
	}
	return s.Values[i], nil
}

// Span returns max - min of the values, or 0 for an empty series.
func (s Series) Span() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return floats.Max(s.Values) - floats.Min(s.Values)
}

// Rebase returns a copy of the series shifted so that its value at year is 0.
func (s Series) Rebase(year int) (Series, error) {
	anchor, err := s.At(year)
	if err != nil {
		return Series{}, err
	}
	out := Series{Index: append([]int(nil), s.Index...), Values: make([]float64, len(s.Values))}
	for i, v := range s.Values {
		out.Values[i] = v - anchor
	}
	return out, nil
}

// Align returns, for each year of sub, its position in s. Every year of sub
// must be present in s.
func (s Series) Align(sub Series) ([]int, error) {
	pos := make([]int, len(sub.Index))
	for i, year := range sub.Index {
		p := sort.SearchInts(s.Index, year)
		if p == len(s.Index) || s.Index[p] != year {
			return nil, fmt.Errorf("%w: year %d", ErrIndexMismatch, year)
		}
		pos[i] = p
	}
	return pos, nil
}
