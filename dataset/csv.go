package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/antsid/core/series"
)

// ReadForcingCSV reads a forcing table: a year column followed by one
// temperature column per scenario. Every cell must be filled.
func ReadForcingCSV(r io.Reader) (map[string]series.Series, error) {
	return readTable(r, false)
}

// ReadReferenceCSV reads one scenario's reference ensemble: a year column
// followed by one column per member. Empty cells are skipped, so members
// may cover different year ranges. A member with no values is dropped.
func ReadReferenceCSV(r io.Reader) (map[string]series.Series, error) {
	return readTable(r, true)
}

// LoadForcingCSV reads the forcing table at path.
func LoadForcingCSV(path string) (map[string]series.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadForcingCSV(f)
}

// LoadReferenceCSV reads the reference table at path.
func LoadReferenceCSV(path string) (map[string]series.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadReferenceCSV(f)
}

func readTable(r io.Reader, allowGaps bool) (map[string]series.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: need a year column and at least one data column", ErrFormat)
	}
	names := header[1:]
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			return nil, fmt.Errorf("%w: empty or duplicate column %q", ErrFormat, n)
		}
		seen[n] = true
	}
	cols := make([]series.Series, len(names))
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
		}
		year, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: year %q", ErrFormat, line, rec[0])
		}
		for i, cell := range rec[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				if allowGaps {
					continue
				}
				return nil, fmt.Errorf("%w: line %d: missing value for %s", ErrFormat, line, names[i])
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrFormat, line, names[i], err)
			}
			cols[i].Index = append(cols[i].Index, year)
			cols[i].Values = append(cols[i].Values, v)
		}
	}
	out := make(map[string]series.Series, len(names))
	for i, name := range names {
		if cols[i].Len() == 0 {
			if allowGaps {
				continue
			}
			return nil, fmt.Errorf("%w: column %s has no rows", ErrFormat, name)
		}
		if err := cols[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", ErrFormat, name, err)
		}
		out[name] = cols[i]
	}
	return out, nil
}
