package plugins

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/antsid/core/fit"
)

// ErrUnknownMinimizer is returned for an unregistered optimizer name.
var ErrUnknownMinimizer = errors.New("unknown minimizer")

// MinimizerFactory builds an optimizer from its tuning settings.
type MinimizerFactory func(settings fit.Settings) (fit.Minimizer, error)

var Minimizers = map[string]MinimizerFactory{}

func RegisterMinimizer(name string, f MinimizerFactory) { Minimizers[name] = f }

// NewMinimizer builds the minimizer registered under name.
func NewMinimizer(name string, settings fit.Settings) (fit.Minimizer, error) {
	f, ok := Minimizers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownMinimizer, name, MinimizerNames())
	}
	return f(settings)
}

// MinimizerNames lists registered minimizers in sorted order.
func MinimizerNames() []string {
	out := make([]string, 0, len(Minimizers))
	for name := range Minimizers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
