package plugins

import "github.com/kilianp07/antsid/core/fit"

// DefaultMinimizer is used when the configuration names none.
const DefaultMinimizer = "nelder_mead"

func init() {
	RegisterMinimizer(DefaultMinimizer, func(s fit.Settings) (fit.Minimizer, error) {
		return fit.NelderMead{Settings: s}, nil
	})
}
