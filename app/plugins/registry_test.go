package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/antsid/core/fit"
)

func TestNewMinimizer(t *testing.T) {
	m, err := NewMinimizer(DefaultMinimizer, fit.Settings{Tolerance: 1e-3})
	require.NoError(t, err)
	nm, ok := m.(fit.NelderMead)
	require.True(t, ok)
	assert.Equal(t, 1e-3, nm.Settings.Tolerance)

	_, err = NewMinimizer("lbfgs", fit.Settings{})
	assert.ErrorIs(t, err, ErrUnknownMinimizer)
	assert.Contains(t, MinimizerNames(), DefaultMinimizer)
}
