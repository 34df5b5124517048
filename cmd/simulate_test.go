package cmd

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of cmd and its children to its default so
// values set by one test do not leak into the next.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(t, c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t, rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeForcing(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "forcing.csv")
	require.NoError(t, os.WriteFile(p, []byte("year,A\n2000,0\n2001,5\n2002,5\n"), 0o644))
	return p
}

func TestSimulate_Primary(t *testing.T) {
	out, err := execute(t, "simulate", "--forcing", writeForcing(t), "-s", "A",
		"--model", "primary", "--volume", "100", "--sensitivity", "identity",
		"--sid-sens", "0", "--fast-rate", "10", "--temp0", "0", "--temp-thresh", "3")
	require.NoError(t, err)
	assert.Equal(t, "year,slr,volume,discharge\n2000,0,100,0\n2001,0,100,10\n2002,10,90,0\n", out)
}

func TestSimulate_Legacy(t *testing.T) {
	out, err := execute(t, "simulate", "--forcing", writeForcing(t), "-s", "A",
		"--model", "legacy", "--volume", "100", "--sensitivity", "identity",
		"--a", "0.01", "--b", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "2000,0,100,0", lines[1])
	// second step loses a*volume*b*T = 0.01*100*5 = 5
	assert.Equal(t, "2001,0,100,5", lines[2])
	assert.Equal(t, "2002,5,95,0", lines[3])
}

func TestSimulate_LegacyDefaultsToExponential(t *testing.T) {
	// no --sensitivity and no config file on disk: the legacy model must not
	// fall back to model.sensitivity
	out, err := execute(t, "simulate", "-c", filepath.Join(t.TempDir(), "missing.yaml"),
		"--forcing", writeForcing(t), "-s", "A",
		"--model", "legacy", "--volume", "100", "--a", "0.01", "--b", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	// step 0 loses a*V*exp(b*T[0]) = 0.01*100*e^0 = 1
	assert.Equal(t, "2000,0,100,1", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "2001,1,99,"), lines[2])
	d, err := strconv.ParseFloat(strings.TrimPrefix(lines[2], "2001,1,99,"), 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.01*99*math.Exp(5), d, 1e-9)
}

func TestSimulate_FlagsDoNotLeakBetweenRuns(t *testing.T) {
	_, err := execute(t, "simulate", "--forcing", writeForcing(t), "-s", "A",
		"--model", "legacy", "--volume", "100", "--sensitivity", "identity")
	require.NoError(t, err)
	assert.Equal(t, "legacy", simOpts.model)

	resetFlags(t, rootCmd)
	assert.Equal(t, "primary", simOpts.model)
	assert.Empty(t, simOpts.sensitivity)
	assert.Zero(t, simOpts.volume)
	assert.Equal(t, "config.yaml", cfgPath)
}

func TestSimulate_Errors(t *testing.T) {
	p := writeForcing(t)
	_, err := execute(t, "simulate", "--forcing", p, "-s", "B", "--model", "primary", "--volume", "100", "--sensitivity", "identity")
	assert.Error(t, err)
	_, err = execute(t, "simulate", "--forcing", p, "-s", "A", "--model", "tertiary", "--volume", "100", "--sensitivity", "identity")
	assert.Error(t, err)
	_, err = execute(t, "simulate", "--forcing", p, "-s", "A", "--model", "primary", "--volume", "100", "--sensitivity", "cubic")
	assert.Error(t, err)
}
