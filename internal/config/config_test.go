package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	j, err := Parse([]byte(`
input: in
output: out
policy: Block
elimination_param: 0.02
workers: 4
timeout: 30s
method: STA
points:
  - {frequency: 10, error: 0.01}
  - {frequency: 1000, error: 0.05, unit: Hz}
sweep: {start: 1, stop: 1e4, points: 31, type: dec}
`))
	require.NoError(t, err)

	assert.Equal(t, "block", j.Policy)
	assert.Equal(t, 0.02, j.EliminationParam)
	assert.Equal(t, 4, j.Workers)
	assert.Equal(t, 30*time.Second, j.Timeout)
	assert.Equal(t, "max", j.Sorting, "default")
	assert.Equal(t, "branch", j.Inductors, "default")
	assert.Equal(t, "sta", j.Method)
	assert.Equal(t, Sweep{Start: 1, Stop: 1e4, Points: 31, Type: "DEC"}, j.Sweep)

	require.Len(t, j.Points, 2)
	assert.Equal(t, "rad", j.Points[0].Unit)
	w := j.Omegas()
	assert.Equal(t, 10.0, w[0])
	assert.InDelta(t, 2000*math.Pi, w[1], 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no input", "output: out\npoints: [{frequency: 1, error: 0.1}]"},
		{"no points", "input: a\noutput: b"},
		{"zero error", "input: a\noutput: b\npoints: [{frequency: 1, error: 0}]"},
		{"bad unit", "input: a\noutput: b\npoints: [{frequency: 1, error: 0.1, unit: deg}]"},
		{"bad policy", "input: a\noutput: b\npolicy: greedy\npoints: [{frequency: 1, error: 0.1}]"},
		{"bad method", "input: a\noutput: b\nmethod: nodal\npoints: [{frequency: 1, error: 0.1}]"},
		{"bad solver", "input: a\noutput: b\nsolver: qr\npoints: [{frequency: 1, error: 0.1}]"},
		{"column range", "input: a\noutput: b\nsorting: column\ncolumn: 1\npoints: [{frequency: 1, error: 0.1}]"},
		{"negative param", "input: a\noutput: b\nelimination_param: -1\npoints: [{frequency: 1, error: 0.1}]"},
		{"sweep order", "input: a\noutput: b\nsweep: {start: 10, stop: 1, points: 5, type: LIN}\npoints: [{frequency: 1, error: 0.1}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	for _, bad := range []string{"input: [unterminated", "input: a\nsweep: {stop: 10k}"} {
		_, err := Parse([]byte(bad))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalid)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input: in\noutput: out\npoints: [{frequency: 10, error: 0.05}]\n"), 0o644))

	j, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().MaxIterations, j.MaxIterations)
	assert.Equal(t, "tbt", j.Policy)
	assert.Equal(t, "mna", j.Method)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
