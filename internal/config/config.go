// Package config loads reduction jobs from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/edp1096/toy-mor/internal/consts"
)

var ErrInvalid = errors.New("config: invalid job")

var validate = validator.New()

// Point is one reference frequency with its allowed relative error.
type Point struct {
	Frequency float64 `yaml:"frequency" validate:"gt=0"`
	Error     float64 `yaml:"error" validate:"gt=0"`
	Unit      string  `yaml:"unit" validate:"oneof=rad hz"`
}

// Omega returns the frequency in rad/s.
func (p Point) Omega() float64 {
	if p.Unit == "hz" {
		return 2 * math.Pi * p.Frequency
	}
	return p.Frequency
}

// Sweep describes the frequency grid used for display, in Hz.
type Sweep struct {
	Start  float64 `yaml:"start" validate:"gt=0"`
	Stop   float64 `yaml:"stop" validate:"gtfield=Start"`
	Points int     `yaml:"points" validate:"gte=2"`
	Type   string  `yaml:"type" validate:"oneof=DEC OCT LIN"`
}

type Job struct {
	Input            string        `yaml:"input" validate:"required"`
	Output           string        `yaml:"output" validate:"required"`
	Policy           string        `yaml:"policy" validate:"oneof=tbt block"`
	EliminationParam float64       `yaml:"elimination_param" validate:"gte=0"`
	Sorting          string        `yaml:"sorting" validate:"oneof=max avg column"`
	Column           int           `yaml:"column" validate:"gte=0"`
	BlockDecades     float64       `yaml:"block_decades" validate:"gt=0"`
	Workers          int           `yaml:"workers" validate:"gte=0"`
	MaxIterations    int           `yaml:"max_iterations" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
	Solver           string        `yaml:"solver" validate:"oneof=dense sparse"`
	Method           string        `yaml:"method" validate:"oneof=mna sta"`
	Inductors        string        `yaml:"inductors" validate:"oneof=admittance branch"`
	Points           []Point       `yaml:"points" validate:"required,min=1,dive"`
	Sweep            Sweep         `yaml:"sweep"`
	Plot             string        `yaml:"plot"`
}

// Default returns a job with every optional field set.
func Default() Job {
	return Job{
		Policy:           "tbt",
		EliminationParam: consts.DefaultEliminationParam,
		Sorting:          "max",
		BlockDecades:     consts.DefaultBlockDecades,
		MaxIterations:    consts.DefaultMaxIterations,
		Solver:           "dense",
		Method:           "mna",
		Inductors:        "branch",
		Sweep:            Sweep{Start: 1, Stop: 1e6, Points: 61, Type: "DEC"},
	}
}

func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a job over the defaults and validates it.
func Parse(data []byte) (*Job, error) {
	job := Default()
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	job.normalize()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

func (j *Job) normalize() {
	j.Policy = strings.ToLower(j.Policy)
	j.Sorting = strings.ToLower(j.Sorting)
	j.Solver = strings.ToLower(j.Solver)
	j.Method = strings.ToLower(j.Method)
	j.Inductors = strings.ToLower(j.Inductors)
	j.Sweep.Type = strings.ToUpper(j.Sweep.Type)
	for i := range j.Points {
		j.Points[i].Unit = strings.ToLower(j.Points[i].Unit)
		if j.Points[i].Unit == "" {
			j.Points[i].Unit = "rad"
		}
	}
}

// Validate checks field ranges and that column sorting names an existing
// reference point.
func (j *Job) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if j.Sorting == "column" && j.Column >= len(j.Points) {
		return fmt.Errorf("%w: column %d out of range for %d points", ErrInvalid, j.Column, len(j.Points))
	}
	return nil
}

// Omegas returns the reference frequencies in rad/s.
func (j *Job) Omegas() []float64 {
	w := make([]float64, len(j.Points))
	for i, p := range j.Points {
		w[i] = p.Omega()
	}
	return w
}
