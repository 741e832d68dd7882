package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"chambersim.ai/internal/sim/chambergen"
)

// Tuning is the on-disk run configuration (tuning.yaml). Command-line
// arguments override it field by field.
type Tuning struct {
	Speed   int    `yaml:"speed"`
	Chamber string `yaml:"chamber"`

	FramesDir string `yaml:"frames_dir"`
	IndexPath string `yaml:"index_path"`

	Generator Generator `yaml:"generator"`
	Bench     Bench     `yaml:"bench"`
	View      View      `yaml:"view"`
}

type Generator struct {
	Size        int `yaml:"size"`
	ApproxLeft  int `yaml:"approx_left"`
	ApproxRight int `yaml:"approx_right"`
	Count       int `yaml:"count"`
}

type Bench struct {
	// FallbackSpeed is used for chambers too narrow for width-derived speed.
	FallbackSpeed int `yaml:"fallback_speed"`
	// EchoBelow prints generated chambers narrower than this.
	EchoBelow int `yaml:"echo_below"`
}

type View struct {
	TickMs int `yaml:"tick_ms"`
}

func Defaults() Tuning {
	return Tuning{
		Speed: 1,
		Generator: Generator{
			Size:        10_000_000,
			ApproxLeft:  2_000_000,
			ApproxRight: 2_000_000,
			Count:       10,
		},
		Bench: Bench{FallbackSpeed: 2, EchoBelow: 200},
		View:  View{TickMs: 250},
	}
}

// Load reads path on top of Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Speed <= 0 {
		return fmt.Errorf("speed must be > 0, got %d", t.Speed)
	}
	if t.Bench.FallbackSpeed <= 0 {
		return errors.New("bench.fallback_speed must be > 0")
	}
	if t.View.TickMs < 0 {
		return errors.New("view.tick_ms must be >= 0")
	}
	return t.GeneratorConfig().Validate()
}

// GeneratorConfig maps the generator section onto chambergen.
func (t Tuning) GeneratorConfig() chambergen.Config {
	return chambergen.Config{
		Size:        t.Generator.Size,
		ApproxLeft:  t.Generator.ApproxLeft,
		ApproxRight: t.Generator.ApproxRight,
		Count:       t.Generator.Count,
	}
}
