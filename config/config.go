// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Seed      int64           `yaml:"seed"`
	Lattice   LatticeConfig   `yaml:"lattice"`
	Initial   InitialConfig   `yaml:"initial"`
	Evolution EvolutionConfig `yaml:"evolution"`
	Output    OutputConfig    `yaml:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LatticeConfig holds grid dimensions and donation-game parameters.
type LatticeConfig struct {
	Height       int     `yaml:"height"`
	Width        int     `yaml:"width"`
	CostBenefit  float64 `yaml:"cost_benefit"` // Cost multiplier applied to the donor's cooperation
	Interactions int     `yaml:"interactions"` // Donations each cell initiates per generation
}

// Initial distribution modes.
const (
	InitBeta     = "beta"
	InitUniform  = "uniform"
	InitConstant = "constant"
	InitNoise    = "noise"
	InitPerlin   = "perlin"
	InitImage    = "image"
)

// InitialConfig selects how the starting cooperation matrix is built.
type InitialConfig struct {
	Mode       string  `yaml:"mode"`
	Alpha      float64 `yaml:"alpha"`       // Beta shape parameter
	Beta       float64 `yaml:"beta"`        // Beta shape parameter
	Value      float64 `yaml:"value"`       // Constant mode level
	NoiseScale float64 `yaml:"noise_scale"` // Noise frequency per cell
	ImagePath  string  `yaml:"image_path"`  // Grayscale seed image (white = full cooperation)
}

// EvolutionConfig holds run length and imitation parameters.
type EvolutionConfig struct {
	Generations   int     `yaml:"generations"`
	MutationRate  float64 `yaml:"mutation_rate"`  // 0 = never mutate, 1 = always
	MutationSigma float64 `yaml:"mutation_sigma"` // Std dev of the Gaussian jitter
	Workers       int     `yaml:"workers"`        // Goroutines for the update phase
}

// Palettes for frame rendering.
const (
	PaletteGrayscale = "grayscale"
	PaletteGradient  = "gradient"
)

// OutputConfig holds persistence settings.
type OutputConfig struct {
	Dir        string `yaml:"dir"`
	Frames     bool   `yaml:"frames"`
	FrameEvery int    `yaml:"frame_every"` // Save every Nth generation
	PixelSize  int    `yaml:"pixel_size"`  // Upscale factor per cell
	Palette    string `yaml:"palette"`
	Chart      bool   `yaml:"chart"`
	Snapshot   bool   `yaml:"snapshot"`
}

// TelemetryConfig holds logging and milestone parameters.
type TelemetryConfig struct {
	LogEvery           int     `yaml:"log_every"`
	PerfWindow         int     `yaml:"perf_window"`
	MilestoneHistory   int     `yaml:"milestone_history"`
	EquilibriumWindows int     `yaml:"equilibrium_windows"`
	EquilibriumCV      float64 `yaml:"equilibrium_cv"`
	CollapseThreshold  float64 `yaml:"collapse_threshold"`
	TakeoverThreshold  float64 `yaml:"takeover_threshold"`
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate range-checks every section.
func (c *Config) Validate() error {
	l := c.Lattice
	if l.Height <= 0 || l.Width <= 0 {
		return fmt.Errorf("lattice: dimensions must be positive, got %dx%d", l.Height, l.Width)
	}
	if l.Height*l.Width < 2 {
		return fmt.Errorf("lattice: dimensions must hold at least two cells, got %dx%d", l.Height, l.Width)
	}
	if !(l.CostBenefit > 0) {
		return fmt.Errorf("lattice: cost_benefit must be > 0, got %v", l.CostBenefit)
	}
	if l.Interactions < 1 {
		return fmt.Errorf("lattice: interactions must be >= 1, got %d", l.Interactions)
	}

	switch c.Initial.Mode {
	case InitBeta:
		if !(c.Initial.Alpha > 0) || !(c.Initial.Beta > 0) {
			return fmt.Errorf("initial: alpha and beta must be > 0, got %v and %v", c.Initial.Alpha, c.Initial.Beta)
		}
	case InitUniform:
	case InitConstant:
		if !(c.Initial.Value >= 0 && c.Initial.Value <= 1) {
			return fmt.Errorf("initial: value must be in [0,1], got %v", c.Initial.Value)
		}
	case InitNoise, InitPerlin:
		if !(c.Initial.NoiseScale > 0) {
			return fmt.Errorf("initial: noise_scale must be > 0, got %v", c.Initial.NoiseScale)
		}
	case InitImage:
		if c.Initial.ImagePath == "" {
			return fmt.Errorf("initial: image mode requires image_path")
		}
	default:
		return fmt.Errorf("initial: unknown mode %q", c.Initial.Mode)
	}

	e := c.Evolution
	if e.Generations < 0 {
		return fmt.Errorf("evolution: generations must be >= 0, got %d", e.Generations)
	}
	if !(e.MutationRate >= 0 && e.MutationRate <= 1) {
		return fmt.Errorf("evolution: mutation_rate must be in [0,1], got %v", e.MutationRate)
	}
	if !(e.MutationSigma >= 0) {
		return fmt.Errorf("evolution: mutation_sigma must be >= 0, got %v", e.MutationSigma)
	}
	if e.Workers < 0 {
		return fmt.Errorf("evolution: workers must be >= 0, got %d", e.Workers)
	}

	o := c.Output
	if o.FrameEvery < 1 {
		return fmt.Errorf("output: frame_every must be >= 1, got %d", o.FrameEvery)
	}
	if o.PixelSize < 1 {
		return fmt.Errorf("output: pixel_size must be >= 1, got %d", o.PixelSize)
	}
	if o.Palette != PaletteGrayscale && o.Palette != PaletteGradient {
		return fmt.Errorf("output: unknown palette %q", o.Palette)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
