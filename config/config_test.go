package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Lattice.Height != 192 || cfg.Lattice.Width != 108 {
		t.Errorf("lattice = %dx%d, want 192x108", cfg.Lattice.Height, cfg.Lattice.Width)
	}
	if cfg.Lattice.CostBenefit != 0.025 {
		t.Errorf("cost_benefit = %v, want 0.025", cfg.Lattice.CostBenefit)
	}
	if cfg.Initial.Mode != InitBeta || cfg.Initial.Alpha != 10 || cfg.Initial.Beta != 1 {
		t.Errorf("initial = %+v", cfg.Initial)
	}
	if cfg.Evolution.MutationRate != 0.1 || cfg.Evolution.MutationSigma != 0.05 {
		t.Errorf("evolution = %+v", cfg.Evolution)
	}
}

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := "lattice:\n  height: 2\n  width: 2\nevolution:\n  mutation_rate: 0\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Lattice.Height != 2 || cfg.Lattice.Width != 2 {
		t.Errorf("override not applied: %dx%d", cfg.Lattice.Height, cfg.Lattice.Width)
	}
	if cfg.Evolution.MutationRate != 0 {
		t.Errorf("mutation_rate = %v, want 0", cfg.Evolution.MutationRate)
	}
	if cfg.Lattice.CostBenefit != 0.025 {
		t.Errorf("cost_benefit default lost: %v", cfg.Lattice.CostBenefit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"zero height", func(c *Config) { c.Lattice.Height = 0 }, "dimensions"},
		{"negative cb", func(c *Config) { c.Lattice.CostBenefit = -1 }, "cost_benefit"},
		{"zero interactions", func(c *Config) { c.Lattice.Interactions = 0 }, "interactions"},
		{"bad mode", func(c *Config) { c.Initial.Mode = "spiral" }, "unknown mode"},
		{"bad beta", func(c *Config) { c.Initial.Alpha = 0 }, "alpha"},
		{"image without path", func(c *Config) { c.Initial.Mode = InitImage }, "image_path"},
		{"mutation rate high", func(c *Config) { c.Evolution.MutationRate = 1.5 }, "mutation_rate"},
		{"negative sigma", func(c *Config) { c.Evolution.MutationSigma = -0.1 }, "mutation_sigma"},
		{"negative generations", func(c *Config) { c.Evolution.Generations = -1 }, "generations"},
		{"pixel size", func(c *Config) { c.Output.PixelSize = 0 }, "pixel_size"},
		{"palette", func(c *Config) { c.Output.Palette = "neon" }, "palette"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Lattice.CostBenefit = 0.3
	cfg.Seed = 99

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Lattice.CostBenefit != 0.3 || loaded.Seed != 99 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Cfg()
}

func TestMustInit(t *testing.T) {
	saved := global
	defer func() { global = saved }()

	MustInit("")
	if Cfg().Lattice.Height != 192 {
		t.Errorf("Cfg() after MustInit = %+v", Cfg().Lattice)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for missing file")
		}
	}()
	MustInit(filepath.Join(t.TempDir(), "missing.yaml"))
}
