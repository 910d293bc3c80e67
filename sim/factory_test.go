package sim

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/geocoop/config"
)

func TestNewLatticeModes(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "seed.png")
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(0, 0, color.Gray{Y: 0})
	f, err := os.Create(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	modes := []string{
		config.InitBeta, config.InitUniform, config.InitConstant,
		config.InitNoise, config.InitPerlin, config.InitImage,
	}
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			cfg := config.Default()
			cfg.Lattice.Height, cfg.Lattice.Width = 5, 4
			cfg.Initial.Mode = mode
			cfg.Initial.ImagePath = imgPath

			l, err := NewLattice(cfg, 9)
			if err != nil {
				t.Fatal(err)
			}
			if l.Height() != 5 || l.Width() != 4 || l.Len() != 20 {
				t.Fatalf("lattice = %dx%d", l.Height(), l.Width())
			}
			for i, c := range l.Cooperation() {
				if c < 0 || c > 1 {
					t.Fatalf("cell %d = %v", i, c)
				}
			}
		})
	}
}

func TestNewLatticeSameSeed(t *testing.T) {
	cfg := config.Default()
	cfg.Lattice.Height, cfg.Lattice.Width = 6, 6
	a, err := NewLattice(cfg, 4)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewLattice(cfg, 4)
	for i := range a.Cooperation() {
		if a.Cooperation()[i] != b.Cooperation()[i] {
			t.Fatalf("cell %d differs for the same seed", i)
		}
	}
}

func TestFromConfigAppliesOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Lattice.Height, cfg.Lattice.Width = 3, 3
	cfg.Evolution.Generations = 12
	cfg.Evolution.Workers = 2

	s, err := FromConfig(cfg, 8)
	if err != nil {
		t.Fatal(err)
	}
	opts := s.Options()
	if opts.Seed != 8 || opts.Generations != 12 || opts.Workers != 2 || opts.MutationRate != cfg.Evolution.MutationRate {
		t.Errorf("options = %+v", opts)
	}
}
