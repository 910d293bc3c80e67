package lattice

import (
	"fmt"
	"image"
	_ "image/jpeg" // registered for image-seeded runs
	_ "image/png"
	"math"
	"math/rand/v2"
	"os"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat/distuv"
)

// SampleBeta draws height*width cooperation levels from Beta(alpha, beta).
func SampleBeta(height, width int, alpha, beta float64, src rand.Source) ([]float64, error) {
	if !(alpha > 0) || !(beta > 0) {
		return nil, fmt.Errorf("%w: beta shape parameters must be > 0, got alpha=%v beta=%v", ErrInvalidConfig, alpha, beta)
	}
	if err := checkDims(height, width); err != nil {
		return nil, err
	}
	dist := distuv.Beta{Alpha: alpha, Beta: beta, Src: src}
	out := make([]float64, height*width)
	for i := range out {
		out[i] = clamp01(dist.Rand())
	}
	return out, nil
}

// SampleUniform draws height*width cooperation levels uniformly from [0,1).
func SampleUniform(height, width int, src rand.Source) ([]float64, error) {
	if err := checkDims(height, width); err != nil {
		return nil, err
	}
	rng := rand.New(src)
	out := make([]float64, height*width)
	for i := range out {
		out[i] = rng.Float64()
	}
	return out, nil
}

// Constant returns a matrix filled with value.
func Constant(height, width int, value float64) ([]float64, error) {
	if err := checkDims(height, width); err != nil {
		return nil, err
	}
	if !(value >= 0 && value <= 1) {
		return nil, fmt.Errorf("%w: constant cooperation %v outside [0,1]", ErrInvalidConfig, value)
	}
	out := make([]float64, height*width)
	for i := range out {
		out[i] = value
	}
	return out, nil
}

// SampleNoise builds spatially correlated cooperation patches from
// normalized OpenSimplex noise. scale is the lattice-to-noise frequency.
func SampleNoise(height, width int, scale float64, seed int64) ([]float64, error) {
	if err := checkDims(height, width); err != nil {
		return nil, err
	}
	if !(scale > 0) {
		return nil, fmt.Errorf("%w: noise scale must be > 0, got %v", ErrInvalidConfig, scale)
	}
	noise := opensimplex.NewNormalized(seed)
	out := make([]float64, height*width)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			out[r*width+c] = clamp01(noise.Eval2(float64(c)*scale, float64(r)*scale))
		}
	}
	return out, nil
}

// Perlin octave settings: persistence 2, lacunarity 2, three octaves.
const (
	perlinAlpha   = 2
	perlinBeta    = 2
	perlinOctaves = 3
)

// SamplePerlin builds cooperation patches from fractal Perlin noise, which
// has broader blobs than SampleNoise at the same scale.
func SamplePerlin(height, width int, scale float64, seed int64) ([]float64, error) {
	if err := checkDims(height, width); err != nil {
		return nil, err
	}
	if !(scale > 0) {
		return nil, fmt.Errorf("%w: noise scale must be > 0, got %v", ErrInvalidConfig, scale)
	}
	p := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed)
	out := make([]float64, height*width)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			// Noise2D is roughly in [-1,1].
			out[r*width+c] = clamp01(0.5 + 0.5*p.Noise2D(float64(c)*scale, float64(r)*scale))
		}
	}
	return out, nil
}

// FromImage reads a PNG or JPEG, resamples it to width×height and uses the
// luminance of each pixel as the cooperation level (white = 1).
func FromImage(path string, height, width int) ([]float64, error) {
	if err := checkDims(height, width); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding seed image: %w", err)
	}
	return fromImage(src, height, width), nil
}

func fromImage(src image.Image, height, width int) []float64 {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float64, height*width)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			out[r*width+c] = float64(gray.GrayAt(c, r).Y) / 255
		}
	}
	return out
}

func checkDims(height, width int) error {
	if height <= 0 || width <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidConfig, height, width)
	}
	return nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
