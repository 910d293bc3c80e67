// Package renderer turns cooperation matrices into images and charts.
package renderer

import (
	"fmt"
	"image/color"
)

// Palette maps a cooperation level in [0,1] to a colour.
type Palette func(c float64) color.RGBA

// Grayscale maps full defection to black and full cooperation to white.
func Grayscale(c float64) color.RGBA {
	v := uint8(clamp01(c) * 255)
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

// gradientStops runs from defector red through a pale midpoint to cooperator blue.
var gradientStops = []color.RGBA{
	{R: 178, G: 24, B: 43, A: 255},
	{R: 247, G: 247, B: 247, A: 255},
	{R: 33, G: 102, B: 172, A: 255},
}

// Gradient interpolates linearly between gradientStops.
func Gradient(c float64) color.RGBA {
	c = clamp01(c)
	segments := len(gradientStops) - 1
	pos := c * float64(segments)
	i := int(pos)
	if i >= segments {
		return gradientStops[segments]
	}
	t := pos - float64(i)
	a, b := gradientStops[i], gradientStops[i+1]
	return color.RGBA{
		R: lerp(a.R, b.R, t),
		G: lerp(a.G, b.G, t),
		B: lerp(a.B, b.B, t),
		A: 255,
	}
}

// PaletteByName resolves a configured palette name.
func PaletteByName(name string) (Palette, error) {
	switch name {
	case "", "grayscale":
		return Grayscale, nil
	case "gradient":
		return Gradient, nil
	default:
		return nil, fmt.Errorf("unknown palette %q", name)
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
