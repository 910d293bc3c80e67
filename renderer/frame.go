package renderer

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/pthm-cable/geocoop/lattice"
)

// Render draws one pixel per cell, then upscales by pixelSize with
// nearest-neighbour sampling so cells stay crisp squares. Rows map to y and
// columns to x.
func Render(v lattice.View, palette Palette, pixelSize int) *image.RGBA {
	if palette == nil {
		palette = Grayscale
	}
	if pixelSize < 1 {
		pixelSize = 1
	}

	small := image.NewRGBA(image.Rect(0, 0, v.Width(), v.Height()))
	for r := 0; r < v.Height(); r++ {
		for c := 0; c < v.Width(); c++ {
			small.SetRGBA(c, r, palette(v.At(r, c)))
		}
	}
	if pixelSize == 1 {
		return small
	}

	dst := image.NewRGBA(image.Rect(0, 0, v.Width()*pixelSize, v.Height()*pixelSize))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), small, small.Bounds(), draw.Src, nil)
	return dst
}
