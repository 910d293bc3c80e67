package renderer

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pthm-cable/geocoop/lattice"
)

// FrameWriter saves rendered generations as numbered PNG files.
type FrameWriter struct {
	dir       string
	every     int
	pixelSize int
	palette   Palette
	written   int
}

// NewFrameWriter creates dir and returns a writer that keeps every Nth
// generation.
func NewFrameWriter(dir string, every, pixelSize int, palette Palette) (*FrameWriter, error) {
	if every < 1 {
		every = 1
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating frame directory: %w", err)
	}
	return &FrameWriter{dir: dir, every: every, pixelSize: pixelSize, palette: palette}, nil
}

// FrameName returns the file name used for a generation.
func FrameName(generation int) string {
	return fmt.Sprintf("frame_%06d.png", generation)
}

// Frame renders and saves the given generation. Its signature matches the
// simulation's per-generation frame hook.
func (w *FrameWriter) Frame(generation int, coop lattice.View) error {
	if generation%w.every != 0 {
		return nil
	}
	img := Render(coop, w.palette, w.pixelSize)
	if err := SavePNG(img, filepath.Join(w.dir, FrameName(generation))); err != nil {
		return err
	}
	w.written++
	return nil
}

// Written returns the number of frames saved.
func (w *FrameWriter) Written() int { return w.written }

// Dir returns the frame directory.
func (w *FrameWriter) Dir() string { return w.dir }

// SavePNG encodes img to path.
func SavePNG(img image.Image, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return nil
}
