// Package alphamap derives per-pixel opacity masks from reference renderings
// of the overlay logo.
//
// The reference assets depict the logo drawn over a pure black background at
// the two fixed canvas sizes. Compositing a near-white logo at opacity a over
// black yields a channel value of roughly 255*a, so the maximum channel
// intensity of each pixel is a direct estimate of the blend opacity at that
// position. The max is robust to the slight chroma shifts anti-aliasing
// introduces along the glyph edge.
package alphamap

import (
	"fmt"
	"image"

	"github.com/mwzhu/unwatermark/internal/assets"
	"github.com/mwzhu/unwatermark/pkg/types"
)

// AlphaMap holds normalized opacity values for a square overlay canvas.
// Values are row-major in [0,1]. Immutable after construction.
type AlphaMap struct {
	Size   int
	Values []float64
}

// Build estimates an opacity mask from a square logo-on-black rendering.
func Build(img image.Image) (*AlphaMap, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty reference image")
	}
	if w != h {
		return nil, fmt.Errorf("reference image must be square, got %dx%d", w, h)
	}

	values := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			m := r
			if g > m {
				m = g
			}
			if b > m {
				m = b
			}
			values[y*w+x] = float64(m) / 65535.0
		}
	}

	return &AlphaMap{Size: w, Values: values}, nil
}

// At returns the opacity at a local (row, col) offset within the canvas.
func (m *AlphaMap) At(row, col int) float64 {
	return m.Values[row*m.Size+col]
}

// Maps bundles the two masks, one per size class. Built once at startup and
// shared read-only across all images and workers.
type Maps struct {
	Small *AlphaMap
	Large *AlphaMap
}

// ForClass returns the mask matching a size class.
func (m *Maps) ForClass(c types.SizeClass) *AlphaMap {
	if c == types.Large {
		return m.Large
	}
	return m.Small
}

// LoadEmbedded builds both masks from the reference renderings shipped with
// the binary.
func LoadEmbedded() (*Maps, error) {
	small, err := loadReference(assets.SmallReference, 48)
	if err != nil {
		return nil, err
	}
	large, err := loadReference(assets.LargeReference, 96)
	if err != nil {
		return nil, err
	}
	return &Maps{Small: small, Large: large}, nil
}

func loadReference(load func() (image.Image, error), size int) (*AlphaMap, error) {
	img, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to load reference asset: %w", err)
	}
	m, err := Build(img)
	if err != nil {
		return nil, err
	}
	if m.Size != size {
		return nil, fmt.Errorf("reference asset is %dx%d, expected %dx%d", m.Size, m.Size, size, size)
	}
	return m, nil
}
