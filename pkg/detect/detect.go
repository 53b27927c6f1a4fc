// Package detect scores how likely the overlay is actually present at its
// expected position, so callers can skip images that were never watermarked.
package detect

import (
	"image"
	"math"

	"github.com/mwzhu/unwatermark/pkg/alphamap"
	"github.com/mwzhu/unwatermark/pkg/types"
)

// Profile holds the expected luminance pattern of an overlay and its gradient
// field, precomputed from an alpha map. Like the map itself it is built once
// and shared read-only.
type Profile struct {
	size      int
	intensity []float64
	gradient  []float64
}

// NewProfile derives the expected intensity and gradient pattern from an
// alpha map. A white overlay at opacity a brightens the region toward 255*a,
// so the scaled map doubles as the pattern template.
func NewProfile(mask *alphamap.AlphaMap) *Profile {
	intensity := make([]float64, len(mask.Values))
	for i, v := range mask.Values {
		intensity[i] = v * 255.0
	}
	return &Profile{
		size:      mask.Size,
		intensity: intensity,
		gradient:  sobel(intensity, mask.Size, mask.Size),
	}
}

// Score rates the presence of the overlay inside region on a 0-100 scale.
// It combines normalized cross-correlation of the region's luminance against
// the expected pattern, correlation of the gradient fields, and local
// statistics that discount flat or blown-out regions where the pattern
// match is unreliable.
func (p *Profile) Score(img *image.NRGBA, region types.Region) float64 {
	w, h := region.W, region.H
	luma := make([]float64, w*h)
	i := 0
	for y := 0; y < h; y++ {
		off := img.PixOffset(region.X, region.Y+y)
		for x := 0; x < w; x++ {
			luma[i] = 0.299*float64(img.Pix[off]) + 0.587*float64(img.Pix[off+1]) + 0.114*float64(img.Pix[off+2])
			i++
			off += 4
		}
	}

	pattern := ncc(luma, p.intensity)
	if pattern < 0.15 {
		return clampUnit(pattern) * 100
	}

	edges := ncc(sobel(luma, w, h), p.gradient)
	stats := regionStats(luma)

	return clampUnit(0.5*pattern+0.3*edges+0.2*stats) * 100
}

// ncc computes normalized cross-correlation of two equal-length signals.
func ncc(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sa, sb, saq, sbq, prod float64
	n := float64(len(a))
	for i := range a {
		va, vb := a[i], b[i]
		sa += va
		sb += vb
		saq += va * va
		sbq += vb * vb
		prod += va * vb
	}
	// Cancellation can leave a zero variance fractionally negative, and a
	// NaN from sqrt would poison every comparison downstream.
	varA := saq - sa*sa/n
	varB := sbq - sb*sb/n
	if varA <= 0 || varB <= 0 {
		return 0
	}
	num := prod - sa*sb/n
	return num / math.Sqrt(varA*varB)
}

// sobel returns the gradient magnitude field of a w*h luminance plane.
// Border pixels are left at zero.
func sobel(l []float64, w, h int) []float64 {
	g := make([]float64, len(l))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			gx := (l[i-w+1] + 2*l[i+1] + l[i+w+1]) - (l[i-w-1] + 2*l[i-1] + l[i+w-1])
			gy := (l[i+w-1] + 2*l[i+w] + l[i+w+1]) - (l[i-w-1] + 2*l[i-w] + l[i-w+1])
			g[i] = math.Sqrt(gx*gx + gy*gy)
		}
	}
	return g
}

// regionStats penalizes regions that are too flat or too bright for the
// pattern correlation to mean anything.
func regionStats(l []float64) float64 {
	var s, sq float64
	n := float64(len(l))
	for _, v := range l {
		s += v
		sq += v * v
	}
	mean := s / n
	variance := sq/n - mean*mean

	varScore := 1.0
	if variance < 50 {
		varScore = variance / 50.0
	}
	brightScore := 1.0
	if mean > 240 {
		brightScore = (255 - mean) / 15.0
		if brightScore < 0 {
			brightScore = 0
		}
	}
	return varScore * brightScore
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
