// Package restore inverts the source-over blend that composited the overlay
// onto an image, recovering the pixel values underneath.
//
// Source-over with a solid white foreground is
//
//	composited = original*(1-a) + 255*a
//
// which inverts to
//
//	original = (composited - 255*a) / (1-a)
//
// exactly, up to the 8-bit rounding of both sides. Near a=1 the quantization
// error of the composited value is amplified by 1/(1-a), so the opacity is
// capped below 1 and those pixels are only approximately restored.
package restore

import (
	"image"
	"math"

	"github.com/mwzhu/unwatermark/pkg/alphamap"
	"github.com/mwzhu/unwatermark/pkg/types"
)

const (
	// AlphaThreshold is the opacity below which a pixel is treated as
	// untouched by the overlay. Values under it are anti-aliasing noise in
	// the reference rendering, not a meaningful blend.
	AlphaThreshold = 0.002

	// MaxAlpha caps the opacity used in the inversion so the (1-a)
	// denominator stays away from zero.
	MaxAlpha = 0.99

	// logoWhite is the solid foreground value the overlay was drawn with.
	logoWhite = 255.0
)

// Apply restores the pixels inside region in place. Pixels outside the
// region, and the alpha channel everywhere, are left untouched. The region
// must lie inside the image bounds and match the mask size; both are
// guaranteed by the locator.
func Apply(img *image.NRGBA, region types.Region, mask *alphamap.AlphaMap) {
	for row := 0; row < region.H; row++ {
		off := img.PixOffset(region.X, region.Y+row)
		for col := 0; col < region.W; col++ {
			a := mask.At(row, col)
			if a >= AlphaThreshold {
				if a > MaxAlpha {
					a = MaxAlpha
				}
				inv := 1.0 / (1.0 - a)
				img.Pix[off] = clamp((float64(img.Pix[off]) - logoWhite*a) * inv)
				img.Pix[off+1] = clamp((float64(img.Pix[off+1]) - logoWhite*a) * inv)
				img.Pix[off+2] = clamp((float64(img.Pix[off+2]) - logoWhite*a) * inv)
			}
			off += 4
		}
	}
}

func clamp(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}
