package restore

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/mwzhu/unwatermark/pkg/alphamap"
	"github.com/mwzhu/unwatermark/pkg/types"
)

// maskFromLevels builds a mask whose opacities are exact 8-bit fractions,
// matching what a reference rendering would produce.
func maskFromLevels(size int, level func(row, col int) uint8) *alphamap.AlphaMap {
	values := make([]float64, size*size)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			values[row*size+col] = float64(level(row, col)) / 255.0
		}
	}
	return &alphamap.AlphaMap{Size: size, Values: values}
}

// composite applies source-over blending of white at opacity a, with 8-bit
// rounding, the way the overlay was originally applied.
func composite(original uint8, a float64) uint8 {
	return uint8(math.Round(float64(original)*(1-a) + 255*a))
}

func fillNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestZeroAlphaLeavesPixelsUntouched(t *testing.T) {
	img := fillNRGBA(48, 48, color.NRGBA{10, 120, 230, 255})
	mask := maskFromLevels(48, func(row, col int) uint8 { return 0 })
	region := types.Region{X: 0, Y: 0, W: 48, H: 48}

	Apply(img, region, mask)

	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			if got := img.NRGBAAt(x, y); got != (color.NRGBA{10, 120, 230, 255}) {
				t.Fatalf("Pixel (%d,%d) changed under zero alpha: %v", x, y, got)
			}
		}
	}
}

func TestSubThresholdAlphaSkipped(t *testing.T) {
	// 0.002 threshold: a mask level of 0 is the only 8-bit value below it,
	// so drive the mask directly with a tiny float.
	img := fillNRGBA(4, 4, color.NRGBA{50, 50, 50, 255})
	mask := &alphamap.AlphaMap{Size: 4, Values: make([]float64, 16)}
	for i := range mask.Values {
		mask.Values[i] = AlphaThreshold / 2
	}

	Apply(img, types.Region{X: 0, Y: 0, W: 4, H: 4}, mask)

	if got := img.NRGBAAt(2, 2); got != (color.NRGBA{50, 50, 50, 255}) {
		t.Errorf("Sub-threshold alpha should leave pixel untouched, got %v", got)
	}
}

func TestOutsideRegionUntouched(t *testing.T) {
	img := fillNRGBA(100, 100, color.NRGBA{40, 80, 160, 255})
	mask := maskFromLevels(48, func(row, col int) uint8 { return 128 })
	region := types.Region{X: 20, Y: 30, W: 48, H: 48}

	Apply(img, region, mask)

	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			inside := x >= region.X && x < region.X+region.W && y >= region.Y && y < region.Y+region.H
			if inside {
				continue
			}
			if got := img.NRGBAAt(x, y); got != (color.NRGBA{40, 80, 160, 255}) {
				t.Fatalf("Pixel (%d,%d) outside region changed: %v", x, y, got)
			}
		}
	}
}

func TestAlphaChannelUntouched(t *testing.T) {
	img := fillNRGBA(48, 48, color.NRGBA{100, 100, 100, 200})
	mask := maskFromLevels(48, func(row, col int) uint8 { return 100 })

	Apply(img, types.Region{X: 0, Y: 0, W: 48, H: 48}, mask)

	if a := img.NRGBAAt(10, 10).A; a != 200 {
		t.Errorf("Alpha channel changed to %d", a)
	}
}

func TestRoundTrip(t *testing.T) {
	// Composite then restore across every 8-bit opacity level. Error is
	// bounded by the rounding of the composited value amplified by 1/(1-a),
	// plus the final rounding.
	originals := []uint8{0, 1, 37, 100, 128, 200, 254, 255}

	for level := 1; level <= 252; level++ {
		a := float64(level) / 255.0
		if a < AlphaThreshold {
			continue
		}
		bound := math.Ceil(0.5/(1-a) + 0.5 + 1e-9)

		for _, o := range originals {
			img := fillNRGBA(1, 1, color.NRGBA{composite(o, a), composite(o, a), composite(o, a), 255})
			mask := &alphamap.AlphaMap{Size: 1, Values: []float64{a}}

			Apply(img, types.Region{X: 0, Y: 0, W: 1, H: 1}, mask)

			recovered := float64(img.NRGBAAt(0, 0).R)
			if diff := math.Abs(recovered - float64(o)); diff > bound {
				t.Fatalf("Round trip o=%d a=%f: recovered %f, diff %f > bound %f",
					o, a, recovered, diff, bound)
			}
		}
	}
}

func TestRoundTripWithinOneForModerateAlpha(t *testing.T) {
	// Recovery is exact to within one count while the amplification
	// factor 1/(1-a) stays at or below two.
	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	mask := maskFromLevels(48, func(row, col int) uint8 {
		return uint8(row*127/47) + 1 // opacities in (0, 0.5]
	})

	for y := 0; y < 48; y++ {
		a := mask.At(y, 0)
		for x := 0; x < 48; x++ {
			o := uint8(x * 255 / 47)
			img.SetNRGBA(x, y, color.NRGBA{composite(o, a), composite(o, a), composite(o, a), 255})
		}
	}

	Apply(img, types.Region{X: 0, Y: 0, W: 48, H: 48}, mask)

	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			o := float64(x * 255 / 47)
			got := img.NRGBAAt(x, y)
			for _, ch := range []uint8{got.R, got.G, got.B} {
				if diff := math.Abs(float64(ch) - o); diff > 1 {
					t.Fatalf("Pixel (%d,%d): recovered %d, original %.0f, diff %.0f", x, y, ch, o, diff)
				}
			}
		}
	}
}

func TestFullOpacityMatchesCap(t *testing.T) {
	// a=1.0 must not divide by zero; it behaves exactly like a=0.99.
	imgFull := fillNRGBA(4, 4, color.NRGBA{200, 200, 200, 255})
	imgCapped := fillNRGBA(4, 4, color.NRGBA{200, 200, 200, 255})

	full := &alphamap.AlphaMap{Size: 4, Values: make([]float64, 16)}
	capped := &alphamap.AlphaMap{Size: 4, Values: make([]float64, 16)}
	for i := range full.Values {
		full.Values[i] = 1.0
		capped.Values[i] = MaxAlpha
	}

	region := types.Region{X: 0, Y: 0, W: 4, H: 4}
	Apply(imgFull, region, full)
	Apply(imgCapped, region, capped)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if imgFull.NRGBAAt(x, y) != imgCapped.NRGBAAt(x, y) {
				t.Fatalf("a=1.0 result %v differs from a=0.99 result %v at (%d,%d)",
					imgFull.NRGBAAt(x, y), imgCapped.NRGBAAt(x, y), x, y)
			}
		}
	}
}

func TestResultsClampedToByteRange(t *testing.T) {
	// A composited value darker than the overlay could ever produce would
	// invert to a negative original; it must clamp to 0, not wrap.
	img := fillNRGBA(4, 4, color.NRGBA{0, 0, 0, 255})
	mask := maskFromLevels(4, func(row, col int) uint8 { return 200 })

	Apply(img, types.Region{X: 0, Y: 0, W: 4, H: 4}, mask)

	if got := img.NRGBAAt(1, 1); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Errorf("Expected clamp to 0, got %v", got)
	}
}

func BenchmarkApply(b *testing.B) {
	img := fillNRGBA(1200, 1200, color.NRGBA{90, 120, 150, 255})
	mask := maskFromLevels(96, func(row, col int) uint8 { return uint8((row + col) % 256) })
	region := types.Region{X: 1040, Y: 1040, W: 96, H: 96}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Apply(img, region, mask)
	}
}
