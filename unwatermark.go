// Package unwatermark removes the fixed-position semi-transparent logo
// overlay that generated images carry in their bottom-right corner.
//
// The overlay is applied by source-over compositing a solid near-white logo
// with a position-dependent alpha mask, at one of two fixed geometries
// selected by image size. Because both the mask and the position are known,
// the blend can be inverted algebraically per pixel and the original values
// recovered up to 8-bit rounding.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		"github.com/mwzhu/unwatermark"
//		"github.com/mwzhu/unwatermark/pkg/processing"
//	)
//
//	func main() {
//		engine, err := unwatermark.New()
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		proc := processing.NewProcessor()
//		img, err := proc.LoadImage("photo.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		cleaned, det, err := engine.Remove(img)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("overlay %s confidence %.0f%%", det.Region, det.Confidence)
//
//		if err := proc.SaveImage(cleaned, "unwatermarked_photo.png", "png", 90, false); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of four main components:
//
// 1. Alphamap (pkg/alphamap): derives opacity masks from reference renderings
// 2. Locate (pkg/locate): maps image dimensions to the overlay bounding box
// 3. Restore (pkg/restore): inverts the blend inside the bounding box
// 4. Batch (pkg/batch): runs the pipeline across a directory of files
//
// The masks are built once, from renderings embedded in the binary, and
// shared read-only across all images; per-image buffers are exclusively owned
// by their caller, so batch processing parallelizes without coordination.
package unwatermark

import (
	"fmt"
	"image"

	"github.com/mwzhu/unwatermark/pkg/alphamap"
	"github.com/mwzhu/unwatermark/pkg/detect"
	"github.com/mwzhu/unwatermark/pkg/locate"
	"github.com/mwzhu/unwatermark/pkg/processing"
	"github.com/mwzhu/unwatermark/pkg/restore"
	"github.com/mwzhu/unwatermark/pkg/types"
)

// Version of the unwatermark library
const Version = "1.0.0"

// Detection describes where the overlay was located and how confidently it
// was recognized there.
type Detection struct {
	Region     types.Region    `json:"region"`
	Class      types.SizeClass `json:"-"`
	Confidence float64         `json:"confidence"`
}

// Engine bundles the opacity masks, detection profiles and codec layer into
// a single-image pipeline. Safe for concurrent use; all shared state is
// read-only after construction.
type Engine struct {
	maps         *alphamap.Maps
	smallProfile *detect.Profile
	largeProfile *detect.Profile
	proc         *processing.Processor
}

// New creates an Engine from the embedded reference renderings.
func New() (*Engine, error) {
	maps, err := alphamap.LoadEmbedded()
	if err != nil {
		return nil, err
	}
	return NewWithMaps(maps), nil
}

// NewWithMaps creates an Engine around caller-supplied masks.
func NewWithMaps(maps *alphamap.Maps) *Engine {
	return &Engine{
		maps:         maps,
		smallProfile: detect.NewProfile(maps.Small),
		largeProfile: detect.NewProfile(maps.Large),
		proc:         processing.NewProcessor(),
	}
}

// Maps exposes the opacity masks for callers that drive the core directly.
func (e *Engine) Maps() *alphamap.Maps {
	return e.maps
}

// Processor exposes the codec layer.
func (e *Engine) Processor() *processing.Processor {
	return e.proc
}

// Detect locates the overlay region for the image's size class and scores
// the overlay's presence there.
func (e *Engine) Detect(img image.Image) (Detection, error) {
	bounds := img.Bounds()
	region, class, err := locate.Find(bounds.Dx(), bounds.Dy())
	if err != nil {
		return Detection{Class: class}, err
	}

	buf := e.proc.ToNRGBA(img)
	return e.detectBuffer(buf, region, class), nil
}

// DetectBuffer scores a caller-owned buffer without copying it.
func (e *Engine) DetectBuffer(buf *image.NRGBA) (Detection, error) {
	bounds := buf.Bounds()
	region, class, err := locate.Find(bounds.Dx(), bounds.Dy())
	if err != nil {
		return Detection{Class: class}, err
	}
	return e.detectBuffer(buf, region, class), nil
}

// Remove returns a copy of the image with the overlay region restored to its
// pre-overlay values. The input image is not modified.
func (e *Engine) Remove(img image.Image) (*image.NRGBA, Detection, error) {
	bounds := img.Bounds()
	region, class, err := locate.Find(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, Detection{Class: class}, fmt.Errorf("locate overlay: %w", err)
	}

	buf := e.proc.ToNRGBA(img)
	det := e.detectBuffer(buf, region, class)
	restore.Apply(buf, region, e.maps.ForClass(class))
	return buf, det, nil
}

// RemoveBuffer runs detection and restoration on a caller-owned buffer in
// place, skipping the defensive copy Remove makes.
func (e *Engine) RemoveBuffer(buf *image.NRGBA) (Detection, error) {
	bounds := buf.Bounds()
	region, class, err := locate.Find(bounds.Dx(), bounds.Dy())
	if err != nil {
		return Detection{Class: class}, fmt.Errorf("locate overlay: %w", err)
	}

	det := e.detectBuffer(buf, region, class)
	restore.Apply(buf, region, e.maps.ForClass(class))
	return det, nil
}

func (e *Engine) detectBuffer(buf *image.NRGBA, region types.Region, class types.SizeClass) Detection {
	profile := e.smallProfile
	if class == types.Large {
		profile = e.largeProfile
	}
	return Detection{
		Region:     region,
		Class:      class,
		Confidence: profile.Score(buf, region),
	}
}

// GetVersion returns the library version.
func GetVersion() string {
	return Version
}
