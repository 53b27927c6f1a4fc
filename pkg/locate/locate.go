// Package locate maps image dimensions to the overlay's size class and
// bounding box.
package locate

import (
	"errors"
	"fmt"

	"github.com/mwzhu/unwatermark/pkg/types"
)

// ErrTooSmall is returned when an image cannot contain the overlay footprint
// for its size class.
var ErrTooSmall = errors.New("image too small for overlay footprint")

// sizeThreshold selects the large overlay when both dimensions exceed it.
const sizeThreshold = 1024

// Classify selects the overlay size class for the given image dimensions.
func Classify(width, height int) types.SizeClass {
	if width > sizeThreshold && height > sizeThreshold {
		return types.Large
	}
	return types.Small
}

// Find computes the overlay bounding box, anchored to the bottom-right
// corner, for an image of the given dimensions. It fails with ErrTooSmall
// when the footprint (logo plus margins) does not fit inside the image.
func Find(width, height int) (types.Region, types.SizeClass, error) {
	class := Classify(width, height)
	logoSize, marginRight, marginBottom := class.Geometry()

	if width < marginRight+logoSize || height < marginBottom+logoSize {
		return types.Region{}, class, fmt.Errorf("%w: %dx%d image, %s overlay needs at least %dx%d",
			ErrTooSmall, width, height, class, marginRight+logoSize, marginBottom+logoSize)
	}

	return types.Region{
		X: width - marginRight - logoSize,
		Y: height - marginBottom - logoSize,
		W: logoSize,
		H: logoSize,
	}, class, nil
}
