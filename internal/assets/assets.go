// Package assets embeds the reference renderings of the overlay logo used to
// derive the opacity masks.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	_ "image/png"
)

//go:embed refs/*
var refsFS embed.FS

// SmallReference decodes the 48x48 logo-on-black rendering.
func SmallReference() (image.Image, error) {
	return decode("refs/logo_48.png")
}

// LargeReference decodes the 96x96 logo-on-black rendering.
func LargeReference() (image.Image, error) {
	return decode("refs/logo_96.png")
}

func decode(name string) (image.Image, error) {
	data, err := refsFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read embedded asset %s: %w", name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode embedded asset %s: %w", name, err)
	}
	return img, nil
}
