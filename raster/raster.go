// Package raster defines the pixel-source contract the image core
// consumes (spec section 6): a rectangular, row-major, indexable image
// with a stable content fingerprint, plus the terminal-cell Position
// the Kitty encoder derives a placement id from.
package raster

import "termgfx/color"

// Image is the external pixel source every encoder draws from. Width
// and Height are in pixels; At is row-major with a top-left origin.
// Fingerprint is a 64-bit identity stable across clones of the same
// pixel content — it is the sole key caches use, never the Image
// value itself.
type Image interface {
	Width() int
	Height() int
	At(row, col int) color.RGBA
	Fingerprint() uint64
}

// Position names a terminal cell (row, col), both non-negative. Kitty
// is the only encoder that consumes it, to derive a placement id.
type Position struct {
	Row, Col int
}

// Empty reports whether img has no pixels at all.
func Empty(img Image) bool {
	return img == nil || img.Width() <= 0 || img.Height() <= 0
}

// ForEach visits every pixel of img in row-major order.
func ForEach(img Image, visit func(row, col int, c color.RGBA)) {
	if Empty(img) {
		return
	}
	h, w := img.Height(), img.Width()
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			visit(row, col, img.At(row, col))
		}
	}
}
