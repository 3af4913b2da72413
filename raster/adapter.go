package raster

import (
	"hash/fnv"
	stdcolor "image"
	"image/color"

	termcolor "termgfx/color"
)

// GoImage adapts a standard library image.Image into a raster.Image,
// computing the content fingerprint once at construction by hashing the
// decoded pixel bytes. This adapter is not part of the core contract —
// spec section 3 leaves fingerprint computation to "the image provider" —
// it exists so cmd/termimgdemo and the test suite have a concrete Image
// to hand the core without pulling image decoding into the core itself.
type GoImage struct {
	img         stdcolor.Image
	w, h        int
	minX, minY  int
	fingerprint uint64
}

// NewGoImage wraps img, eagerly computing its fingerprint.
func NewGoImage(img stdcolor.Image) *GoImage {
	b := img.Bounds()
	g := &GoImage{
		img:  img,
		w:    b.Dx(),
		h:    b.Dy(),
		minX: b.Min.X,
		minY: b.Min.Y,
	}
	g.fingerprint = fingerprintOf(img)
	return g
}

func (g *GoImage) Width() int  { return g.w }
func (g *GoImage) Height() int { return g.h }

func (g *GoImage) At(row, col int) termcolor.RGBA {
	c := color.NRGBAModel.Convert(g.img.At(g.minX+col, g.minY+row)).(color.NRGBA)
	return termcolor.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func (g *GoImage) Fingerprint() uint64 { return g.fingerprint }

// fingerprintOf hashes every pixel's non-premultiplied bytes with FNV-1a.
// Two images with identical pixel arrays hash identically, which is the
// only equality guarantee spec section 3 requires of a fingerprint.
func fingerprintOf(img stdcolor.Image) uint64 {
	h := fnv.New64a()
	b := img.Bounds()
	row := make([]byte, 0, b.Dx()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row = row[:0]
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			row = append(row, c.R, c.G, c.B, c.A)
		}
		h.Write(row)
	}
	return h.Sum64()
}
