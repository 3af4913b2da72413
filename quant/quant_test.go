package quant

import (
	"testing"

	"termgfx/color"
)

// fakeImage is a minimal in-memory Source/raster.Image for tests.
type fakeImage struct {
	w, h   int
	pixels []color.RGBA
}

func newFakeImage(w, h int, fill func(r, c int) color.RGBA) *fakeImage {
	px := make([]color.RGBA, w*h)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			px[r*w+c] = fill(r, c)
		}
	}
	return &fakeImage{w: w, h: h, pixels: px}
}

func (f *fakeImage) Width() int  { return f.w }
func (f *fakeImage) Height() int { return f.h }
func (f *fakeImage) At(row, col int) color.RGBA {
	return f.pixels[row*f.w+col]
}
func (f *fakeImage) Fingerprint() uint64 { return 0 }

func TestBuildReturnsFalseOnEmptyImage(t *testing.T) {
	img := newFakeImage(0, 0, nil)
	if _, ok := Build(img, 16, color.RGBA{A: 255}); ok {
		t.Fatalf("expected Build to report false for an empty image")
	}
}

func TestBuildPrunesToAtMostPaletteSize(t *testing.T) {
	img := newFakeImage(32, 32, func(r, c int) color.RGBA {
		return color.RGBA{R: uint8(r * 7), G: uint8(c * 5), B: uint8((r + c) * 3), A: 255}
	})
	pal, ok := Build(img, 16, color.RGBA{A: 255})
	if !ok {
		t.Fatalf("expected Build to succeed")
	}
	if pal.Len() > 16 {
		t.Fatalf("expected at most 16 colors, got %d", pal.Len())
	}
}

func TestBuildCompositesNonOpaquePixelsOverBackground(t *testing.T) {
	bg := color.RGBA{R: 255, G: 0, B: 0, A: 255}
	img := newFakeImage(1, 1, func(r, c int) color.RGBA {
		return color.RGBA{R: 0, G: 255, B: 0, A: 0}
	})
	pal, ok := Build(img, 4, bg)
	if !ok {
		t.Fatalf("expected Build to succeed")
	}
	if pal.Len() != 1 {
		t.Fatalf("expected a single color, got %d", pal.Len())
	}
	if pal.At(0) != bg {
		t.Fatalf("expected fully transparent pixel to resolve to the background color, got %+v", pal.At(0))
	}
}

func TestQuantizeProducesOneIndexPerPixel(t *testing.T) {
	img := newFakeImage(8, 6, func(r, c int) color.RGBA {
		return color.RGBA{R: uint8(r * 30), G: uint8(c * 30), B: 128, A: 255}
	})
	pal, ok := Build(img, 8, color.RGBA{A: 255})
	if !ok {
		t.Fatalf("expected Build to succeed")
	}
	out := Quantize(img, pal, color.RGBA{A: 255})
	if len(out.Pixels) != 8*6 {
		t.Fatalf("expected %d indices, got %d", 8*6, len(out.Pixels))
	}
	for _, idx := range out.Pixels {
		if idx < 0 || idx >= pal.Len() {
			t.Fatalf("index %d out of palette range [0,%d)", idx, pal.Len())
		}
	}
}

func TestQuantizeIsDeterministic(t *testing.T) {
	img := newFakeImage(10, 10, func(r, c int) color.RGBA {
		return color.RGBA{R: uint8(r * 11), G: uint8(c * 13), B: uint8((r ^ c) * 17), A: 255}
	})
	pal, _ := Build(img, 12, color.RGBA{A: 255})

	out1 := Quantize(img, pal, color.RGBA{A: 255})
	out2 := Quantize(img, pal, color.RGBA{A: 255})
	for i := range out1.Pixels {
		if out1.Pixels[i] != out2.Pixels[i] {
			t.Fatalf("expected quantization to be deterministic, pixel %d differed: %d vs %d", i, out1.Pixels[i], out2.Pixels[i])
		}
	}
}
