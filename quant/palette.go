package quant

import "termgfx/color"

// Palette is the quantization engine's public surface: a fixed set of
// at most the requested number of colors extracted from a source image, searchable by
// nearest-neighbor (spec section 4.4).
type Palette struct {
	colors []color.RGBA
	tree   *kdtree
}

// sampleThreshold is the pixel-count multiplier past which construction
// switches from exhaustive insertion to pseudo-random sampling.
const sampleThreshold = 100

// rngState is a small xorshift generator seeded per build so sampling
// is deterministic for a given image, matching the spec's "pseudo-random
// stride" wording without pulling in math/rand's global lock.
type rngState uint64

func (r *rngState) next() uint64 {
	x := uint64(*r)
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	*r = rngState(x)
	return x
}

// Source is the minimal pixel-iteration contract Build needs; raster.Image
// satisfies it.
type Source interface {
	Width() int
	Height() int
	At(row, col int) color.RGBA
}

// Build extracts a palette of at most size colors from img, compositing
// every non-opaque pixel over bg first so the quantizer never has to
// reason about alpha. It reports ok=false iff img is empty (spec
// section 4.4: "Returns None iff the image is empty").
func Build(img Source, size int, bg color.RGBA) (*Palette, bool) {
	if size < 1 {
		size = 1
	}
	w, h := img.Width(), img.Height()
	pixels := w * h
	if pixels == 0 {
		return nil, false
	}

	tree := newOctree()
	insert := func(r, c int) {
		px := img.At(r, c)
		if px.A != 255 {
			px = color.Blend(bg, px, color.Over)
		}
		tree.insert(px)
	}

	if pixels > sampleThreshold*size {
		sample := pixels / (sampleThreshold * size)
		if sample < 1 {
			sample = 1
		}
		rng := rngState(0x9e3779b97f4a7c15 ^ uint64(pixels))
		idx := 0
		next := int(rng.next() % uint64(sample))
		for r := 0; r < h; r++ {
			for c := 0; c < w; c++ {
				if idx == next {
					insert(r, c)
					next = idx + 1 + int(rng.next()%uint64(sample))
				}
				idx++
			}
		}
	} else {
		for r := 0; r < h; r++ {
			for c := 0; c < w; c++ {
				insert(r, c)
			}
		}
	}

	tree.prune(size)
	colors := tree.buildPalette()
	if len(colors) > size {
		colors = colors[:size]
	}

	points := make([]kdpoint, len(colors))
	for i, c := range colors {
		points[i] = kdpoint{color: c, index: i}
	}

	return &Palette{colors: colors, tree: buildKDTree(points)}, true
}

// Len returns the number of colors actually extracted, which may be
// fewer than the requested size for small or low-color images.
func (p *Palette) Len() int { return len(p.colors) }

// At returns the palette entry at index i.
func (p *Palette) At(i int) color.RGBA { return p.colors[i] }

// Colors returns every palette entry, in palette-index order.
func (p *Palette) Colors() []color.RGBA {
	out := make([]color.RGBA, len(p.colors))
	copy(out, p.colors)
	return out
}

// Find returns the index and color of the nearest palette entry to c.
func (p *Palette) Find(c color.RGBA) (index int, nearest color.RGBA) {
	if len(p.colors) == 1 {
		return 0, p.colors[0]
	}
	idx, col, _ := p.tree.find(c)
	return idx, col
}
