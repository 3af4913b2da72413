// Package sixel implements the DEC Sixel encoder: quantize, dither,
// and emit run-length-compressed six-row color bands, with an LRU
// cache of the fully encoded byte string keyed by image fingerprint
// (spec section 4.7). Grounded on imageview.encodeSixel's header,
// palette, and writeSixelRun shape, generalized to draw its palette
// from the octree/k-d-tree quantizer instead of soniakeys/quant.
package sixel

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"termgfx/cache"
	"termgfx/color"
	"termgfx/dispatch"
	"termgfx/quant"
	"termgfx/raster"
)

// Encoder implements dispatch.Encoder for DEC Sixel. Dither and
// PaletteSize are read once per Draw call so a caller can adjust
// config between draws without reconstructing the encoder.
type Encoder struct {
	cache       *cache.Bytes
	PaletteSize int
	Dither      bool
	logger      zerolog.Logger
}

// New builds a Sixel encoder with a cache bounded by cacheBudget bytes
// (0 selects cache.DefaultBudget), quantizing to paletteSize colors
// (clamped to >=8) with dithering according to dither.
func New(cacheBudget, paletteSize int, dither bool) *Encoder {
	if paletteSize < 8 {
		paletteSize = 8
	}
	return &Encoder{
		cache:       cache.New(cacheBudget),
		PaletteSize: paletteSize,
		Dither:      dither,
		logger:      log.With().Str("encoder", "sixel").Logger(),
	}
}

// Draw emits img's Sixel encoding at pos. If img's fingerprint is
// already cached, the cached byte string is replayed directly (spec
// section 4.7: "subsequent draws of the same image emit the cached
// bytes directly").
func (e *Encoder) Draw(sink dispatch.Sink, img raster.Image, pos raster.Position, bg color.RGBA) error {
	if raster.Empty(img) {
		return &dispatch.EncodingInvariantError{Reason: "sixel: cannot draw a zero-sized image"}
	}

	fp := img.Fingerprint()
	if cached, ok := e.cache.Get(fp); ok {
		if _, err := sink.Write(cached); err != nil {
			return &dispatch.IOError{Op: "sixel cached draw", Err: err}
		}
		return sink.Flush()
	}

	encoded, err := e.encode(img, bg)
	if err != nil {
		return err
	}
	e.cache.Put(fp, encoded)
	e.logger.Debug().Uint64("fingerprint", fp).Int("bytes", len(encoded)).Msg("encoded and cached sixel image")

	if _, err := sink.Write(encoded); err != nil {
		return &dispatch.IOError{Op: "sixel draw", Err: err}
	}
	return sink.Flush()
}

// Erase writes solid black bands (color register 0 set to 0;0;0) over
// img's footprint; the caller's background color is not used, since
// Erase does not receive it. This carries forward imageview.ClearProtocolImage's approach
// of erasing by overpainting rather than issuing a protocol-level
// delete (Sixel has none).
func (e *Encoder) Erase(sink dispatch.Sink, img raster.Image, pos raster.Position) error {
	if raster.Empty(img) {
		return nil
	}
	var buf bytes.Buffer
	w, h := img.Width(), img.Height()
	fmt.Fprintf(&buf, "\033P0;1;8q\"1;1;%d;%d", w, h)
	buf.WriteString("#0;2;0;0;0")
	rows := (h + 5) / 6
	for z := 0; z < rows; z++ {
		if z > 0 {
			buf.WriteByte('-')
		}
		writeSixelRun(&buf, 63, w)
	}
	buf.Write([]byte{0x1b, 0x5c})

	if _, err := sink.Write(buf.Bytes()); err != nil {
		return &dispatch.IOError{Op: "sixel erase", Err: err}
	}
	return sink.Flush()
}

// Handle ignores every event; Sixel has no terminal-reported
// acknowledgement channel.
func (e *Encoder) Handle(dispatch.Event) bool { return false }

// quantizeChannel applies the spec's double-rounding pre-pass: scale
// to the 101-step (0..100) Sixel range and back, before the palette is
// ever built. Preserved exactly as specified even though a single
// rounding would not be observably less faithful (spec section 9,
// "Open question").
func quantizeChannel(c uint8) uint8 {
	step := roundHalfUp(float64(c) / 2.55)
	scaled := roundHalfUp(step * 2.55)
	if scaled > 255 {
		scaled = 255
	}
	if scaled < 0 {
		scaled = 0
	}
	return uint8(scaled)
}

func roundHalfUp(v float64) float64 {
	if v >= 0 {
		return float64(int(v + 0.5))
	}
	return -float64(int(-v + 0.5))
}

func preQuantize(c color.RGBA) color.RGBA {
	return color.RGBA{R: quantizeChannel(c.R), G: quantizeChannel(c.G), B: quantizeChannel(c.B), A: c.A}
}

// preQuantizedSource wraps a raster.Image, applying the Sixel
// double-rounding pre-pass to every pixel it yields.
type preQuantizedSource struct {
	img raster.Image
}

func (s preQuantizedSource) Width() int  { return s.img.Width() }
func (s preQuantizedSource) Height() int { return s.img.Height() }
func (s preQuantizedSource) At(row, col int) color.RGBA {
	return preQuantize(s.img.At(row, col))
}

func (e *Encoder) encode(img raster.Image, bg color.RGBA) ([]byte, error) {
	pre := preQuantizedSource{img: img}
	palette, ok := quant.Build(pre, e.PaletteSize, bg)
	if !ok {
		return nil, &dispatch.EncodingInvariantError{Reason: "sixel: cannot build a palette for an empty image"}
	}

	var indexed *quant.Indexed
	if e.Dither {
		indexed = quant.Quantize(pre, palette, bg)
	} else {
		indexed = quantizeNearestOnly(pre, palette, bg)
	}

	var buf bytes.Buffer
	w, h := img.Width(), img.Height()
	fmt.Fprintf(&buf, "\033P0;1;8q\"1;1;%d;%d", w, h)

	for i, c := range palette.Colors() {
		r, g, b := to100(c.R), to100(c.G), to100(c.B)
		fmt.Fprintf(&buf, "#%d;2;%d;%d;%d", i, r, g, b)
	}

	writeBands(&buf, indexed, palette.Len())
	buf.Write([]byte{0x1b, 0x5c})
	return buf.Bytes(), nil
}

// quantizeNearestOnly maps each pixel to its nearest palette entry
// with no error diffusion, used when dithering is disabled.
func quantizeNearestOnly(img raster.Image, palette *quant.Palette, bg color.RGBA) *quant.Indexed {
	w, h := img.Width(), img.Height()
	out := &quant.Indexed{Width: w, Height: h, Pixels: make([]int, w*h), Palette: palette}
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			px := img.At(r, c)
			if px.A != 255 {
				px = color.Blend(bg, px, color.Over)
			}
			idx, _ := palette.Find(px)
			out.Pixels[r*w+c] = idx
		}
	}
	return out
}

// to100 rescales an 8-bit channel to Sixel's 0..100 palette range.
func to100(c uint8) int {
	return (int(c)*100 + 127) / 255
}

// writeBands emits the row-strided-by-6 sixel band data (spec section
// 4.7 step 3-4).
func writeBands(buf *bytes.Buffer, indexed *quant.Indexed, numColors int) {
	w, h := indexed.Width, indexed.Height
	rows := (h + 5) / 6
	cellHeight := make([]byte, w*numColors)
	used := make([]bool, numColors)

	for z := 0; z < rows; z++ {
		for i := range cellHeight {
			cellHeight[i] = 0
		}
		for i := range used {
			used[i] = false
		}

		for p := 0; p < 6; p++ {
			y := z*6 + p
			if y >= h {
				break
			}
			for x := 0; x < w; x++ {
				idx := indexed.At(y, x)
				used[idx] = true
				cellHeight[w*idx+x] |= 1 << uint(p)
			}
		}

		firstColor := true
		for n := 0; n < numColors; n++ {
			if !used[n] {
				continue
			}
			if !firstColor {
				buf.WriteByte('$')
			}
			firstColor = false
			fmt.Fprintf(buf, "#%d", n)

			cnt := 0
			var prev byte = 0xff
			for x := 0; x < w; x++ {
				ch := cellHeight[w*n+x]
				if ch == prev {
					cnt++
					continue
				}
				if cnt > 0 {
					writeSixelRun(buf, prev, cnt)
				}
				prev = ch
				cnt = 1
			}
			if cnt > 0 {
				writeSixelRun(buf, prev, cnt)
			}
		}
		buf.WriteByte('-')
	}
}

// writeSixelRun writes a run of identical sixel characters with RLE:
// 1-3 repeats are written literally, longer runs use !{n}{code}.
func writeSixelRun(buf *bytes.Buffer, mask byte, count int) {
	ch := byte(63 + mask)
	switch {
	case count <= 0:
		return
	case count <= 3:
		for i := 0; i < count; i++ {
			buf.WriteByte(ch)
		}
	default:
		fmt.Fprintf(buf, "!%d%c", count, ch)
	}
}
