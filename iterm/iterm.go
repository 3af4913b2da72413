// Package iterm implements the iTerm2 inline image protocol encoder:
// base64-encoded PNG wrapped in an OSC 1337 frame, with the same
// fingerprint-keyed byte cache as Sixel (spec section 4.8). Grounded
// on imageview.encodeITerm2's PNG+base64 emission, generalized to draw
// its pixel source from raster.Image instead of image.Image directly.
package iterm

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	stdcolor "image/color"
	"image/png"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"termgfx/cache"
	"termgfx/color"
	"termgfx/dispatch"
	"termgfx/raster"
)

// Encoder implements dispatch.Encoder for iTerm2 inline images.
type Encoder struct {
	cache  *cache.Bytes
	logger zerolog.Logger
}

// New builds an iTerm encoder with a cache bounded by cacheBudget
// bytes (0 selects cache.DefaultBudget).
func New(cacheBudget int) *Encoder {
	return &Encoder{
		cache:  cache.New(cacheBudget),
		logger: log.With().Str("encoder", "iterm").Logger(),
	}
}

// Draw emits img's inline-image encoding, replaying the cached byte
// string when img's fingerprint has already been encoded.
func (e *Encoder) Draw(sink dispatch.Sink, img raster.Image, pos raster.Position, bg color.RGBA) error {
	if raster.Empty(img) {
		return &dispatch.EncodingInvariantError{Reason: "iterm: cannot draw a zero-sized image"}
	}

	fp := img.Fingerprint()
	if cached, ok := e.cache.Get(fp); ok {
		if _, err := sink.Write(cached); err != nil {
			return &dispatch.IOError{Op: "iterm cached draw", Err: err}
		}
		return sink.Flush()
	}

	encoded, err := e.encode(img, bg)
	if err != nil {
		return err
	}
	e.cache.Put(fp, encoded)
	e.logger.Debug().Uint64("fingerprint", fp).Int("bytes", len(encoded)).Msg("encoded and cached iterm image")

	if _, err := sink.Write(encoded); err != nil {
		return &dispatch.IOError{Op: "iterm draw", Err: err}
	}
	return sink.Flush()
}

// Erase is a no-op: the terminal treats an emitted inline image as
// ordinary cell content with no protocol-level delete (spec section 4.8).
func (e *Encoder) Erase(dispatch.Sink, raster.Image, raster.Position) error { return nil }

// Handle ignores every event; iTerm has no acknowledgement channel.
func (e *Encoder) Handle(dispatch.Event) bool { return false }

func (e *Encoder) encode(img raster.Image, bg color.RGBA) ([]byte, error) {
	w, h := img.Width(), img.Height()
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	raster.ForEach(img, func(row, col int, c color.RGBA) {
		if c.A != 255 {
			c = color.Blend(bg, c, color.Over)
		}
		rgba.SetRGBA(col, row, stdcolor.RGBA{R: c.R, G: c.G, B: c.B, A: c.A})
	})

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, rgba); err != nil {
		return nil, &dispatch.EncodingInvariantError{Reason: fmt.Sprintf("iterm: encoding PNG: %v", err)}
	}
	b64 := base64.StdEncoding.EncodeToString(pngBuf.Bytes())

	var out bytes.Buffer
	fmt.Fprintf(&out, "\033]1337;File=inline=1;width=%dpx:%s\a", w, b64)
	return out.Bytes(), nil
}
