// Package kitty implements the Kitty terminal graphics protocol
// encoder: zlib+base64 chunked image transfer with placement-ID
// tracking and upload-existence caching (spec section 4.6). Grounded
// on imageview.encodeKitty's chunking loop, generalized from a single
// direct-RGBA-per-draw emitter into one that remembers what has
// already been uploaded and retransmits only on terminal-reported
// failure.
package kitty

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"termgfx/color"
	"termgfx/dispatch"
	"termgfx/raster"
)

// chunkSize is the maximum APC payload chunk length. It must stay a
// multiple of 4 so every chunk is independently valid base64 (spec
// section 4.6).
const chunkSize = 4096

// Encoder implements dispatch.Encoder for the Kitty graphics protocol.
// It carries no byte cache — once an image is uploaded, subsequent
// draws emit only the short a=p placement frame.
type Encoder struct {
	mu     sync.Mutex
	imgs   map[uint32]int // image_id -> bytes transferred
	logger zerolog.Logger
}

// New builds a Kitty encoder with an empty upload-existence cache.
func New() *Encoder {
	return &Encoder{
		imgs:   make(map[uint32]int),
		logger: log.With().Str("encoder", "kitty").Logger(),
	}
}

func imageID(img raster.Image) uint32 {
	return uint32(img.Fingerprint() & 0xffffffff)
}

func placementID(pos raster.Position) uint32 {
	return uint32(pos.Row&0xffff) + uint32(pos.Col&0xffff)<<16
}

// Draw uploads img's pixel payload the first time its image id is
// seen, then unconditionally emits a placement frame referencing it.
func (e *Encoder) Draw(sink dispatch.Sink, img raster.Image, pos raster.Position, bg color.RGBA) error {
	if raster.Empty(img) {
		return &dispatch.EncodingInvariantError{Reason: "kitty: cannot draw a zero-sized image"}
	}

	e.mu.Lock()
	id := imageID(img)
	_, uploaded := e.imgs[id]
	e.mu.Unlock()

	if !uploaded {
		if err := e.transfer(sink, img, id, bg); err != nil {
			return err
		}
	}
	return e.placement(sink, id, pos)
}

func (e *Encoder) transfer(sink dispatch.Sink, img raster.Image, id uint32, bg color.RGBA) error {
	payload, err := compressedRGBA(img, bg)
	if err != nil {
		return &dispatch.EncodingInvariantError{Reason: fmt.Sprintf("kitty: compressing payload: %v", err)}
	}
	b64 := base64.StdEncoding.EncodeToString(payload)

	w, h := img.Width(), img.Height()
	for i := 0; i < len(b64); i += chunkSize {
		end := i + chunkSize
		more := 1
		if end >= len(b64) {
			end = len(b64)
			more = 0
		}
		chunk := b64[i:end]

		var frame string
		if i == 0 {
			frame = fmt.Sprintf("\033_Ga=t,f=32,o=z,i=%d,v=%d,s=%d,m=%d;%s\033\\", id, h, w, more, chunk)
		} else {
			frame = fmt.Sprintf("\033_Gm=%d;%s\033\\", more, chunk)
		}
		if _, err := sink.Write([]byte(frame)); err != nil {
			return &dispatch.IOError{Op: "kitty transfer chunk", Err: err}
		}
	}
	if err := sink.Flush(); err != nil {
		return &dispatch.IOError{Op: "kitty transfer flush", Err: err}
	}

	e.mu.Lock()
	e.imgs[id] = len(payload)
	e.mu.Unlock()
	e.logger.Debug().Uint32("image_id", id).Int("bytes", len(payload)).Msg("uploaded image payload")
	return nil
}

func (e *Encoder) placement(sink dispatch.Sink, id uint32, pos raster.Position) error {
	pid := placementID(pos)
	frame := fmt.Sprintf("\033_Ga=p,i=%d,p=%d;\033\\", id, pid)
	if _, err := sink.Write([]byte(frame)); err != nil {
		return &dispatch.IOError{Op: "kitty placement", Err: err}
	}
	return sink.Flush()
}

// Erase removes a placement. Neither form frees the uploaded payload
// on the terminal side (d=i), matching spec section 4.6.
func (e *Encoder) Erase(sink dispatch.Sink, img raster.Image, pos raster.Position) error {
	var frame string
	if raster.Empty(img) {
		frame = "\033_Ga=d,d=i;\033\\"
	} else {
		id := imageID(img)
		pid := placementID(pos)
		frame = fmt.Sprintf("\033_Ga=d,d=i,i=%d,p=%d;\033\\", id, pid)
	}
	if _, err := sink.Write([]byte(frame)); err != nil {
		return &dispatch.IOError{Op: "kitty erase", Err: err}
	}
	return sink.Flush()
}

// Handle processes a terminal-reported Kitty acknowledgement. A
// non-empty error drops the image from the upload cache, forcing
// retransmit on the next draw, and reports true so the caller redraws
// (spec section 4.6 "Event handling"). A success ack is absorbed.
func (e *Encoder) Handle(ev dispatch.Event) bool {
	if ev.Kind != dispatch.KittyImageEvent {
		return false
	}
	if ev.Err == "" {
		return false
	}
	e.mu.Lock()
	delete(e.imgs, ev.ImageID)
	e.mu.Unlock()
	e.logger.Debug().Uint32("image_id", ev.ImageID).Str("error", ev.Err).Msg("terminal rejected image, will retransmit")
	return true
}

// compressedRGBA serializes img's pixels row-major as RGBA bytes,
// compositing any non-opaque pixel over bg, then zlib-compresses them
// at the default level (spec section 4.6).
func compressedRGBA(img raster.Image, bg color.RGBA) ([]byte, error) {
	raw := make([]byte, 0, img.Width()*img.Height()*4)
	raster.ForEach(img, func(row, col int, c color.RGBA) {
		if c.A != 255 {
			c = color.Blend(bg, c, color.Over)
		}
		raw = append(raw, c.R, c.G, c.B, c.A)
	})

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
