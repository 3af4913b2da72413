// Package dispatch defines the uniform encoder contract (draw, erase,
// handle) and the small closed enum of concrete protocols a Dispatcher
// may be constructed around (spec section 4.9).
package dispatch

import (
	"termgfx/color"
	"termgfx/raster"
)

// Protocol names one of the four concrete encoders a Dispatcher can
// wrap. It is deliberately closed — generalized text-cell fallbacks
// like half-block or braille rendering live outside the core, in the
// surrounding renderer, not as a fifth member here.
type Protocol int

const (
	Kitty Protocol = iota
	Sixel
	ITerm
	Dummy
)

func (p Protocol) String() string {
	switch p {
	case Kitty:
		return "kitty"
	case Sixel:
		return "sixel"
	case ITerm:
		return "iterm"
	case Dummy:
		return "dummy"
	default:
		return "unknown"
	}
}

// Sink is the byte-oriented output every encoder writes frames to. It
// may block; the core neither times out nor cancels a write (spec
// section 5).
type Sink interface {
	Write(p []byte) (n int, err error)
	Flush() error
}

// EventKind tags the one event variant the core interprets.
type EventKind int

const (
	// KittyImageEvent reports a transfer-or-placement acknowledgement
	// for a previously emitted Kitty image id.
	KittyImageEvent EventKind = iota
)

// Event is the tagged union of terminal-reported events the core
// consumes. Only KittyImageEvent is interpreted; every other event a
// caller might receive from the terminal is simply never constructed
// as an Event and so never reaches Handle.
type Event struct {
	Kind    EventKind
	ImageID uint32
	Err     string // non-empty iff the terminal reported a failure for ImageID
}

// Encoder is the uniform three-operation surface every concrete
// protocol implements; Dispatcher is a thin, swappable wrapper around
// one of these.
type Encoder interface {
	Draw(sink Sink, img raster.Image, pos raster.Position, bg color.RGBA) error
	Erase(sink Sink, img raster.Image, pos raster.Position) error
	Handle(ev Event) bool
}

// Dispatcher forwards draw/erase/handle to whichever encoder it was
// constructed around. Selection happens once, at construction — the
// dispatcher never switches protocols mid-lifetime.
type Dispatcher struct {
	protocol Protocol
	encoder  Encoder
}

// New builds a Dispatcher around the given protocol/encoder pair. The
// protocol value is carried only for introspection (String, tests);
// all behavior comes from encoder.
func New(protocol Protocol, encoder Encoder) *Dispatcher {
	return &Dispatcher{protocol: protocol, encoder: encoder}
}

// Protocol reports which concrete encoder this Dispatcher wraps.
func (d *Dispatcher) Protocol() Protocol { return d.protocol }

// Draw emits img at pos via the wrapped encoder.
func (d *Dispatcher) Draw(sink Sink, img raster.Image, pos raster.Position, bg color.RGBA) error {
	return d.encoder.Draw(sink, img, pos, bg)
}

// Erase removes a previously drawn img at pos via the wrapped encoder.
func (d *Dispatcher) Erase(sink Sink, img raster.Image, pos raster.Position) error {
	return d.encoder.Erase(sink, img, pos)
}

// Handle forwards a terminal-reported event to the wrapped encoder,
// reporting whether it was relevant.
func (d *Dispatcher) Handle(ev Event) bool {
	return d.encoder.Handle(ev)
}

// DummyEncoder succeeds for every operation without writing anything —
// the fallback protocol for non-graphical terminals (spec section
// 4.9: "Dummy succeeds for every operation, writing nothing").
type DummyEncoder struct{}

func (DummyEncoder) Draw(Sink, raster.Image, raster.Position, color.RGBA) error { return nil }
func (DummyEncoder) Erase(Sink, raster.Image, raster.Position) error           { return nil }
func (DummyEncoder) Handle(Event) bool                                         { return false }
