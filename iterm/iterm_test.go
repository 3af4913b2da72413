package iterm

import (
	"bytes"
	"regexp"
	"testing"

	"termgfx/color"
	"termgfx/raster"
)

type bufSink struct {
	bytes.Buffer
	flushes int
}

func (s *bufSink) Flush() error { s.flushes++; return nil }

type fakeImage struct {
	w, h int
	fp   uint64
	c    color.RGBA
}

func (f *fakeImage) Width() int  { return f.w }
func (f *fakeImage) Height() int { return f.h }
func (f *fakeImage) At(int, int) color.RGBA {
	return f.c
}
func (f *fakeImage) Fingerprint() uint64 { return f.fp }

var e4Pattern = regexp.MustCompile(`^\x1b\]1337;File=inline=1;width=1px:[A-Za-z0-9+/=]+\x07$`)

func TestE4OnePixelOpaqueBlackImage(t *testing.T) {
	enc := New(0)
	sink := &bufSink{}
	img := &fakeImage{w: 1, h: 1, fp: 1, c: color.RGBA{A: 255}}

	if err := enc.Draw(sink, img, raster.Position{}, color.RGBA{A: 255}); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if !e4Pattern.MatchString(sink.String()) {
		t.Fatalf("output %q does not match the expected inline-image frame pattern", sink.String())
	}
}

func TestEraseIsANoOp(t *testing.T) {
	enc := New(0)
	sink := &bufSink{}
	img := &fakeImage{w: 2, h: 2, fp: 2, c: color.RGBA{A: 255}}
	if err := enc.Erase(sink, img, raster.Position{}); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if sink.Len() != 0 {
		t.Fatalf("expected Erase to write nothing, got %d bytes", sink.Len())
	}
}

func TestCachedDrawReplaysIdenticalBytes(t *testing.T) {
	enc := New(0)
	img := &fakeImage{w: 3, h: 3, fp: 99, c: color.RGBA{R: 5, G: 6, B: 7, A: 255}}

	first := &bufSink{}
	if err := enc.Draw(first, img, raster.Position{}, color.RGBA{A: 255}); err != nil {
		t.Fatalf("first draw: %v", err)
	}
	second := &bufSink{}
	if err := enc.Draw(second, img, raster.Position{}, color.RGBA{A: 255}); err != nil {
		t.Fatalf("second draw: %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("expected cached draw to replay identical bytes")
	}
}

func TestDrawZeroSizedImageIsRejected(t *testing.T) {
	enc := New(0)
	sink := &bufSink{}
	err := enc.Draw(sink, &fakeImage{w: 0, h: 0}, raster.Position{}, color.RGBA{A: 255})
	if err == nil {
		t.Fatalf("expected an error for a zero-sized image")
	}
}
