package kitty

import (
	"io"
	"testing"
	"time"

	"github.com/creack/pty"

	"termgfx/color"
	"termgfx/raster"
)

// ptySink adapts a real pty master end into a dispatch.Sink, giving
// the encoder's blocking-write assumption (spec section 5: "the sink
// is a byte-oriented output that may block") an actual kernel pipe to
// write through instead of an in-memory buffer.
type ptySink struct {
	w io.Writer
}

func (s ptySink) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s ptySink) Flush() error                { return nil }

func TestDrawOverARealPTYProducesTheExpectedFrames(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable in this environment: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	enc := New()
	img := &fakeImage{w: 4, h: 4, fp: 0xabc}

	read := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64*1024)
		n, _ := master.Read(buf)
		read <- buf[:n]
	}()

	if err := enc.Draw(ptySink{w: slave}, img, raster.Position{Row: 2, Col: 3}, color.RGBA{A: 255}); err != nil {
		t.Fatalf("Draw over pty: %v", err)
	}

	select {
	case got := <-read:
		out := string(got)
		if !containsAll(out, "\033_Ga=t,f=32,o=z", "\033_Ga=p,i=") {
			t.Fatalf("expected transfer and placement frames on the pty, got %q", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting to read the encoder's output from the pty")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
