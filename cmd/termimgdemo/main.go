// Command termimgdemo is a small external renderer exercising the
// core image pipeline end to end: it loads an image file from disk,
// picks a terminal graphics protocol, and draws it via a
// dispatch.Dispatcher, falling back to half-block or braille
// text-cell rendering when no image protocol is available. Carried
// forward from the surrounding editor's own tcell event loop and
// imageview's half-block/braille fallback renderers — none of which
// belong in the core itself.
package main

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"github.com/gdamore/tcell/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"termgfx/color"
	"termgfx/config"
	"termgfx/dispatch"
	"termgfx/iterm"
	"termgfx/kitty"
	"termgfx/raster"
	"termgfx/sixel"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: termimgdemo <image-file>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "termimgdemo: loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Normalize()

	bg, err := color.Parse(cfg.Background)
	if err != nil {
		bg = color.Opaque(0, 0, 0)
	}

	img, err := loadImage(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "termimgdemo: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "termimgdemo: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "termimgdemo: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	protocol := config.DetectProtocol(cfg.Protocol)
	sink := newScreenSink(screen)
	d := buildDispatcher(protocol, cfg, sink)

	if protocol == dispatch.Dummy {
		w, h := screen.Size()
		if os.Getenv("TERMGFX_FALLBACK") == "braille" {
			renderBraille(screen, img, bg, 0, 0, w, h)
		} else {
			renderHalfBlock(screen, img, bg, 0, 0, w, h)
		}
		screen.Show()
	} else {
		if err := d.Draw(sink, img, raster.Position{Row: 0, Col: 0}, bg); err != nil {
			fmt.Fprintf(os.Stderr, "termimgdemo: draw: %v\n", err)
		}
	}

	for {
		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				return
			}
		case *tcell.EventResize:
			screen.Sync()
		}
	}
}

func buildDispatcher(protocol dispatch.Protocol, cfg *config.Config, sink dispatch.Sink) *dispatch.Dispatcher {
	switch protocol {
	case dispatch.Kitty:
		return dispatch.New(dispatch.Kitty, kitty.New())
	case dispatch.Sixel:
		return dispatch.New(dispatch.Sixel, sixel.New(cfg.CacheBytes, cfg.PaletteSize, cfg.Dither))
	case dispatch.ITerm:
		return dispatch.New(dispatch.ITerm, iterm.New(cfg.CacheBytes))
	default:
		return dispatch.New(dispatch.Dummy, dispatch.DummyEncoder{})
	}
}

func loadImage(path string) (raster.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return raster.NewGoImage(decoded), nil
}

// screenSink is the dispatch.Sink used alongside a tcell.Screen: it
// writes escape sequences straight to os.Stdout, bypassing tcell's own
// cell buffer. The screen field is not used for output.
type screenSink struct {
	screen tcell.Screen
}

func newScreenSink(screen tcell.Screen) *screenSink {
	return &screenSink{screen: screen}
}

func (s *screenSink) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (s *screenSink) Flush() error {
	return nil
}

// renderHalfBlock is the text-cell fallback used when no image
// protocol is detected: each terminal cell renders two vertically
// stacked source pixels as a half-block glyph with independent
// foreground/background colors. Grounded on imageview.renderHalfBlock,
// generalized from image.Image sampling to raster.Image sampling.
func renderHalfBlock(screen tcell.Screen, img raster.Image, bg color.RGBA, x, y, w, h int) {
	srcW, srcH := img.Width(), img.Height()
	if srcW < 1 || srcH < 1 || w < 1 || h < 1 {
		return
	}

	pseudoH := h * 2
	for cy := 0; cy < h; cy++ {
		topSrcY := (cy * 2) * srcH / pseudoH
		botSrcY := (cy*2 + 1) * srcH / pseudoH
		if topSrcY >= srcH {
			topSrcY = srcH - 1
		}
		if botSrcY >= srcH {
			botSrcY = srcH - 1
		}
		for cx := 0; cx < w; cx++ {
			srcX := cx * srcW / w
			if srcX >= srcW {
				srcX = srcW - 1
			}

			top := compositeForDisplay(img.At(topSrcY, srcX), bg)
			bot := compositeForDisplay(img.At(botSrcY, srcX), bg)

			fg := tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))
			bgc := tcell.NewRGBColor(int32(bot.R), int32(bot.G), int32(bot.B))
			style := tcell.StyleDefault.Foreground(fg).Background(bgc)
			screen.SetContent(x+cx, y+cy, '▀', nil, style)
		}
	}
}

func compositeForDisplay(c, bg color.RGBA) color.RGBA {
	if c.A == 255 {
		return c
	}
	return color.Blend(bg, c, color.Over)
}

// renderBraille renders img using Unicode braille dot patterns, giving
// 2x4 dots per cell, twice the half-block resolution in each direction, at the
// cost of per-cell color fidelity (a single averaged foreground).
// Grounded on imageview.renderBraille.
func renderBraille(screen tcell.Screen, img raster.Image, bg color.RGBA, x, y, w, h int) {
	srcW, srcH := img.Width(), img.Height()
	if srcW < 1 || srcH < 1 || w < 1 || h < 1 {
		return
	}

	dotBit := [4][2]rune{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}

	subW := w * 2
	subH := h * 4
	bgLum := color.Luma(bg)

	for cy := 0; cy < h; cy++ {
		for cx := 0; cx < w; cx++ {
			var pattern rune
			var rSum, gSum, bSum, nSet uint32

			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					subX := cx*2 + dx
					subY := cy*4 + dy
					srcX := subX * srcW / subW
					srcY := subY * srcH / subH
					if srcX >= srcW {
						srcX = srcW - 1
					}
					if srcY >= srcH {
						srcY = srcH - 1
					}

					px := compositeForDisplay(img.At(srcY, srcX), bg)
					lum := color.Luma(px)
					if int(math.Abs(float64(int(lum)-int(bgLum)))) > 24 {
						pattern |= dotBit[dy][dx]
						rSum += uint32(px.R)
						gSum += uint32(px.G)
						bSum += uint32(px.B)
						nSet++
					}
				}
			}

			style := tcell.StyleDefault
			if nSet > 0 {
				fg := tcell.NewRGBColor(int32(rSum/nSet), int32(gSum/nSet), int32(bSum/nSet))
				style = style.Foreground(fg)
			}
			screen.SetContent(x+cx, y+cy, rune(0x2800)+pattern, nil, style)
		}
	}
}

