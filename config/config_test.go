package config

import (
	"os"
	"testing"

	"termgfx/dispatch"
)

func clearTerminalEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"TERM", "TERM_PROGRAM", "TERMGFX_PROTOCOL", "TERMGFX_ENABLE_SIXEL",
		"KITTY_INSTALLATION_DIR", "KITTY_PID", "KITTY_WINDOW_ID",
		"GHOSTTY_RESOURCES_DIR", "WEZTERM_EXECUTABLE", "WEZTERM_PANE",
		"MINTTY_SHORTCUT", "WT_SESSION",
	}
	saved := make(map[string]string, len(vars))
	for _, v := range vars {
		saved[v] = os.Getenv(v)
		os.Unsetenv(v)
	}
	t.Cleanup(func() {
		for k, v := range saved {
			if v != "" {
				os.Setenv(k, v)
			}
		}
	})
}

func TestDetectProtocolExplicitOverrideWins(t *testing.T) {
	clearTerminalEnv(t)
	os.Setenv("TERM", "xterm-kitty")
	if got := DetectProtocol("sixel"); got != dispatch.Sixel {
		t.Fatalf("expected an explicit config value to win over TERM sniffing, got %v", got)
	}
}

func TestDetectProtocolSniffsKittyFromTerm(t *testing.T) {
	clearTerminalEnv(t)
	os.Setenv("TERM", "xterm-kitty")
	if got := DetectProtocol("auto"); got != dispatch.Kitty {
		t.Fatalf("expected xterm-kitty to detect as Kitty, got %v", got)
	}
}

func TestDetectProtocolFallsBackToDummy(t *testing.T) {
	clearTerminalEnv(t)
	os.Setenv("TERM", "xterm")
	if got := DetectProtocol(""); got != dispatch.Dummy {
		t.Fatalf("expected an unrecognized terminal to fall back to Dummy, got %v", got)
	}
}

func TestNormalizeClampsPaletteSizeAndCacheBytes(t *testing.T) {
	c := &Config{PaletteSize: 1, CacheBytes: -5}
	c.Normalize()
	if c.PaletteSize < 8 {
		t.Fatalf("expected PaletteSize to be clamped to >= 8, got %d", c.PaletteSize)
	}
	if c.CacheBytes <= 0 {
		t.Fatalf("expected CacheBytes to fall back to a positive default, got %d", c.CacheBytes)
	}
}

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	d := Default()
	if d.PaletteSize != 256 {
		t.Fatalf("expected default palette size 256, got %d", d.PaletteSize)
	}
	if !d.Dither {
		t.Fatalf("expected dithering on by default")
	}
	if d.CacheBytes != 128*1024*1024 {
		t.Fatalf("expected default cache bytes 128 MiB, got %d", d.CacheBytes)
	}
}

func TestLoadFallsBackToDefaultWhenFileMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PaletteSize != Default().PaletteSize {
		t.Fatalf("expected Load to fall back to Default() when the settings file is absent")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := Default()
	cfg.PaletteSize = 64
	cfg.Dither = false
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.PaletteSize != 64 || loaded.Dither != false {
		t.Fatalf("expected the saved config to round-trip, got %+v", loaded)
	}
}
