// Package config holds the tunables every encoder reads at construction
// time — cache budget, palette size, dithering, background — plus
// terminal protocol auto-detection and a file-watching hot-reload,
// carried forward from the surrounding editor's own settings.json
// loader and its fsnotify-driven file watcher.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"termgfx/dispatch"
)

// Config holds the knobs spec section 6 enumerates under
// "Configuration (enumerated)".
type Config struct {
	CacheBytes  int    `json:"cache_bytes"`
	PaletteSize int    `json:"palette_size"`
	Dither      bool   `json:"dither"`
	Background  string `json:"background"`
	Protocol    string `json:"protocol"`
}

// Default returns the spec's defaults: a 128 MiB per-encoder cache,
// 256-color palettes, dithering on, opaque black background, and
// protocol auto-detection.
func Default() *Config {
	return &Config{
		CacheBytes:  128 * 1024 * 1024,
		PaletteSize: 256,
		Dither:      true,
		Background:  "#000000",
		Protocol:    "auto",
	}
}

// Normalize clamps PaletteSize to >=8 and falls back to the default
// cache budget for a non-positive CacheBytes, matching the
// construction-time clamping each encoder otherwise has to repeat.
func (c *Config) Normalize() {
	if c.PaletteSize < 8 {
		c.PaletteSize = 8
	}
	if c.CacheBytes <= 0 {
		c.CacheBytes = 128 * 1024 * 1024
	}
}

// ConfigPath returns the settings file location, "" if the home
// directory cannot be determined.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "termgfx", "settings.json")
}

// Load reads the settings file, falling back to Default on ENOENT.
func Load() (*Config, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes c to the settings file, creating its directory if needed.
func (c *Config) Save() error {
	path := ConfigPath()
	if path == "" {
		return os.ErrNotExist
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DetectProtocol chooses a dispatch.Protocol from an explicit config
// value (falling back to the TERMGFX_PROTOCOL env var), or else by
// sniffing TERM/TERM_PROGRAM and the terminal-specific env vars each
// emulator sets. Carried forward from imageview.DetectProtocol,
// generalized from editor protocol names to dispatch.Protocol values.
func DetectProtocol(configProtocol string) dispatch.Protocol {
	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")

	override := strings.ToLower(strings.TrimSpace(configProtocol))
	if override == "" || override == "auto" {
		override = strings.ToLower(strings.TrimSpace(os.Getenv("TERMGFX_PROTOCOL")))
	}

	switch override {
	case "sixel":
		return dispatch.Sixel
	case "kitty":
		return dispatch.Kitty
	case "iterm2", "iterm":
		return dispatch.ITerm
	case "dummy", "none":
		return dispatch.Dummy
	}

	if term == "xterm-kitty" || os.Getenv("KITTY_INSTALLATION_DIR") != "" || os.Getenv("KITTY_PID") != "" || os.Getenv("KITTY_WINDOW_ID") != "" {
		return dispatch.Kitty
	}
	if termProgram == "ghostty" || os.Getenv("GHOSTTY_RESOURCES_DIR") != "" {
		return dispatch.Kitty
	}
	if termProgram == "iTerm.app" {
		return dispatch.ITerm
	}
	if termProgram == "WezTerm" || os.Getenv("WEZTERM_EXECUTABLE") != "" || os.Getenv("WEZTERM_PANE") != "" {
		return dispatch.Kitty
	}
	if termProgram == "mintty" || os.Getenv("MINTTY_SHORTCUT") != "" {
		return dispatch.ITerm
	}
	if termProgram == "foot" || strings.HasPrefix(term, "foot") {
		return dispatch.Sixel
	}
	if termProgram == "konsole" {
		return dispatch.Sixel
	}
	if os.Getenv("WT_SESSION") != "" {
		return dispatch.Sixel
	}
	if strings.Contains(strings.ToLower(term), "sixel") || os.Getenv("TERMGFX_ENABLE_SIXEL") == "1" {
		return dispatch.Sixel
	}
	return dispatch.Dummy
}

// ChangeEvent reports that the settings file was modified on disk.
type ChangeEvent struct {
	Config *Config
	Err    error
}

// Watch starts a debounced fsnotify watch on the settings file,
// sending a ChangeEvent each time it settles after being written.
// Carried forward from editor.setupFileWatcher's debounce-timer
// pattern, generalized to a single config file instead of a recursive
// project tree. The returned stop function closes the watcher and
// stops the goroutine; it is safe to call more than once.
func Watch(events chan<- ChangeEvent) (stop func(), err error) {
	path := ConfigPath()
	if path == "" {
		return func() {}, os.ErrNotExist
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return func() {}, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return func() {}, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return func() {}, err
	}

	done := make(chan struct{})
	go func() {
		debounce := time.NewTimer(100 * time.Millisecond)
		debounce.Stop()
		pending := false

		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				pending = true
				debounce.Reset(100 * time.Millisecond)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				events <- ChangeEvent{Err: err}

			case <-debounce.C:
				if !pending {
					continue
				}
				pending = false
				cfg, err := Load()
				if err != nil {
					events <- ChangeEvent{Err: err}
					continue
				}
				events <- ChangeEvent{Config: cfg}

			case <-done:
				return
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		watcher.Close()
	}, nil
}
