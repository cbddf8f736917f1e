package config

import (
	"errors"
	"strings"
	"time"

	"github.com/dshills/pagecraft/internal/geometry"
)

// Config holds every editor setting.
type Config struct {
	Canvas     CanvasConfig     `toml:"canvas"`
	Snap       SnapConfig       `toml:"snap"`
	Group      GroupConfig      `toml:"group"`
	History    HistoryConfig    `toml:"history"`
	Distribute DistributeConfig `toml:"distribute"`
	Duplicate  DuplicateConfig  `toml:"duplicate"`
	Log        LogConfig        `toml:"log"`
}

// CanvasConfig sizes the canvas for scenes that do not carry a size.
type CanvasConfig struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// SnapConfig controls smart guides during drags.
type SnapConfig struct {
	Enabled   bool    `toml:"enabled"`
	Threshold float64 `toml:"threshold"`
}

// GroupConfig controls new groups.
type GroupConfig struct {
	Padding float64 `toml:"padding"`
}

// HistoryConfig controls undo history.
type HistoryConfig struct {
	MaxSize    int `toml:"max_size"`
	DebounceMS int `toml:"debounce_ms"`
}

// Debounce returns the debounce period as a duration.
func (h HistoryConfig) Debounce() time.Duration {
	return time.Duration(h.DebounceMS) * time.Millisecond
}

// DistributeConfig controls Distribute.
type DistributeConfig struct {
	// NegativeGap is "overlap" or "clamp".
	NegativeGap string `toml:"negative_gap"`
}

// GapPolicy returns the parsed negative-gap policy, falling back to overlap.
func (d DistributeConfig) GapPolicy() geometry.GapPolicy {
	p, err := geometry.ParseGapPolicy(d.NegativeGap)
	if err != nil {
		return geometry.GapOverlap
	}
	return p
}

// DuplicateConfig controls where duplicates are placed.
type DuplicateConfig struct {
	OffsetX float64 `toml:"offset_x"`
	OffsetY float64 `toml:"offset_y"`
}

// Offset returns the offset as a point.
func (d DuplicateConfig) Offset() geometry.Point {
	return geometry.Point{X: d.OffsetX, Y: d.OffsetY}
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Canvas:     CanvasConfig{Width: 1280, Height: 800},
		Snap:       SnapConfig{Enabled: true, Threshold: geometry.DefaultSnapThreshold},
		Group:      GroupConfig{Padding: 10},
		History:    HistoryConfig{MaxSize: 50, DebounceMS: 500},
		Distribute: DistributeConfig{NegativeGap: "overlap"},
		Duplicate:  DuplicateConfig{OffsetX: 10, OffsetY: 10},
		Log:        LogConfig{Level: "info"},
	}
}

var validLevels = []string{"debug", "info", "warn", "error"}

// Validate checks every setting and returns all failures joined. Each
// failure is a *ValidationError.
func (c Config) Validate() error {
	var errs []error
	fail := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if c.Canvas.Width <= 0 {
		fail("canvas.width", "must be positive", c.Canvas.Width)
	}
	if c.Canvas.Height <= 0 {
		fail("canvas.height", "must be positive", c.Canvas.Height)
	}
	if c.Snap.Threshold < 0 {
		fail("snap.threshold", "must not be negative", c.Snap.Threshold)
	}
	if c.Group.Padding < 0 {
		fail("group.padding", "must not be negative", c.Group.Padding)
	}
	if c.History.MaxSize <= 0 {
		fail("history.max_size", "must be positive", c.History.MaxSize)
	}
	if c.History.DebounceMS < 0 {
		fail("history.debounce_ms", "must not be negative", c.History.DebounceMS)
	}
	if _, err := geometry.ParseGapPolicy(c.Distribute.NegativeGap); err != nil {
		fail("distribute.negative_gap", "must be overlap or clamp", c.Distribute.NegativeGap)
	}
	level := strings.ToLower(c.Log.Level)
	valid := false
	for _, l := range validLevels {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		fail("log.level", "must be one of "+strings.Join(validLevels, ", "), c.Log.Level)
	}

	return errors.Join(errs...)
}
