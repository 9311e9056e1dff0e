// SPDX-License-Identifier: Unlicense OR MIT

package backend

import (
	"github.com/BurntSushi/toml"
)

// Config holds the render backend's tunables, loaded from a TOML file
// the way the teacher's own config.toml is (github.com/BurntSushi/toml),
// rather than wiring a bespoke flag/env parser for what is a handful of
// named knobs.
type Config struct {
	// GlyphWorkers bounds the glyph rasterizer's worker pool (§4.4,
	// §5).
	GlyphWorkers int
	// DedicatedGlyphThread runs glyph rasterization on a single
	// dedicated goroutine instead of a work-stealing pool, for font
	// backends that keep per-thread state (§5).
	DedicatedGlyphThread bool
	// CachedImageCapacity bounds the resource cache's image recency
	// LRU (§4.3).
	CachedImageCapacity int
	// MaxTextureDim bounds a single texture-cache atlas page (§4.2).
	MaxTextureDim int
	// EvictOlderThanFrames is the texture-cache item staleness horizon
	// passed to EvictOlderThan each frame (§4.2).
	EvictOlderThanFrames uint64
	// RenderOnScroll enables building a frame for scroll-only messages,
	// matching generate-frame's render_on_scroll flag (§5, §6).
	RenderOnScroll bool
}

// defaultConfig mirrors the values this repo's packages already default
// to. LoadConfig starts from it; New uses the Config it is given as is.
func defaultConfig() Config {
	return Config{
		GlyphWorkers:         4,
		CachedImageCapacity:  256,
		MaxTextureDim:        4096,
		EvictOlderThanFrames: 60,
		RenderOnScroll:       false,
	}
}

// LoadConfig reads a Config from a TOML file at path, starting from
// defaultConfig so a file only needs to override what it cares about.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}

// Option customizes a Backend at construction, for callers that build a
// Config programmatically instead of from a file.
type Option func(*Config)

// WithGlyphWorkers overrides the glyph rasterizer's worker count.
func WithGlyphWorkers(n int) Option { return func(c *Config) { c.GlyphWorkers = n } }

// WithDedicatedGlyphThread pins glyph rasterization to a single
// dedicated goroutine instead of the worker pool.
func WithDedicatedGlyphThread(dedicated bool) Option {
	return func(c *Config) { c.DedicatedGlyphThread = dedicated }
}

// WithRenderOnScroll enables building a frame for scroll-only messages.
func WithRenderOnScroll(enabled bool) Option {
	return func(c *Config) { c.RenderOnScroll = enabled }
}

// WithCachedImageCapacity overrides the resource cache's image recency
// LRU capacity.
func WithCachedImageCapacity(n int) Option { return func(c *Config) { c.CachedImageCapacity = n } }

// WithMaxTextureDim overrides the texture cache's per-page dimension
// cap.
func WithMaxTextureDim(n int) Option { return func(c *Config) { c.MaxTextureDim = n } }

// WithEvictOlderThanFrames overrides the texture-cache staleness
// horizon.
func WithEvictOlderThanFrames(n uint64) Option {
	return func(c *Config) { c.EvictOlderThanFrames = n }
}
