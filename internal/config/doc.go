// Package config loads editor settings.
//
// Settings come from three layers, lowest precedence first:
//
//  1. Built-in defaults (Default)
//  2. A TOML file
//  3. Environment variables named PAGECRAFT_<SECTION>_<KEY>
//
// A typical file:
//
//	[snap]
//	enabled = true
//	threshold = 5
//
//	[history]
//	max_size = 50
//	debounce_ms = 500
//
//	[distribute]
//	negative_gap = "overlap"
//
// A missing file is not an error; the defaults apply. Watcher reloads the
// file when it changes and hands the new settings to callbacks.
package config
