package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Load reads the TOML file at path over the defaults, applies environment
// overrides and validates the result. A missing file or an empty path
// yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(path, data, &cfg); err != nil {
				return Config{}, err
			}
		case errors.Is(err, os.ErrNotExist):
			// File doesn't exist, not an error
		default:
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg, os.Environ()); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromReader reads TOML from r over the defaults and validates the
// result. Environment overrides are not applied.
func LoadFromReader(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := decode("<reader>", data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode parses data into cfg. Keys missing from data keep their current
// values; unknown keys are rejected.
func decode(source string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			line, col := derr.Position()
			return &ParseError{Path: source, Line: line, Column: col, Message: derr.Error(), Err: err}
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return &ParseError{Path: source, Message: serr.Error(), Err: fmt.Errorf("%w: %w", ErrUnknownKey, err)}
		}
		return &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	return nil
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg Config) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
