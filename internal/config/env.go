package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAGECRAFT_"

// ApplyEnv applies PAGECRAFT_<SECTION>_<KEY> entries from environ (in
// os.Environ form) to cfg. PAGECRAFT_HISTORY_MAX_SIZE sets history.max_size.
// Variables that name no setting are ignored. Values are parsed according to
// the setting's type.
func ApplyEnv(cfg *Config, environ []string) error {
	known, err := settingTypes()
	if err != nil {
		return err
	}

	overrides := make(map[string]any)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		section, key, ok := envToPath(name)
		if !ok {
			continue
		}
		def, ok := known[section][key]
		if !ok {
			continue
		}
		v, err := parseValue(value, def)
		if err != nil {
			return &ValidationError{
				Path:    section + "." + key,
				Message: fmt.Sprintf("invalid %s: %v", name, err),
				Value:   value,
			}
		}
		setByPath(overrides, section, key, v)
	}
	if len(overrides) == 0 {
		return nil
	}

	data, err := toml.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("encoding environment overrides: %w", err)
	}
	return decode("<environment>", data, cfg)
}

// envToPath converts PAGECRAFT_HISTORY_MAX_SIZE to ("history", "max_size").
func envToPath(env string) (section, key string, ok bool) {
	name := strings.ToLower(strings.TrimPrefix(env, EnvPrefix))
	return strings.Cut(name, "_")
}

// settingTypes returns the default value of every setting keyed by section
// and key, as decoded from TOML.
func settingTypes() (map[string]map[string]any, error) {
	data, err := toml.Marshal(Default())
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(raw))
	for section, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out[section] = m
		}
	}
	return out, nil
}

// parseValue parses s as the type of def.
func parseValue(s string, def any) (any, error) {
	switch def.(type) {
	case bool:
		switch strings.ToLower(s) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return nil, fmt.Errorf("not a boolean: %q", s)
	case int64:
		return strconv.ParseInt(s, 10, 64)
	case float64:
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

func setByPath(data map[string]any, section, key string, value any) {
	m, ok := data[section].(map[string]any)
	if !ok {
		m = make(map[string]any)
		data[section] = m
	}
	m[key] = value
}
