package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OptionsFileKey names an options key holding the path of a YAML or JSON
// file with further options for the same component.
const OptionsFileKey = "options_file"

// ReadOptions reads component options from a .yaml, .yml or .json file.
func ReadOptions(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read options file: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	m, err := decodeOptions(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("options file %s: %w", path, err)
	}
	return New(m), nil
}

// ParseOptions decodes options in the named format, "yaml" or "json".
func ParseOptions(data []byte, format string) (Config, error) {
	m, err := decodeOptions(data, format)
	if err != nil {
		return Config{}, err
	}
	return New(m), nil
}

func decodeOptions(data []byte, format string) (map[string]any, error) {
	var m map[string]any
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported options format %q", format)
	}
	return m, nil
}

// Overlay returns a Config holding base with over's keys on top. Nested
// maps are merged key by key; any other value in over replaces base's.
func Overlay(base, over Config) Config {
	return New(overlay(base.data, over.data))
}

func overlay(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if bm, ok := asMap(out[k]); ok {
			if om, ok := asMap(v); ok {
				out[k] = overlay(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}
