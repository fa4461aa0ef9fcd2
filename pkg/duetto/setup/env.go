package setup

import (
	"os"
	"strings"

	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/template"
)

const envPrefix = "env."

var envExpander = template.NewExpander(template.WithMissingAction(template.MissingEmpty))

// componentConfig returns c's options with ${env.NAME} placeholders
// resolved from the process environment. Strings holding any other
// placeholder, such as a message template, are left for the component.
// When options_file is set, the file's options sit below the inline ones.
func componentConfig(c config.Component) (config.Config, error) {
	vars := make(map[string]any)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[envPrefix+k] = v
		}
	}
	out, _ := expandValue(c.Options, vars).(map[string]any)
	opts := config.New(out)

	path := opts.String(config.OptionsFileKey, "")
	if path == "" {
		return opts, nil
	}
	base, err := config.ReadOptions(path)
	if err != nil {
		return config.Config{}, err
	}
	base = config.New(expandValue(base.Raw(), vars).(map[string]any))
	return config.Overlay(base, opts), nil
}

func expandValue(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		names := template.Placeholders(val)
		if len(names) == 0 {
			return val
		}
		for _, name := range names {
			if !strings.HasPrefix(name, envPrefix) {
				return val
			}
		}
		out, err := envExpander.Expand(val, vars)
		if err != nil {
			return val
		}
		return out
	case map[string]any:
		if val == nil {
			return val
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandValue(item, vars)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item, vars)
		}
		return out
	default:
		return v
	}
}
