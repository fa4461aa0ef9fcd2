package template

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"strings"
)

// placeholder matches ${name}, ${name:-default}, and ${name|filter|...}.
// Names may contain dots for nested event fields.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_.]*)(?::-([^}|]*))?((?:\|[a-z]+)*)\}`)

// Filter transforms a resolved value.
type Filter func(v any) (string, error)

var builtinFilters = map[string]Filter{
	"upper":    func(v any) (string, error) { return strings.ToUpper(stringify(v)), nil },
	"lower":    func(v any) (string, error) { return strings.ToLower(stringify(v)), nil },
	"trim":     func(v any) (string, error) { return strings.TrimSpace(stringify(v)), nil },
	"urlquery": func(v any) (string, error) { return url.QueryEscape(stringify(v)), nil },
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	},
}

// MissingAction picks what an unresolved placeholder without a default
// turns into.
type MissingAction int

const (
	MissingKeep  MissingAction = iota // leave ${name} in the output
	MissingEmpty                      // substitute ""
	MissingError                      // fail with *UndefinedVariableError
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction overrides the default MissingKeep.
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) { e.missingAction = action }
}

// WithFilter adds a filter usable as ${name|fn}, replacing a builtin of the
// same name.
func WithFilter(name string, fn Filter) Option {
	return func(e *Expander) { e.filters[name] = fn }
}

// Expander expands placeholders in strings.
type Expander struct {
	missingAction MissingAction
	filters       map[string]Filter
}

// NewExpander creates an Expander. The default MissingAction is MissingKeep.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		missingAction: MissingKeep,
		filters:       maps.Clone(builtinFilters),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand replaces every placeholder in s with its value from vars.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	var firstErr error

	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		sub := placeholder.FindStringSubmatch(match)
		name, fallback, pipes := sub[1], sub[2], sub[3]
		hasDefault := strings.Contains(match, ":-")

		val, ok := vars[name]
		if !ok || val == nil || val == "" {
			switch {
			case hasDefault:
				val = fallback
			case e.missingAction == MissingEmpty:
				val = ""
			case e.missingAction == MissingError:
				missing = append(missing, name)
				return match
			default:
				return match
			}
		}

		if pipes == "" {
			return stringify(val)
		}
		for _, fname := range strings.Split(strings.TrimPrefix(pipes, "|"), "|") {
			f, ok := e.filters[fname]
			if !ok {
				if firstErr == nil {
					firstErr = fmt.Errorf("template: unknown filter %q", fname)
				}
				return match
			}
			res, err := f(val)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("template: filter %s on %s: %w", fname, name, err)
				}
				return match
			}
			val = res
		}
		return stringify(val)
	})

	if firstErr != nil {
		return out, firstErr
	}
	if len(missing) > 0 {
		return out, &UndefinedVariableError{Names: missing}
	}
	return out, nil
}

// MustExpand is Expand that panics on error.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	out, err := e.Expand(s, vars)
	if err != nil {
		panic(err)
	}
	return out
}

// ExpandMap expands every string value in m, recursing into nested maps.
func (e *Expander) ExpandMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			s, err := e.Expand(val, vars)
			if err != nil {
				return nil, err
			}
			out[k] = s
		case map[string]any:
			nested, err := e.ExpandMap(val, vars)
			if err != nil {
				return nil, err
			}
			out[k] = nested
		default:
			out[k] = v
		}
	}
	return out, nil
}

// Placeholders returns the distinct variable names referenced by s.
func Placeholders(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// UndefinedVariableError is returned under MissingError when placeholders
// have no value.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return "undefined variable: " + e.Names[0]
	}
	return "undefined variables: " + strings.Join(e.Names, ", ")
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

var defaultExpander = NewExpander()

// Expand expands s with the default expander, leaving unknown placeholders
// in place.
func Expand(s string, vars map[string]any) string {
	out, _ := defaultExpander.Expand(s, vars)
	return out
}
