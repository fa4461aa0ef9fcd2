package stage

import (
	"fmt"

	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/registry"
)

// Factory builds a stage from its configured name and options.
type Factory func(name string, opts config.Config) (chain.Stage, error)

// Register adds the built-in stage kinds to r.
func Register(r *registry.Registry[string, Factory]) error {
	for kind, f := range map[string]Factory{
		"dedup":    buildDedup,
		"priority": buildPriority,
		"noise":    buildNoise,
		"classify": buildClassify,
		"catalyst": buildCatalyst,
		"expr":     buildExpr,
	} {
		if err := r.Register(kind, f); err != nil {
			return err
		}
	}
	return nil
}

func buildDedup(name string, opts config.Config) (chain.Stage, error) {
	return NewDedup(name,
		opts.Int("capacity", DefaultDedupCapacity),
		Scope(opts.String("scope", string(ScopeGlobal))),
		WithMaxSources(opts.Int("max_sources", DefaultMaxSources)),
	)
}

func buildPriority(name string, opts config.Config) (chain.Stage, error) {
	floor, err := event.ParsePriority(opts.String("min", "low"))
	if err != nil {
		return nil, fmt.Errorf("priority stage %s: %w", name, err)
	}
	perSource := make(map[string]event.Priority)
	for source, raw := range opts.StringMap("per_source") {
		p, err := event.ParsePriority(raw)
		if err != nil {
			return nil, fmt.Errorf("priority stage %s: per_source %s: %w", name, source, err)
		}
		perSource[source] = p
	}
	return NewPriority(name, floor, perSource), nil
}

func buildNoise(name string, opts config.Config) (chain.Stage, error) {
	if !opts.Bool("enabled", true) {
		return NewNoise(name, []string{})
	}
	return NewNoise(name, opts.StringSlice("patterns", nil))
}

func buildClassify(name string, _ config.Config) (chain.Stage, error) {
	return NewClassifier(name), nil
}

func buildCatalyst(name string, opts config.Config) (chain.Stage, error) {
	allow := opts.StringSlice("types", nil)
	known := Catalysts()
	for _, t := range allow {
		if !hasAny(known, t) {
			return nil, fmt.Errorf("catalyst stage %s: unknown catalyst %q", name, t)
		}
	}
	return NewCatalystFilter(name, allow), nil
}

func buildExpr(name string, opts config.Config) (chain.Stage, error) {
	when := opts.String("when", "")
	if when == "" {
		return nil, fmt.Errorf("expr stage %s: option \"when\" is required", name)
	}
	return NewExpr(name, when)
}
