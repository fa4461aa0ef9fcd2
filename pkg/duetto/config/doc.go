/*
Package config loads duetto's process settings and reads component options.

# Settings

Settings is the top-level process configuration. Load reads a YAML file and
then applies environment overrides (DUETTO_*); when the file does not exist
it falls back to the environment alone:

	settings, err := config.Load("duetto.yaml")
	if err != nil {
	    log.Fatal(err)
	}

Producers, stages, and channels are declared as lists of components, each
naming a registered kind and carrying free-form options:

	stages:
	  - kind: dedup
	    options:
	      capacity: 5000
	      scope: source
	      max_sources: 64
	  - kind: priority
	    options:
	      min: medium
	      per_source:
	        sec-edgar: high

# Component options

Config wraps a component's options map with typed accessors that return a
default when the key is missing or holds the wrong type:

	cfg := component.Config()
	capacity := cfg.Int("capacity", 1000)
	timeout := cfg.Duration("timeout", 10*time.Second)
	headers := cfg.StringMap("headers")

Keys may be dotted paths into nested maps ("auth.token"), and Sub returns
the nested map as its own Config.

Duration accepts a string for time.ParseDuration or a number of seconds.
Int accepts a float64 only when it has no fractional part.

An options value may name a file with more options (options_file); ReadOptions
loads it and Overlay layers the inline options on top.

Config is safe for concurrent reads. The underlying map is never modified.
*/
package config
