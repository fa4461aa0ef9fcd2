package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Settings is the process configuration for the duetto binary.
type Settings struct {
	Server      Server      `yaml:"server"`
	Engine      Engine      `yaml:"engine"`
	Log         Log         `yaml:"log"`
	Metrics     Metrics     `yaml:"metrics"`
	DeadLetter  DeadLetter  `yaml:"dead_letter"`
	Recent      Recent      `yaml:"recent"`
	Delivery    Delivery    `yaml:"delivery"`
	Subscribers Subscribers `yaml:"subscribers"`

	Producers []Component `yaml:"producers"`
	Stages    []Component `yaml:"stages"`
	Channels  []Component `yaml:"channels"`
}

type Server struct {
	Host         string        `yaml:"host" env:"DUETTO_HOST" env-default:"0.0.0.0"`
	Port         int           `yaml:"port" env:"DUETTO_PORT" env-default:"8765"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"DUETTO_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"DUETTO_WRITE_TIMEOUT" env-default:"10s"`
}

// Addr returns host:port for http.Server.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Engine struct {
	GracePeriod  time.Duration `yaml:"grace_period" env:"DUETTO_GRACE_PERIOD" env-default:"5s"`
	DrainTimeout time.Duration `yaml:"drain_timeout" env:"DUETTO_DRAIN_TIMEOUT" env-default:"30s"`
}

type Log struct {
	Level  string `yaml:"level" env:"DUETTO_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"DUETTO_LOG_FORMAT" env-default:"json"`
}

type Metrics struct {
	// Backend is one of otel, prometheus, none.
	Backend string `yaml:"backend" env:"DUETTO_METRICS_BACKEND" env-default:"prometheus"`
	Tracing bool   `yaml:"tracing" env:"DUETTO_TRACING" env-default:"false"`
}

type DeadLetter struct {
	// Driver is memory or sqlite.
	Driver  string `yaml:"driver" env:"DUETTO_DEADLETTER_DRIVER" env-default:"memory"`
	Path    string `yaml:"path" env:"DUETTO_DEADLETTER_PATH" env-default:"duetto-deadletter.db"`
	MaxSize int    `yaml:"max_size" env:"DUETTO_DEADLETTER_MAX_SIZE" env-default:"1000"`
}

type Recent struct {
	Capacity int `yaml:"capacity" env:"DUETTO_RECENT_CAPACITY" env-default:"100"`
}

type Delivery struct {
	Concurrency int           `yaml:"concurrency" env:"DUETTO_DELIVERY_CONCURRENCY" env-default:"0"`
	Timeout     time.Duration `yaml:"timeout" env:"DUETTO_DELIVERY_TIMEOUT" env-default:"15s"`
}

type Subscribers struct {
	SendTimeout time.Duration `yaml:"send_timeout" env:"DUETTO_SUBSCRIBER_SEND_TIMEOUT" env-default:"5s"`
}

// Component declares one producer, stage, or channel by registered kind.
type Component struct {
	Kind    string         `yaml:"kind"`
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options"`
}

// DisplayName returns Name, falling back to Kind.
func (c Component) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Kind
}

// Config wraps the component's options.
func (c Component) Config() Config {
	return New(c.Options)
}

// DefaultStages is the chain used when no stages are configured.
var DefaultStages = []Component{
	{Kind: "dedup"},
	{Kind: "classify"},
	{Kind: "noise"},
	{Kind: "priority"},
}

// Load reads settings from the YAML file at path and applies DUETTO_*
// environment overrides. A missing file falls back to the environment.
func Load(path string) (*Settings, error) {
	s := &Settings{}

	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(s); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, s); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if len(s.Stages) == 0 {
		s.Stages = append([]Component(nil), DefaultStages...)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks enumerated fields and component declarations.
func (s *Settings) Validate() error {
	switch s.Metrics.Backend {
	case "otel", "prometheus", "none":
	default:
		return fmt.Errorf("config error: unknown metrics backend %q", s.Metrics.Backend)
	}
	switch s.DeadLetter.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config error: unknown dead letter driver %q", s.DeadLetter.Driver)
	}
	switch s.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config error: unknown log format %q", s.Log.Format)
	}

	for section, list := range map[string][]Component{
		"producers": s.Producers,
		"stages":    s.Stages,
		"channels":  s.Channels,
	} {
		seen := make(map[string]bool, len(list))
		for i, c := range list {
			if c.Kind == "" {
				return fmt.Errorf("config error: %s[%d]: kind is required", section, i)
			}
			name := c.DisplayName()
			if seen[name] {
				return fmt.Errorf("config error: %s: duplicate name %q", section, name)
			}
			seen[name] = true
		}
	}
	return nil
}
