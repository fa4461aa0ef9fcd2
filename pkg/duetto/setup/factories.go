package setup

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/duetto/pkg/duetto"
	"github.com/randalmurphal/duetto/pkg/duetto/channel/kafka"
	"github.com/randalmurphal/duetto/pkg/duetto/channel/logsink"
	"github.com/randalmurphal/duetto/pkg/duetto/channel/mqtt"
	"github.com/randalmurphal/duetto/pkg/duetto/channel/redis"
	"github.com/randalmurphal/duetto/pkg/duetto/channel/webhook"
	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/producer"
	kafkain "github.com/randalmurphal/duetto/pkg/duetto/producer/kafka"
	"github.com/randalmurphal/duetto/pkg/duetto/producer/secedgar"
	"github.com/randalmurphal/duetto/pkg/duetto/registry"
	"github.com/randalmurphal/duetto/pkg/duetto/stage"
)

// ProducerFactory builds a producer from its configured name and options.
type ProducerFactory func(name string, opts config.Config, logger *slog.Logger) (duetto.Producer, error)

// ChannelFactory builds a delivery channel from its configured name and
// options.
type ChannelFactory func(name string, opts config.Config, logger *slog.Logger) (delivery.Channel, error)

// Registries holds the component kinds Build can construct.
type Registries struct {
	Producers *registry.Registry[string, ProducerFactory]
	Stages    *registry.Registry[string, stage.Factory]
	Channels  *registry.Registry[string, ChannelFactory]
}

// DefaultRegistries returns registries with every built-in kind. Callers
// may register their own kinds before passing them to BuildWith.
func DefaultRegistries() (*Registries, error) {
	r := &Registries{
		Producers: registry.New[string, ProducerFactory](),
		Stages:    registry.New[string, stage.Factory](),
		Channels:  registry.New[string, ChannelFactory](),
	}

	for kind, f := range map[string]ProducerFactory{
		"static":    buildStatic,
		"push":      buildPush,
		"http_poll": buildHTTPPoll,
		"sec_edgar": secedgar.FromConfig,
		"kafka":     buildKafkaProducer,
	} {
		if err := r.Producers.Register(kind, f); err != nil {
			return nil, err
		}
	}

	if err := stage.Register(r.Stages); err != nil {
		return nil, err
	}

	for kind, f := range map[string]ChannelFactory{
		"webhook":  buildWebhook(""),
		"feishu":   buildWebhook(webhook.FormatFeishu),
		"discord":  buildWebhook(webhook.FormatDiscord),
		"slack":    buildWebhook(webhook.FormatSlack),
		"telegram": buildWebhook(webhook.FormatTelegram),
		"redis":    buildRedis,
		"kafka":    buildKafkaChannel,
		"mqtt":     buildMQTT,
		"log":      buildLog,
	} {
		if err := r.Channels.Register(kind, f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func buildStatic(name string, opts config.Config, _ *slog.Logger) (duetto.Producer, error) {
	return producer.StaticFromConfig(name, opts)
}

func buildPush(name string, _ config.Config, _ *slog.Logger) (duetto.Producer, error) {
	return producer.NewPush(name), nil
}

func buildHTTPPoll(name string, opts config.Config, logger *slog.Logger) (duetto.Producer, error) {
	return producer.PollerFromConfig(name, opts, logger)
}

func buildKafkaProducer(name string, opts config.Config, logger *slog.Logger) (duetto.Producer, error) {
	return kafkain.FromConfig(name, opts, logger)
}

// buildWebhook returns a factory for a webhook channel. A non-empty format
// is applied unless the options set their own.
func buildWebhook(format webhook.Format) ChannelFactory {
	return func(name string, opts config.Config, _ *slog.Logger) (delivery.Channel, error) {
		if format != "" && !opts.Has("format") {
			raw := opts.Raw()
			if raw == nil {
				raw = make(map[string]any)
			}
			raw["format"] = string(format)
			opts = config.New(raw)
		}
		return webhook.FromConfig(name, opts)
	}
}

func buildRedis(name string, opts config.Config, _ *slog.Logger) (delivery.Channel, error) {
	return redis.FromConfig(name, opts)
}

func buildKafkaChannel(name string, opts config.Config, _ *slog.Logger) (delivery.Channel, error) {
	return kafka.FromConfig(name, opts)
}

func buildMQTT(name string, opts config.Config, _ *slog.Logger) (delivery.Channel, error) {
	return mqtt.FromConfig(name, opts)
}

func buildLog(name string, _ config.Config, logger *slog.Logger) (delivery.Channel, error) {
	if logger == nil {
		return nil, fmt.Errorf("log channel %s: a logger is required", name)
	}
	return logsink.New(name, logger), nil
}
