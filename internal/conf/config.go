// Package conf loads and validates fleetwatch configuration.
package conf

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Scope resolution policies for rules whose scope resolves to zero devices.
const (
	ScopePolicySkip    = "skip"    // log and skip the rule this pass
	ScopePolicyDisable = "disable" // disable the rule persistently
)

// Availability source variants (see datastore/repository.AvailabilitySource).
const (
	AvailabilitySourceIntervals = "intervals" // downtime interval ledger
	AvailabilitySourceChecks    = "checks"    // raw health check log sampling
)

// Settings is the full fleetwatch configuration tree.
type Settings struct {
	Log      LogSettings      `mapstructure:"log"`
	Database DatabaseSettings `mapstructure:"database"`
	Engine   EngineSettings   `mapstructure:"engine"`
	Notify   NotifySettings   `mapstructure:"notify"`
	MQTT     MQTTSettings     `mapstructure:"mqtt"`
	API      APISettings      `mapstructure:"api"`
	Sentry   SentrySettings   `mapstructure:"sentry"`
}

// LogSettings controls log output.
type LogSettings struct {
	Level string `mapstructure:"level"`
}

// DatabaseSettings selects the storage backend.
type DatabaseSettings struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "mysql"
	DSN    string `mapstructure:"dsn"`
}

// EngineSettings controls the alert rule engine.
type EngineSettings struct {
	TickInterval       Duration `mapstructure:"tick_interval"`
	DefaultRateLimit   Duration `mapstructure:"default_rate_limit"`
	DefaultSuppress    bool     `mapstructure:"default_suppress_during_maintenance"`
	ScopePolicy        string   `mapstructure:"scope_policy"`
	RecoveryLookback   Duration `mapstructure:"recovery_lookback"`
	AvailabilitySource string   `mapstructure:"availability_source"`
}

// NotifySettings controls the notification dispatcher.
type NotifySettings struct {
	Workers       int               `mapstructure:"workers"`
	QueueSize     int               `mapstructure:"queue_size"`
	ShutdownGrace Duration          `mapstructure:"shutdown_grace"`
	Channels      []ChannelSettings `mapstructure:"channels"`
}

// Notification channel types.
const (
	ChannelTypeShoutrrr = "shoutrrr" // URL is a shoutrrr service URL (smtp://, ntfy://, ...)
	ChannelTypeWebhook  = "webhook"  // URL is an HTTP endpoint receiving JSON POSTs
)

// ChannelSettings configures a single notification channel.
// External channels get mandatory redaction of network literals. A channel
// is external unless the config opts out with `external: false`, so a
// forgotten flag can never leak unredacted text off-site.
type ChannelSettings struct {
	Name       string   `mapstructure:"name"`
	Type       string   `mapstructure:"type"`
	URL        string   `mapstructure:"url"`
	External   *bool    `mapstructure:"external"`
	Recipients []string `mapstructure:"recipients"`
}

// IsExternal reports whether the channel leaves the site. Unset means
// external.
func (c *ChannelSettings) IsExternal() bool {
	return c.External == nil || *c.External
}

// MQTTSettings configures the device status ingest subscriber.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// APISettings configures the HTTP API server.
type APISettings struct {
	Listen string `mapstructure:"listen"`
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "fleetwatch.db")
	v.SetDefault("engine.tick_interval", "5m")
	v.SetDefault("engine.default_rate_limit", "60m")
	v.SetDefault("engine.default_suppress_during_maintenance", true)
	v.SetDefault("engine.scope_policy", ScopePolicySkip)
	v.SetDefault("engine.recovery_lookback", "15m")
	v.SetDefault("engine.availability_source", AvailabilitySourceIntervals)
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.shutdown_grace", "10s")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.topic", "fleetwatch/status/+")
	v.SetDefault("mqtt.client_id", "fleetwatch")
	v.SetDefault("api.listen", ":8090")
}

// Load reads configuration from the given file path (optional; viper search
// paths apply when empty) plus FLEETWATCH_* environment overrides.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fleetwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fleetwatch")
	}

	v.SetEnvPrefix("FLEETWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env apply.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (s *Settings) Validate() error {
	if s.Engine.TickInterval.Std() < time.Second {
		return fmt.Errorf("engine.tick_interval must be at least 1s, got %s", s.Engine.TickInterval.Std())
	}
	switch s.Engine.ScopePolicy {
	case ScopePolicySkip, ScopePolicyDisable:
	default:
		return fmt.Errorf("engine.scope_policy must be %q or %q, got %q",
			ScopePolicySkip, ScopePolicyDisable, s.Engine.ScopePolicy)
	}
	switch s.Engine.AvailabilitySource {
	case AvailabilitySourceIntervals, AvailabilitySourceChecks:
	default:
		return fmt.Errorf("engine.availability_source must be %q or %q, got %q",
			AvailabilitySourceIntervals, AvailabilitySourceChecks, s.Engine.AvailabilitySource)
	}
	if s.Notify.Workers <= 0 {
		return fmt.Errorf("notify.workers must be positive, got %d", s.Notify.Workers)
	}
	if s.Notify.QueueSize <= 0 {
		return fmt.Errorf("notify.queue_size must be positive, got %d", s.Notify.QueueSize)
	}
	for i := range s.Notify.Channels {
		ch := &s.Notify.Channels[i]
		if ch.Name == "" {
			return fmt.Errorf("notify.channels[%d]: name is required", i)
		}
		if ch.URL == "" {
			return fmt.Errorf("notify.channels[%d] (%s): url is required", i, ch.Name)
		}
		switch ch.Type {
		case "", ChannelTypeShoutrrr, ChannelTypeWebhook:
		default:
			return fmt.Errorf("notify.channels[%d] (%s): type must be %q or %q, got %q",
				i, ch.Name, ChannelTypeShoutrrr, ChannelTypeWebhook, ch.Type)
		}
	}
	return nil
}
