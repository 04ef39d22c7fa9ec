package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YaganovValera/quote-stream/internal/session"
	"github.com/YaganovValera/quote-stream/internal/sink"
	"github.com/YaganovValera/quote-stream/pkg/kafka"
	"github.com/YaganovValera/quote-stream/pkg/logger"
	"github.com/YaganovValera/quote-stream/pkg/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. QUOTESTREAM_STREAM_TOKEN.
const EnvPrefix = "QUOTESTREAM"

// ----------------------------------------------------------------------------
// Structures
// ----------------------------------------------------------------------------

// Config is the full service configuration.
type Config struct {
	ServiceName    string           `mapstructure:"service_name"`
	ServiceVersion string           `mapstructure:"service_version"`
	Stream         StreamConfig     `mapstructure:"stream"`
	Decoder        DecoderConfig    `mapstructure:"decoder"`
	Hub            HubConfig        `mapstructure:"hub"`
	Sinks          SinksConfig      `mapstructure:"sinks"`
	HTTP           HTTPConfig       `mapstructure:"http"`
	Telemetry      telemetry.Config `mapstructure:"telemetry"`
	Logging        logger.Config    `mapstructure:"logging"`
}

// StreamConfig holds the feed defaults plus bridge behaviour.
type StreamConfig struct {
	session.Config `mapstructure:",squash"`

	// AutoStart opens a session on startup with the configured credentials.
	AutoStart bool `mapstructure:"auto_start"`
	// Policy is "single" or "multi".
	Policy string `mapstructure:"policy"`
}

// DecoderConfig tunes the frame decoder.
type DecoderConfig struct {
	// Timezone is an IANA name used for timestamp fields; "Local" or empty
	// means the host zone.
	Timezone   string `mapstructure:"timezone"`
	SchemaFile string `mapstructure:"schema_file"`
	MaxPayload int    `mapstructure:"max_payload"`
}

// Location resolves Timezone.
func (d DecoderConfig) Location() (*time.Location, error) {
	if d.Timezone == "" || strings.EqualFold(d.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(d.Timezone)
}

type HubConfig struct {
	ClientBuffer int `mapstructure:"client_buffer"`
}

// SinksConfig enables the optional external event sinks.
type SinksConfig struct {
	BufferSize int             `mapstructure:"buffer_size"`
	Kafka      KafkaSinkConfig `mapstructure:"kafka"`
	Redis      RedisSinkConfig `mapstructure:"redis"`
}

type KafkaSinkConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Topic        string `mapstructure:"topic"`
	kafka.Config `mapstructure:",squash"`
}

type RedisSinkConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	sink.RedisConfig `mapstructure:",squash"`
}

// HTTPConfig configures the bridge server.
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	HealthzPath     string        `mapstructure:"healthz_path"`
	ReadyzPath      string        `mapstructure:"readyz_path"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// ----------------------------------------------------------------------------
// Loader
// ----------------------------------------------------------------------------

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "quote-stream")
	v.SetDefault("service_version", "v0.1.0")

	v.SetDefault("stream.base_url", "")
	v.SetDefault("stream.token", "")
	v.SetDefault("stream.api_key", "")
	v.SetDefault("stream.symbols", []string{"2885_NSE"})
	v.SetDefault("stream.path", session.DefaultPath)
	v.SetDefault("stream.streaming_type", session.DefaultStreamingType)
	v.SetDefault("stream.receive_timeout", session.DefaultReceiveTimeout.String())
	v.SetDefault("stream.dial_timeout", session.DefaultDialTimeout.String())
	v.SetDefault("stream.write_timeout", session.DefaultWriteTimeout.String())
	v.SetDefault("stream.auto_start", false)
	v.SetDefault("stream.policy", string(session.PolicySingle))

	v.SetDefault("decoder.timezone", "Local")
	v.SetDefault("decoder.schema_file", "")
	v.SetDefault("decoder.max_payload", 64<<10)

	v.SetDefault("hub.client_buffer", sink.DefaultClientBuffer)

	v.SetDefault("sinks.buffer_size", sink.DefaultQueueSize)
	v.SetDefault("sinks.kafka.enabled", false)
	v.SetDefault("sinks.kafka.topic", "quotestream.events")
	v.SetDefault("sinks.kafka.brokers", []string{})
	v.SetDefault("sinks.kafka.required_acks", "all")
	v.SetDefault("sinks.kafka.timeout", "5s")
	v.SetDefault("sinks.kafka.compression", "none")
	v.SetDefault("sinks.redis.enabled", false)
	v.SetDefault("sinks.redis.url", "")
	v.SetDefault("sinks.redis.channel", "quotestream.events")
	v.SetDefault("sinks.redis.snapshot_prefix", "quote:")
	v.SetDefault("sinks.redis.snapshot_ttl", "1h")

	v.SetDefault("http.port", 8000)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "5s")
	v.SetDefault("http.metrics_path", "/metrics")
	v.SetDefault("http.healthz_path", "/healthz")
	v.SetDefault("http.readyz_path", "/readyz")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sampler_ratio", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dev_mode", false)
}

// LoadOption adjusts the viper instance before decoding.
type LoadOption func(v *viper.Viper) error

// WithFlags binds command-line flags to config keys (key -> flag name).
// A bound flag wins over file and environment only when it was set.
func WithFlags(fs *pflag.FlagSet, keys map[string]string) LoadOption {
	return func(v *viper.Viper) error {
		for key, name := range keys {
			f := fs.Lookup(name)
			if f == nil {
				return fmt.Errorf("unknown flag %q for key %q", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
		return nil
	}
}

// Load reads defaults, then the optional YAML file, then QUOTESTREAM_*
// environment overrides and bound flags, and validates the result. An
// empty path skips the file.
func Load(path string, opts ...LoadOption) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := decode(v.AllSettings(), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Telemetry.ServiceName = cfg.ServiceName
	cfg.Telemetry.ServiceVersion = cfg.ServiceVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func decode(input map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  target,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToBoolHook,
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// stringToBoolHook parses "true"/"false" from env strings.
func stringToBoolHook(f, t reflect.Kind, data any) (any, error) {
	if f == reflect.String && t == reflect.Bool {
		return strconv.ParseBool(data.(string))
	}
	return data, nil
}

// ----------------------------------------------------------------------------
// Validation
// ----------------------------------------------------------------------------

// Validate checks every section. Feed credentials are only required when
// a session is started at boot; otherwise they arrive with /start-socket.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required")
	}
	if err := c.Stream.validate(); err != nil {
		return err
	}
	if _, err := c.Decoder.Location(); err != nil {
		return fmt.Errorf("decoder.timezone: %w", err)
	}
	if c.Decoder.MaxPayload < 0 {
		return fmt.Errorf("decoder.max_payload must be >= 0")
	}
	if c.Hub.ClientBuffer <= 0 {
		return fmt.Errorf("hub.client_buffer must be > 0")
	}
	if err := c.Sinks.validate(); err != nil {
		return err
	}
	if err := c.HTTP.validate(); err != nil {
		return err
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error]")
	}
	return nil
}

func (s StreamConfig) validate() error {
	if _, err := session.ParsePolicy(s.Policy); err != nil {
		return fmt.Errorf("stream.policy: %w", err)
	}
	for k, d := range map[string]time.Duration{
		"stream.receive_timeout": s.ReceiveTimeout,
		"stream.dial_timeout":    s.DialTimeout,
		"stream.write_timeout":   s.WriteTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must be >= 0", k)
		}
	}
	if !s.AutoStart {
		return nil
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("stream (auto_start): %w", err)
	}
	if _, err := s.URL(); err != nil {
		return fmt.Errorf("stream.base_url: %w", err)
	}
	return nil
}

func (s SinksConfig) validate() error {
	if s.BufferSize <= 0 {
		return fmt.Errorf("sinks.buffer_size must be > 0")
	}
	if s.Kafka.Enabled {
		if len(s.Kafka.Brokers) == 0 {
			return fmt.Errorf("sinks.kafka.brokers is required when the kafka sink is enabled")
		}
		if s.Kafka.Topic == "" {
			return fmt.Errorf("sinks.kafka.topic is required when the kafka sink is enabled")
		}
		switch strings.ToLower(s.Kafka.RequiredAcks) {
		case "", "all", "leader", "none":
		default:
			return fmt.Errorf("sinks.kafka.required_acks must be one of [all, leader, none]")
		}
	}
	if s.Redis.Enabled && s.Redis.URL == "" {
		return fmt.Errorf("sinks.redis.url is required when the redis sink is enabled")
	}
	return nil
}

func (h HTTPConfig) validate() error {
	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}
	for k, d := range map[string]time.Duration{
		"http.read_timeout":     h.ReadTimeout,
		"http.write_timeout":    h.WriteTimeout,
		"http.idle_timeout":     h.IdleTimeout,
		"http.shutdown_timeout": h.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", k)
		}
	}
	for k, p := range map[string]string{
		"http.metrics_path": h.MetricsPath,
		"http.healthz_path": h.HealthzPath,
		"http.readyz_path":  h.ReadyzPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/'", k)
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Debug print
// ----------------------------------------------------------------------------

// Print writes the configuration as indented JSON with credentials masked.
func (c *Config) Print(w io.Writer) error {
	cp := *c
	cp.Stream.Token = maskSecret(cp.Stream.Token)
	cp.Stream.APIKey = maskSecret(cp.Stream.APIKey)
	cp.Sinks.Redis.URL = maskURL(cp.Sinks.Redis.URL)

	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Loaded configuration:\n%s\n", b)
	return err
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
