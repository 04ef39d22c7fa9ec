package session

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultPath           = "/market-stream"
	DefaultStreamingType  = "quote"
	DefaultReceiveTimeout = 10 * time.Second
	DefaultDialTimeout    = 15 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
)

// Config describes one feed connection.
type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	APIKey         string        `mapstructure:"api_key"`
	Symbols        []string      `mapstructure:"symbols"`
	Path           string        `mapstructure:"path"`
	StreamingType  string        `mapstructure:"streaming_type"`
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// ApplyDefaults fills unset tunables.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.StreamingType == "" {
		c.StreamingType = DefaultStreamingType
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// Validate checks the fields a connection cannot do without.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return fmt.Errorf("session: base_url is required")
	case c.Token == "":
		return fmt.Errorf("session: token is required")
	case c.APIKey == "":
		return fmt.Errorf("session: api_key is required")
	case len(c.Symbols) == 0:
		return fmt.Errorf("session: at least one symbol is required")
	}
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("session: empty symbol")
		}
	}
	return nil
}

// URL builds wss://<host>/market-stream?token=..&apikey=.. . An http(s)
// scheme on the base is replaced by wss; ws:// and wss:// are kept.
func (c Config) URL() (string, error) {
	return c.buildURL(c.Token, c.APIKey)
}

// RedactedURL is URL with credentials masked, for logs and events.
func (c Config) RedactedURL() string {
	u, err := c.buildURL(mask(c.Token), mask(c.APIKey))
	if err != nil {
		return c.BaseURL
	}
	return u
}

func (c Config) buildURL(token, apiKey string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	lower := strings.ToLower(base)
	switch {
	case strings.HasPrefix(lower, "ws://"), strings.HasPrefix(lower, "wss://"):
	case strings.HasPrefix(lower, "https://"):
		base = "wss://" + base[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		base = "wss://" + base[len("http://"):]
	default:
		base = "wss://" + base
	}
	path := c.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	raw := base + path + "?token=" + url.QueryEscape(token) + "&apikey=" + url.QueryEscape(apiKey)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("session: invalid base url %q: %w", c.BaseURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("session: base url %q has no host", c.BaseURL)
	}
	return raw, nil
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
