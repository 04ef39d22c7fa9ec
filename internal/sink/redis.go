package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-stream/pkg/backoff"
	"github.com/YaganovValera/quote-stream/pkg/logger"
)

// RedisConfig holds the connection and key layout of the Redis sink.
type RedisConfig struct {
	URL            string         `mapstructure:"url"` // e.g. "redis://host:6379/0"
	Channel        string         `mapstructure:"channel"`
	SnapshotPrefix string         `mapstructure:"snapshot_prefix"`
	SnapshotTTL    time.Duration  `mapstructure:"snapshot_ttl"`
	Backoff        backoff.Config `mapstructure:"backoff"`
}

func (c *RedisConfig) applyDefaults() {
	if c.Channel == "" {
		c.Channel = "quotestream.events"
	}
	if c.SnapshotPrefix == "" {
		c.SnapshotPrefix = "quote:"
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = time.Hour
	}
}

func (c RedisConfig) validate() error {
	if c.URL == "" {
		return fmt.Errorf("redis sink: url required")
	}
	return nil
}

// RedisPublisher publishes every event as JSON on a pub/sub channel and
// keeps the latest record per symbol under SnapshotPrefix+symbol.
type RedisPublisher struct {
	client  *redis.Client
	cfg     RedisConfig
	backoff backoff.Config
	log     *logger.Logger
}

// NewRedisPublisher connects and pings with back-off.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig, log *logger.Logger) (*RedisPublisher, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis sink: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	log = log.Named("redis")

	bcfg := cfg.Backoff
	bcfg.Op = "redis.connect"
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := backoff.Execute(ctx, bcfg, log, ping); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis sink: connect: %w", err)
	}
	log.Info("redis sink connected", zap.String("addr", opts.Addr), zap.String("channel", cfg.Channel))
	return newRedisPublisher(client, cfg, log), nil
}

func newRedisPublisher(client *redis.Client, cfg RedisConfig, log *logger.Logger) *RedisPublisher {
	cfg.applyDefaults()
	bcfg := cfg.Backoff
	bcfg.Op = "redis.publish"
	return &RedisPublisher{client: client, cfg: cfg, backoff: bcfg, log: log}
}

func (r *RedisPublisher) Name() string { return "redis" }

func (r *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis sink: marshal: %w", err)
	}
	var snapshot []byte
	symbol := ""
	if e.Kind == KindRecord && e.Record != nil {
		if v, ok := e.Record.Get("symbol"); ok {
			symbol, _ = v.(string)
		}
		if symbol != "" {
			if snapshot, err = e.Record.MarshalJSON(); err != nil {
				return fmt.Errorf("redis sink: marshal record: %w", err)
			}
		}
	}

	return backoff.Execute(ctx, r.backoff, r.log, func(ctx context.Context) error {
		pipe := r.client.Pipeline()
		if snapshot != nil {
			pipe.Set(ctx, r.cfg.SnapshotPrefix+symbol, snapshot, r.cfg.SnapshotTTL)
		}
		pipe.Publish(ctx, r.cfg.Channel, payload)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Ping reports whether Redis answers; used by /readyz.
func (r *RedisPublisher) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisPublisher) Close() error { return r.client.Close() }
