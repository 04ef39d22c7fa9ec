package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YaganovValera/quote-stream/internal/config"
	httpserver "github.com/YaganovValera/quote-stream/internal/http"
	"github.com/YaganovValera/quote-stream/internal/metrics"
	"github.com/YaganovValera/quote-stream/internal/packet"
	"github.com/YaganovValera/quote-stream/internal/session"
	"github.com/YaganovValera/quote-stream/internal/sink"
	"github.com/YaganovValera/quote-stream/pkg/kafka"
	"github.com/YaganovValera/quote-stream/pkg/logger"
	"github.com/YaganovValera/quote-stream/pkg/telemetry"
)

// Run starts the bridge: HTTP control surface, log hub, optional broker
// sinks and the session manager. It blocks until ctx is cancelled or a
// component fails.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	metrics.Register()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownSafe(ctx, "telemetry", func() error { return shutdownTracer(context.Background()) }, log)

	dec, err := NewDecoder(cfg.Decoder)
	if err != nil {
		return err
	}

	hub := sink.NewHub(cfg.Hub.ClientBuffer)
	defer hub.Close()

	g, gctx := errgroup.WithContext(ctx)

	events := sink.Tee{sink.NewLoggerSink(log), hub}
	var checks []func(context.Context) error

	// Kafka event sink
	if cfg.Sinks.Kafka.Enabled {
		prod, err := kafka.NewProducer(ctx, cfg.Sinks.Kafka.Config, log)
		if err != nil {
			return fmt.Errorf("kafka sink init: %w", err)
		}
		async := sink.NewAsync(sink.NewKafkaPublisher(prod, cfg.Sinks.Kafka.Topic), cfg.Sinks.BufferSize, log)
		events = append(events, async)
		checks = append(checks, prod.Ping)
		g.Go(func() error { return async.Run(gctx) })
	}

	// Redis event sink
	if cfg.Sinks.Redis.Enabled {
		pub, err := sink.NewRedisPublisher(ctx, cfg.Sinks.Redis.RedisConfig, log)
		if err != nil {
			return fmt.Errorf("redis sink init: %w", err)
		}
		async := sink.NewAsync(pub, cfg.Sinks.BufferSize, log)
		events = append(events, async)
		checks = append(checks, pub.Ping)
		g.Go(func() error { return async.Run(gctx) })
	}

	policy, err := session.ParsePolicy(cfg.Stream.Policy)
	if err != nil {
		return err
	}
	mgr := session.NewManager(gctx, cfg.Stream.Config, policy, events, log,
		session.WithDecoder(dec),
		session.WithLogger(log),
	)

	if cfg.Stream.AutoStart {
		s, _, err := mgr.Start(session.StartRequest{})
		if err != nil {
			return fmt.Errorf("auto start: %w", err)
		}
		log.Info("session auto-started", zap.String("session_id", s.ID()))
	}

	readiness := func() error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	srv, err := httpserver.New(httpserver.Config{
		Addr:            fmt.Sprintf(":%d", cfg.HTTP.Port),
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		MetricsPath:     cfg.HTTP.MetricsPath,
		HealthzPath:     cfg.HTTP.HealthzPath,
		ReadyzPath:      cfg.HTTP.ReadyzPath,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
	}, mgr, hub, readiness, log)
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}

	g.Go(func() error { return srv.Start(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		shutdownSafe(ctx, "session-manager", func() error { return mgr.Shutdown(shutdownCtx) }, log)
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("bridge stopped by context")
			return nil
		}
		return err
	}
	return nil
}

// Stream runs a single session with cfg.Stream and writes every event
// line to out until ctx is cancelled or the session ends.
func Stream(ctx context.Context, cfg *config.Config, out io.Writer, log *logger.Logger) error {
	if err := cfg.Stream.Config.Validate(); err != nil {
		return err
	}
	dec, err := NewDecoder(cfg.Decoder)
	if err != nil {
		return err
	}
	s, err := session.New(cfg.Stream.Config, sink.Tee{sink.NewWriterSink(out), sink.NewLoggerSink(log)},
		session.WithDecoder(dec),
		session.WithLogger(log),
	)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// NewDecoder builds the frame decoder from its configuration section.
func NewDecoder(cfg config.DecoderConfig) (*packet.Decoder, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("decoder timezone: %w", err)
	}
	reg := packet.DefaultRegistry()
	if cfg.SchemaFile != "" {
		if reg, err = packet.LoadSchemaFile(reg, cfg.SchemaFile); err != nil {
			return nil, err
		}
	}
	return packet.NewDecoder(
		packet.WithRegistry(reg),
		packet.WithLocation(loc),
		packet.WithMaxPayload(cfg.MaxPayload),
	), nil
}

// shutdownSafe wraps a Close/Shutdown call with logging.
func shutdownSafe(ctx context.Context, name string, fn func() error, log *logger.Logger) {
	log.WithContext(ctx).Info(fmt.Sprintf("%s: shutting down", name))
	if err := fn(); err != nil {
		log.WithContext(ctx).Error(fmt.Sprintf("%s shutdown error", name), zap.Error(err))
	} else {
		log.WithContext(ctx).Info(fmt.Sprintf("%s: shutdown complete", name))
	}
}
