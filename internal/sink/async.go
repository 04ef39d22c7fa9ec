package sink

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/quote-stream/internal/metrics"
	"github.com/YaganovValera/quote-stream/pkg/logger"
)

const (
	// DefaultQueueSize bounds events waiting for a publisher.
	DefaultQueueSize = 1024

	drainTimeout = 5 * time.Second
)

// Publisher delivers events to an external system. Publish may block and
// retry; it is only ever called from one goroutine.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Async decouples a Publisher from emitters with a bounded queue and a
// single worker started by Run.
type Async struct {
	pub   Publisher
	queue chan Event
	log   *logger.Logger
}

func NewAsync(pub Publisher, size int, log *logger.Logger) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Async{
		pub:   pub,
		queue: make(chan Event, size),
		log:   log.Named("sink." + pub.Name()),
	}
}

// Emit enqueues e or drops it when the queue is full.
func (a *Async) Emit(e Event) {
	select {
	case a.queue <- e:
	default:
		metrics.SinkDrops.WithLabelValues(a.pub.Name()).Inc()
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is
// left within a short deadline and closes the publisher.
func (a *Async) Run(ctx context.Context) error {
	a.log.Info("sink started")
	for {
		select {
		case <-ctx.Done():
			a.drain()
			if err := a.pub.Close(); err != nil {
				a.log.Warn("sink close failed", zap.Error(err))
			}
			a.log.Info("sink stopped")
			return nil
		case e := <-a.queue:
			a.publish(ctx, e)
		}
	}
}

func (a *Async) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-a.queue:
			a.publish(ctx, e)
		default:
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (a *Async) publish(ctx context.Context, e Event) {
	if err := a.pub.Publish(ctx, e); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		metrics.SinkPublishErrors.WithLabelValues(a.pub.Name()).Inc()
		a.log.Warn("publish failed", zap.String("session_id", e.SessionID), zap.Error(err))
	}
}
