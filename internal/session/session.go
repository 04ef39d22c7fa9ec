package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-stream/internal/metrics"
	"github.com/YaganovValera/quote-stream/internal/packet"
	"github.com/YaganovValera/quote-stream/internal/sink"
	"github.com/YaganovValera/quote-stream/pkg/logger"
	"github.com/YaganovValera/quote-stream/pkg/telemetry"
)

// Session is one feed connection: connect, subscribe, then decode every
// inbound message until cancelled or failed. It never reconnects.
type Session struct {
	id     string
	cfg    Config
	sink   sink.LogSink
	dec    *packet.Decoder
	dialer *websocket.Dialer
	log    *logger.Logger
	tracer trace.Tracer
	now    func() time.Time

	mu        sync.RWMutex
	state     State
	err       error
	connected bool

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a Session.
type Option func(*Session)

func WithDecoder(d *packet.Decoder) Option {
	return func(s *Session) {
		if d != nil {
			s.dec = d
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) {
		if d != nil {
			s.dialer = d
		}
	}
}

func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New validates cfg and returns a session in the Disconnected state.
func New(cfg Config, logSink sink.LogSink, opts ...Option) (*Session, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.URL(); err != nil {
		return nil, err
	}
	if logSink == nil {
		logSink = sink.Discard
	}
	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		sink:   logSink,
		dec:    packet.NewDecoder(),
		log:    logger.NewNop(),
		tracer: telemetry.Tracer(),
		now:    time.Now,
		state:  Disconnected,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.dialer == nil {
		s.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		}
	}
	s.log = s.log.Named("session").With(zap.String("session_id", s.id))
	return s, nil
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Config() Config { return s.cfg }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsConnected is true from a successful dial until the loop exits.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Err returns the failure that faulted the session, nil otherwise.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done is closed when a started session has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Cancel asks the session to stop. It is idempotent and may be called
// before Start.
func (s *Session) Cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Start runs the session in its own goroutine.
func (s *Session) Start(ctx context.Context) {
	go func() { _ = s.Run(ctx) }()
}

// Run drives the session until ctx is done, Cancel is called or the
// connection fails. It returns nil on cancellation and the fault otherwise.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(s.done)

	ctx, cancel := context.WithCancel(logger.ContextWithSessionID(ctx, s.id))
	defer cancel()
	select {
	case <-s.stop:
		cancel()
	default:
	}
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	err := s.loop(ctx)
	s.finish(err)
	return err
}

func (s *Session) loop(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	rawURL, err := s.cfg.URL()
	if err != nil {
		return err
	}
	s.transition(Connecting, sink.KindState, "Connecting to "+s.cfg.RedactedURL())

	conn, err := s.dial(ctx, rawURL)
	if err != nil {
		return err
	}
	if conn == nil {
		return nil
	}
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	s.setConnected(true)
	s.transition(Subscribed, sink.KindState, "Connected to feed")

	msg, err := SubscribeMessage(s.cfg.StreamingType, s.cfg.Symbols)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(s.now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrSubscribe, err)
	}
	_ = conn.SetWriteDeadline(time.Time{})
	s.transition(Streaming, sink.KindState, fmt.Sprintf("Subscription message sent (%d symbols)", len(s.cfg.Symbols)))

	return s.receive(ctx, conn)
}

// dial returns (nil, nil) when ctx was cancelled while connecting.
func (s *Session) dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	dialCtx, span := s.tracer.Start(ctx, "session.connect",
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()
	dialCtx, cancel := context.WithTimeout(dialCtx, s.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := s.dialer.DialContext(dialCtx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		cerr := classifyDial(resp, err)
		metrics.Connects.WithLabelValues(cerr.Category()).Inc()
		span.RecordError(cerr)
		span.SetStatus(codes.Error, cerr.Category())
		s.log.Warn("dial failed", zap.Int("status", cerr.Status), zap.Error(err))
		return nil, cerr
	}
	metrics.Connects.WithLabelValues("ok").Inc()
	s.log.Debug("dial ok", zap.String("url", s.cfg.RedactedURL()))
	return conn, nil
}

type frame struct {
	kind int
	data []byte
}

// receive reads in a separate goroutine so the wait can be bounded by the
// receive timeout without a read deadline, which would poison the conn.
func (s *Session) receive(ctx context.Context, conn *websocket.Conn) error {
	frames := make(chan frame)
	readErr := make(chan error, 1)
	go func() {
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- frame{kind: kind, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	timer := time.NewTimer(s.cfg.ReceiveTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-frames:
			timer.Reset(s.cfg.ReceiveTimeout)
			s.handleFrame(ctx, f)
		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrReceive, err)
		case <-timer.C:
			metrics.ReceiveTimeouts.Inc()
			s.emit(sink.KindInfo, fmt.Sprintf("No data received in %s, continuing to wait...", s.cfg.ReceiveTimeout))
			timer.Reset(s.cfg.ReceiveTimeout)
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, f frame) {
	_, span := s.tracer.Start(ctx, "session.decode")
	defer span.End()

	start := time.Now()
	var res packet.Result
	switch f.kind {
	case websocket.BinaryMessage:
		metrics.FramesReceived.WithLabelValues("binary").Inc()
		res = s.dec.DecodeFrame(f.data)
	case websocket.TextMessage:
		metrics.FramesReceived.WithLabelValues("text").Inc()
		res = s.dec.DecodeText(string(f.data))
	default:
		return
	}
	metrics.DecodeLatency.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("frame.bytes", len(f.data)),
		attribute.Int("packet.type", int(res.Type)),
		attribute.Bool("packet.dropped", res.Dropped),
	)

	for _, w := range res.Warnings {
		metrics.DecodeWarnings.Inc()
		s.emit(sink.KindWarning, w)
	}
	if res.Dropped {
		metrics.FramesDropped.WithLabelValues(string(res.Reason)).Inc()
		return
	}
	metrics.RecordsDecoded.WithLabelValues(res.Type.String()).Inc()
	s.sink.Emit(sink.Event{
		Time:       s.now(),
		SessionID:  s.id,
		Kind:       sink.KindRecord,
		State:      s.State().String(),
		PacketType: res.Type,
		Record:     res.Record,
	})
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.log.Warn("session faulted", zap.Error(err))
		s.transition(Faulted, sink.KindError, err.Error())
		return
	}
	s.transition(Closed, sink.KindState, "WebSocket cancelled")
}

func (s *Session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *Session) transition(to State, kind sink.Kind, msg string) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
	s.log.Debug("state", zap.Stringer("state", to))
	s.sink.Emit(sink.Event{
		Time:      s.now(),
		SessionID: s.id,
		Kind:      kind,
		State:     to.String(),
		Message:   msg,
	})
}

func (s *Session) emit(kind sink.Kind, msg string) {
	s.sink.Emit(sink.Event{
		Time:      s.now(),
		SessionID: s.id,
		Kind:      kind,
		State:     s.State().String(),
		Message:   msg,
	})
}
