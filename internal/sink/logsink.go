package sink

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/YaganovValera/quote-stream/pkg/logger"
)

type loggerSink struct {
	log *logger.Logger
}

// NewLoggerSink mirrors events to the structured logger. Records are
// logged at debug level, everything else at the level its kind implies.
func NewLoggerSink(log *logger.Logger) LogSink {
	return &loggerSink{log: log.Named("events")}
}

func (s *loggerSink) Emit(e Event) {
	fields := []zap.Field{zap.String("session_id", e.SessionID)}
	if e.State != "" {
		fields = append(fields, zap.String("state", e.State))
	}
	switch e.Kind {
	case KindRecord:
		fields = append(fields,
			zap.Stringer("packet_type", e.PacketType),
			zap.Stringer("record", e.Record),
		)
		s.log.Debug("record", fields...)
	case KindWarning:
		s.log.Warn(e.Message, fields...)
	case KindError:
		s.log.Error(e.Message, fields...)
	default:
		s.log.Info(e.Message, fields...)
	}
}

type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink prints one line per event to w.
func NewWriterSink(w io.Writer) LogSink {
	return &writerSink{w: w}
}

func (s *writerSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, e.String())
}
