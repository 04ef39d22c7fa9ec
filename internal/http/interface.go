package http

import (
	"github.com/YaganovValera/quote-stream/internal/session"
	"github.com/YaganovValera/quote-stream/internal/sink"
)

// SessionController is the part of session.Manager the bridge drives.
type SessionController interface {
	Start(req session.StartRequest) (*session.Session, bool, error)
	CancelAll() int
	Status() session.Status
}

// LogHub hands out event subscriptions for /logs clients.
type LogHub interface {
	Join() *sink.Subscriber
	Leave(s *sink.Subscriber)
}

// ReadyChecker returns nil when the service is ready.
type ReadyChecker func() error
