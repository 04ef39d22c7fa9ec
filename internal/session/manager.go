package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/quote-stream/internal/sink"
	"github.com/YaganovValera/quote-stream/pkg/logger"
)

// Policy decides what Start does while another session is running.
type Policy string

const (
	// PolicySingle keeps at most one live session; Start returns it.
	PolicySingle Policy = "single"
	// PolicyMulti starts a new session on every call.
	PolicyMulti Policy = "multi"
)

// ParsePolicy accepts "single" (default for "") and "multi".
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySingle:
		return PolicySingle, nil
	case PolicyMulti:
		return PolicyMulti, nil
	default:
		return "", fmt.Errorf("session: unknown policy %q", s)
	}
}

// StartRequest overrides the manager defaults for one session. Empty
// fields keep the default.
type StartRequest struct {
	BaseURL string
	Token   string
	APIKey  string
	Symbols []string
}

// SessionStatus is a point-in-time view of one session.
type SessionStatus struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// Status is the manager view served to collaborators.
type Status struct {
	Connected bool            `json:"connected"`
	Sessions  []SessionStatus `json:"sessions"`
}

// Manager owns live sessions and exposes start/cancel/status to callers.
type Manager struct {
	ctx      context.Context
	defaults Config
	policy   Policy
	sink     sink.LogSink
	opts     []Option
	log      *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	started  map[string]time.Time
	wg       sync.WaitGroup
}

// NewManager returns a manager whose sessions run under ctx.
func NewManager(ctx context.Context, defaults Config, policy Policy, logSink sink.LogSink, log *logger.Logger, opts ...Option) *Manager {
	if policy == "" {
		policy = PolicySingle
	}
	return &Manager{
		ctx:      ctx,
		defaults: defaults,
		policy:   policy,
		sink:     logSink,
		opts:     opts,
		log:      log.Named("manager"),
		sessions: make(map[string]*Session),
		started:  make(map[string]time.Time),
	}
}

// Start launches a session. The bool is false when, under PolicySingle,
// an already running session is returned instead.
func (m *Manager) Start(req StartRequest) (*Session, bool, error) {
	cfg := m.defaults
	if req.BaseURL != "" {
		cfg.BaseURL = req.BaseURL
	}
	if req.Token != "" {
		cfg.Token = req.Token
	}
	if req.APIKey != "" {
		cfg.APIKey = req.APIKey
	}
	if len(req.Symbols) > 0 {
		cfg.Symbols = req.Symbols
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("session: manager stopped: %w", err)
	}
	if m.policy == PolicySingle {
		if s := m.liveLocked(); s != nil {
			return s, false, nil
		}
	}

	s, err := New(cfg, m.sink, m.opts...)
	if err != nil {
		return nil, false, err
	}
	m.sessions[s.ID()] = s
	m.started[s.ID()] = time.Now()
	m.wg.Add(1)
	s.Start(m.ctx)
	go m.reap(s)

	m.log.Info("session started",
		zap.String("session_id", s.ID()),
		zap.String("url", cfg.RedactedURL()),
		zap.Strings("symbols", cfg.Symbols),
	)
	return s, true, nil
}

func (m *Manager) reap(s *Session) {
	defer m.wg.Done()
	<-s.Done()
	m.mu.Lock()
	delete(m.sessions, s.ID())
	delete(m.started, s.ID())
	m.mu.Unlock()
	m.log.Info("session ended", zap.String("session_id", s.ID()), zap.Stringer("state", s.State()))
}

func (m *Manager) liveLocked() *Session {
	for _, s := range m.sessions {
		if !s.State().Terminal() {
			return s
		}
	}
	return nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Cancel stops one session. It reports whether the id was known.
func (m *Manager) Cancel(id string) bool {
	s, ok := m.Get(id)
	if ok {
		s.Cancel()
	}
	return ok
}

// CancelAll stops every session and returns how many were signalled.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Cancel()
	}
	return len(m.sessions)
}

// IsConnected reports whether the given session, or any session when id
// is empty, currently holds an open feed connection.
func (m *Manager) IsConnected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		s, ok := m.sessions[id]
		return ok && s.IsConnected()
	}
	for _, s := range m.sessions {
		if s.IsConnected() {
			return true
		}
	}
	return false
}

// Status lists live sessions oldest first.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Status{Sessions: make([]SessionStatus, 0, len(m.sessions))}
	for id, s := range m.sessions {
		st := SessionStatus{ID: id, State: s.State().String(), Connected: s.IsConnected()}
		if err := s.Err(); err != nil {
			st.Error = err.Error()
		}
		out.Connected = out.Connected || st.Connected
		out.Sessions = append(out.Sessions, st)
	}
	sort.Slice(out.Sessions, func(i, j int) bool {
		return m.started[out.Sessions[i].ID].Before(m.started[out.Sessions[j].ID])
	})
	return out
}

// Shutdown cancels all sessions and waits for them to exit or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.CancelAll()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
