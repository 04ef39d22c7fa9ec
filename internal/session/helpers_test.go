package session

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/quote-stream/internal/sink"
)

// recorder collects events and lets tests wait for a predicate.
type recorder struct {
	mu     sync.Mutex
	events []sink.Event
	notify chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 1)}
}

func (r *recorder) Emit(e sink.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) all() []sink.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sink.Event(nil), r.events...)
}

func (r *recorder) states() []string {
	var out []string
	for _, e := range r.all() {
		if e.Kind == sink.KindState || e.Kind == sink.KindError {
			out = append(out, e.State)
		}
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, match func(sink.Event) bool) sink.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		for _, e := range r.all() {
			if match(e) {
				return e
			}
		}
		select {
		case <-r.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("event not observed; got %v", r.all())
		}
	}
}

func kindIs(k sink.Kind) func(sink.Event) bool {
	return func(e sink.Event) bool { return e.Kind == k }
}

func stateIs(s State) func(sink.Event) bool {
	return func(e sink.Event) bool {
		return (e.Kind == sink.KindState || e.Kind == sink.KindError) && e.State == s.String()
	}
}

// feedServer upgrades every request and hands the conn to handle along
// with the query of the upgrade request.
func feedServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
	t.Cleanup(srv.Close)
	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

// statusServer rejects the upgrade with code.
func statusServer(t *testing.T, code int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(code), code)
	}))
	t.Cleanup(srv.Close)
	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "ws://" + addr
}

func testConfig(base string) Config {
	return Config{
		BaseURL:        base,
		Token:          "tok",
		APIKey:         "key",
		Symbols:        []string{"2885_NSE"},
		ReceiveTimeout: 2 * time.Second,
		DialTimeout:    2 * time.Second,
	}
}

// readUntilClosed blocks the server handler until the client goes away.
func readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
