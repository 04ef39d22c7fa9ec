package http

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YaganovValera/quote-stream/internal/metrics"
	"github.com/YaganovValera/quote-stream/pkg/logger"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Compose applies mws so that the first one is outermost.
func Compose(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// RecoverMiddleware turns a handler panic into a 500.
func RecoverMiddleware(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rcv := recover(); rcv != nil {
					log.WithContext(r.Context()).Error("http: panic",
						zap.Any("panic", rcv),
						zap.ByteString("stack", debug.Stack()),
					)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent,
// and exposes it to loggers as the trace id.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithTraceID(r.Context(), id)))
	})
}

// MetricsMiddleware counts requests by route. The websocket route is
// counted once at upgrade.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(path, r.Method, strconv.Itoa(rw.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack is needed by the /logs upgrade.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("http: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// originSet is the normalised origin allow list shared by CORS and the
// /logs upgrader. "*" allows any origin.
type originSet struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginSet(origins []string) *originSet {
	o := &originSet{allowed: make(map[string]struct{}, len(origins))}
	for _, v := range origins {
		v = strings.TrimRight(strings.TrimSpace(v), "/")
		if v == "*" {
			o.any = true
			continue
		}
		if v != "" {
			o.allowed[strings.ToLower(v)] = struct{}{}
		}
	}
	return o
}

// list returns the normalised origins, or just "*" when any is allowed.
func (o *originSet) list() []string {
	if o.any {
		return []string{"*"}
	}
	out := make([]string, 0, len(o.allowed))
	for v := range o.allowed {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (o *originSet) allows(origin string) bool {
	if o.any {
		return true
	}
	_, ok := o.allowed[strings.ToLower(origin)]
	return ok
}

// allowsRequest accepts requests without an Origin header (non-browser
// clients) and same-host origins.
func (o *originSet) allowsRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if o.allows(origin) {
		return true
	}
	host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	return strings.EqualFold(host, r.Host)
}

// CORSMiddleware applies the allow list through go-chi/cors. Preflight
// requests always end with 204; credentials are never allowed.
func CORSMiddleware(origins *originSet) Middleware {
	opts := cors.Options{
		AllowedOrigins:     origins.list(),
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type", "X-Request-ID"},
		AllowCredentials:   false,
		MaxAge:             600,
		OptionsPassthrough: true,
	}
	if len(opts.AllowedOrigins) == 0 {
		// an empty list means "allow all" to go-chi/cors
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	c := cors.New(opts)
	return func(next http.Handler) http.Handler {
		return c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
