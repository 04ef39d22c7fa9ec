package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/YaganovValera/quote-stream/internal/session"
)

const maxBodyBytes = 64 << 10

// startRequest is the /start-socket body. Field names follow the web
// client that calls the bridge.
type startRequest struct {
	BaseURL     string   `json:"baseUrl"`
	APIKey      string   `json:"apiKey"`
	AccessToken string   `json:"accessToken"`
	Symbols     []string `json:"symbols,omitempty"`
}

type startResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type stopResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Cancelled int    `json:"cancelled"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, startResponse{Message: "invalid request body: " + err.Error()})
		return
	}
	if missing := req.missing(); len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, startResponse{Message: "missing fields: " + strings.Join(missing, ", ")})
		return
	}

	sess, started, err := s.sessions.Start(session.StartRequest{
		BaseURL: req.BaseURL,
		Token:   req.AccessToken,
		APIKey:  req.APIKey,
		Symbols: req.Symbols,
	})
	if err != nil {
		s.log.WithContext(r.Context()).Warn("start-socket rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, startResponse{Message: err.Error()})
		return
	}

	msg := "Socket started"
	if !started {
		msg = "Socket already running"
	}
	writeJSON(w, http.StatusOK, startResponse{Success: true, Message: msg, SessionID: sess.ID()})
}

func (r startRequest) missing() []string {
	var out []string
	if strings.TrimSpace(r.BaseURL) == "" {
		out = append(out, "baseUrl")
	}
	if r.APIKey == "" {
		out = append(out, "apiKey")
	}
	if r.AccessToken == "" {
		out = append(out, "accessToken")
	}
	return out
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	n := s.sessions.CancelAll()
	msg := "Socket stopped"
	if n == 0 {
		msg = "No socket running"
	}
	writeJSON(w, http.StatusOK, stopResponse{Success: true, Message: msg, Cancelled: n})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
