package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

var (
	ErrUnauthorized   = errors.New("unauthorized (401): access token expired or invalid credentials")
	ErrForbidden      = errors.New("forbidden (403): server rejected the connection")
	ErrNotFound       = errors.New("not found (404): check the base url")
	ErrHandshake      = errors.New("websocket handshake rejected")
	ErrNetwork        = errors.New("network failure")
	ErrSubscribe      = errors.New("subscription write failed")
	ErrReceive        = errors.New("receive failed")
	ErrAlreadyStarted = errors.New("session already started")
)

// ConnectError is a categorised connection rejection. Kind is one of the
// sentinels above; Status is the HTTP status when the server answered.
type ConnectError struct {
	Status int
	Kind   error
	Cause  error
}

func (e *ConnectError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to connect: HTTP %d: %v", e.Status, e.Kind)
	}
	return fmt.Sprintf("failed to connect: %v: %v", e.Kind, e.Cause)
}

func (e *ConnectError) Unwrap() []error { return []error{e.Kind, e.Cause} }

// Category is a short label for metrics.
func (e *ConnectError) Category() string {
	switch {
	case errors.Is(e.Kind, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(e.Kind, ErrForbidden):
		return "forbidden"
	case errors.Is(e.Kind, ErrNotFound):
		return "not_found"
	case errors.Is(e.Kind, ErrHandshake):
		return "http"
	default:
		return "network"
	}
}

// classifyDial maps a failed dial to a ConnectError. resp is set by the
// dialer when the server answered the upgrade with a non-101 status.
func classifyDial(resp *http.Response, err error) *ConnectError {
	if resp == nil {
		return &ConnectError{Kind: ErrNetwork, Cause: err}
	}
	ce := &ConnectError{Status: resp.StatusCode, Cause: err}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		ce.Kind = ErrUnauthorized
	case http.StatusForbidden:
		ce.Kind = ErrForbidden
	case http.StatusNotFound:
		ce.Kind = ErrNotFound
	default:
		ce.Kind = ErrHandshake
	}
	if ce.Cause == nil {
		ce.Cause = websocket.ErrBadHandshake
	}
	return ce
}
