// Package sink carries session events to their consumers: the structured
// logger, attached /logs clients and optional broker publishers.
package sink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/YaganovValera/quote-stream/internal/packet"
)

// Kind classifies an event.
type Kind string

const (
	KindState   Kind = "state"
	KindRecord  Kind = "record"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Event is one observable step of a session. Record is set only for KindRecord.
type Event struct {
	Time       time.Time
	SessionID  string
	Kind       Kind
	State      string
	Message    string
	PacketType packet.PacketType
	Record     *packet.Record
}

// String renders the event the way it is shown to operators.
func (e Event) String() string {
	ts := e.Time.Format("15:04:05")
	if e.Kind == KindRecord && e.Record != nil {
		return fmt.Sprintf("[%s] %s %s", ts, e.PacketType, e.Record)
	}
	return fmt.Sprintf("[%s] %s", ts, e.Message)
}

type eventJSON struct {
	Time       time.Time      `json:"time"`
	SessionID  string         `json:"session_id"`
	Kind       Kind           `json:"kind"`
	State      string         `json:"state,omitempty"`
	Message    string         `json:"message,omitempty"`
	PacketType string         `json:"packet_type,omitempty"`
	Record     *packet.Record `json:"record,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Time:      e.Time,
		SessionID: e.SessionID,
		Kind:      e.Kind,
		State:     e.State,
		Message:   e.Message,
		Record:    e.Record,
	}
	if e.Kind == KindRecord {
		out.PacketType = e.PacketType.String()
	}
	return json.Marshal(out)
}

// LogSink receives session events. Emit must not block the caller for long
// and must be safe for concurrent use.
type LogSink interface {
	Emit(Event)
}

// Func adapts a function to LogSink.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

// Tee fans an event out to every non-nil sink in order.
type Tee []LogSink

func (t Tee) Emit(e Event) {
	for _, s := range t {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Discard drops every event.
var Discard LogSink = Func(func(Event) {})
