package sink

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/YaganovValera/quote-stream/pkg/kafka"
)

// KafkaPublisher writes events as protobuf Struct messages keyed by session id,
// so one session's events keep their order within a partition.
type KafkaPublisher struct {
	prod  kafka.Producer
	topic string
}

func NewKafkaPublisher(prod kafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{prod: prod, topic: topic}
}

func (k *KafkaPublisher) Name() string { return "kafka" }

func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := EventStruct(e)
	if err != nil {
		return err
	}
	value, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("kafka sink: marshal: %w", err)
	}
	return k.prod.Publish(ctx, k.topic, []byte(e.SessionID), value)
}

func (k *KafkaPublisher) Close() error { return k.prod.Close() }

// EventStruct converts an event into a structpb.Struct. Record values are
// the display values; numbers are carried as doubles.
func EventStruct(e Event) (*structpb.Struct, error) {
	m := map[string]any{
		"time":       e.Time.UTC().Format(time.RFC3339Nano),
		"session_id": e.SessionID,
		"kind":       string(e.Kind),
	}
	if e.State != "" {
		m["state"] = e.State
	}
	if e.Message != "" {
		m["message"] = e.Message
	}
	if e.Kind == KindRecord && e.Record != nil {
		m["packet_type"] = e.PacketType.String()
		rec := e.Record.Map()
		for name, v := range rec {
			rec[name] = structValue(v)
		}
		m["record"] = rec
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("kafka sink: struct: %w", err)
	}
	return s, nil
}

func structValue(v any) any {
	switch n := v.(type) {
	case uint8:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return v
	}
}
