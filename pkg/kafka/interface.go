// pkg/kafka/interface.go
//
// Package kafka holds a minimal producer contract and its Sarama implementation.
package kafka

import "context"

// Producer publishes messages to Kafka.
type Producer interface {
	// Publish delivers according to RequiredAcks, retrying with back-off.
	Publish(ctx context.Context, topic string, key, value []byte) error
	// Ping refreshes cluster metadata.
	Ping(ctx context.Context) error
	Close() error
}
