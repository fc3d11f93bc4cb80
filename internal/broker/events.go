package appkafka

import (
	"encoding/json"
	"fmt"

	"example.com/microblog/internal/models"
	"github.com/segmentio/kafka-go"
)

// EncodeEvent wraps a domain event into a Kafka message keyed by event type,
// so consumers can route without decoding the value.
func EncodeEvent(ev models.Event) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.Type),
		Value: data,
	}, nil
}

// DecodeEvent unwraps a Kafka message back into a domain event.
func DecodeEvent(msg kafka.Message) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return models.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// PublishEvent encodes and writes a single domain event.
func PublishEvent(w KafkaWriter, ev models.Event) error {
	msg, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return w.WriteMessages(msg)
}
