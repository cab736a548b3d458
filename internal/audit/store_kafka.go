package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"gatehouse/internal/platform/kafka/producer"
)

// KafkaStore appends audit events to a Kafka topic so downstream consumers
// (SIEM, compliance archive) can subscribe. ListByApplication is not served
// from Kafka; wrap this store together with an in-memory or SQL store when
// read access is needed.
type KafkaStore struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaStore(p *producer.Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.Publish(ctx, producer.Message{
		Topic: s.topic,
		Key:   []byte(event.ApplicationID),
		Value: payload,
		Headers: map[string]string{
			"action": event.Action,
		},
	})
}

func (s *KafkaStore) ListByApplication(_ context.Context, _ string) ([]Event, error) {
	return nil, fmt.Errorf("kafka audit store is write-only: %w", ErrNotFound)
}

// TeeStore fans every event out to multiple stores. The first error wins but
// remaining stores still receive the event.
type TeeStore struct {
	stores []Store
}

func NewTeeStore(stores ...Store) *TeeStore {
	return &TeeStore{stores: stores}
}

func (s *TeeStore) Append(ctx context.Context, event Event) error {
	var firstErr error
	for _, st := range s.stores {
		if err := st.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *TeeStore) ListByApplication(ctx context.Context, applicationID string) ([]Event, error) {
	for _, st := range s.stores {
		events, err := st.ListByApplication(ctx, applicationID)
		if err == nil {
			return events, nil
		}
	}
	return nil, ErrNotFound
}
