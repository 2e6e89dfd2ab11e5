// Package publisher ships audit events to Kafka for deployments that feed a
// central compliance pipeline. The JSONL file store remains the local source
// of record; Kafka is a fan-out.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "storegate/pkg/platform/audit"
)

type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects a producer for the given brokers and topic.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

func (k *Kafka) Publish(ctx context.Context, event audit.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.Action),
		Value: raw,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (k *Kafka) Close() {
	k.client.Close()
}
