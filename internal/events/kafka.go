package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink produces events to a single Kafka topic keyed by user id,
// so one user's events stay ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects a producer client to brokers.
func NewKafkaSink(brokers []string, clientID, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (s *KafkaSink) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(s.client)

	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, s.topic)
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", s.topic, err)
	}
	for _, detail := range resp {
		if detail.Err != nil && !strings.Contains(detail.Err.Error(), "already exists") {
			return fmt.Errorf("failed to create topic %s: %w", detail.Topic, detail.Err)
		}
	}
	return nil
}

// Send produces the event and waits for the broker acknowledgement.
func (s *KafkaSink) Send(ctx context.Context, event Event) error {
	record, err := newRecord(s.topic, event)
	if err != nil {
		return err
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the client.
func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}

func newRecord(topic string, event Event) (*kgo.Record, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(event.UserID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}
