package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	rev "chronicle/pkg/revision"
)

// KafkaSink produces revision payloads to a Kafka topic, keyed by resource
// so revisions for one resource stay ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	snap   Snapshotter
}

// NewKafkaSink connects to the brokers and publishes to topic.
func NewKafkaSink(brokers []string, topic string, snap Snapshotter) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, snap: snap}, nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (s *KafkaSink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", s.topic, resp.Err)
	}
	return nil
}

// Deliver implements Sink.
func (s *KafkaSink) Deliver(ctx context.Context, r rev.Revision) error {
	payload, err := Encode(r, s.snap)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(r.Resource),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce revision to %s: %w", s.topic, err)
	}
	return nil
}

// Close releases the Kafka client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
