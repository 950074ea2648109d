// Package kafka owns the franz-go client used by the audit outbox relay.
// Kafka is the downstream source of truth for audit events; the relay
// publishes outbox rows here and consumers materialize them for querying.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TopicAudit carries every certificate and account audit event.
const TopicAudit = "civreg.audit.v1"

// Client wraps a kgo.Client with the small surface the relay needs.
type Client struct {
	kgo *kgo.Client
}

// New connects to the given brokers and ensures the audit topic exists.
// Returns nil if brokers is empty (Kafka not configured); the relay then
// falls back to a log-only publisher.
func New(ctx context.Context, brokers []string) (*Client, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, TopicAudit); err != nil {
		client.Close()
		return nil, err
	}

	return &Client{kgo: client}, nil
}

// Publish produces one record and blocks until the broker acknowledges it.
// The relay relies on the synchronous ack to mark outbox rows delivered.
func (c *Client) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := c.kgo.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (c *Client) Close() {
	c.kgo.Close()
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	topics, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if topics.Has(topic) {
		return nil
	}
	// Single partition keeps per-certificate audit ordering trivial; bump
	// partitions only together with key-based ordering guarantees downstream.
	if _, err := adm.CreateTopic(ctx, 1, -1, nil, topic); err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}
