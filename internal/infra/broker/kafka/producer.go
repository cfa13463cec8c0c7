// Package kafka carries outbox records to Kafka and relays chat events
// between instances.
package kafka

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var publishedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rentspot",
	Subsystem: "kafka",
	Name:      "published_messages_total",
	Help:      "Messages handed to the sync producer by topic and outcome.",
}, []string{"topic", "outcome"})

type Producer struct {
	sync sarama.SyncProducer
}

// NewProducer opens an idempotent sync producer that waits for all in-sync
// replicas.
func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1
	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewProducerWith(sp), nil
}

// NewProducerWith wraps an existing sync producer.
func NewProducerWith(sp sarama.SyncProducer) *Producer {
	return &Producer{sync: sp}
}

// Publish sends one record keyed by key, so all events of an aggregate land
// on the same partition. Headers are written in key order.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: recordHeaders(headers),
	}
	if _, _, err := p.sync.SendMessage(msg); err != nil {
		publishedMessages.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	publishedMessages.WithLabelValues(topic, "ok").Inc()
	return nil
}

func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	out := make([]sarama.RecordHeader, 0, len(headers))
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])})
	}
	return out
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
