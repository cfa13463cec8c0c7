package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

var consumedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rentspot",
	Subsystem: "kafka",
	Name:      "consumed_messages_total",
	Help:      "Consumed messages by topic and outcome: handled, retried or skipped.",
}, []string{"topic", "outcome"})

var defaultHandleBackoff = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second}

// Consumer feeds a consumer group into a MessageHandler. A message whose
// handler keeps failing after every backoff step is logged and skipped so one
// bad record cannot stall its partition.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
	backoff []time.Duration
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{group: group, handler: handler, logger: logger, backoff: defaultHandleBackoff}, nil
}

// Run consumes until ctx is done or the group is closed. Consume returns on
// every rebalance, so it is called in a loop.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	gh := groupHandler{handler: c.handler, logger: c.logger, backoff: c.backoff}
	for {
		err := c.group.Consume(ctx, topics, gh)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		case err != nil:
			return err
		}
	}
}

func (c *Consumer) Close() error { return c.group.Close() }

type groupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
	backoff []time.Duration
}

func (groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !h.handle(ctx, msg) {
				// session ended mid-retry; leave the offset for the next owner
				return nil
			}
			sess.MarkMessage(msg, "")
		}
	}
}

// handle reports false only when ctx ended before the message was settled.
func (h groupHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	for attempt := 0; ; attempt++ {
		err := h.handler.Handle(ctx, msg)
		if err == nil {
			consumedMessages.WithLabelValues(msg.Topic, "handled").Inc()
			return true
		}
		attrs := []any{
			slog.String("topic", msg.Topic),
			slog.Int("partition", int(msg.Partition)),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt+1),
			slog.Any("err", err),
		}
		if attempt >= len(h.backoff) {
			consumedMessages.WithLabelValues(msg.Topic, "skipped").Inc()
			h.logger.Error("kafka message skipped", attrs...)
			return true
		}
		consumedMessages.WithLabelValues(msg.Topic, "retried").Inc()
		h.logger.Warn("kafka message handling failed", attrs...)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(h.backoff[attempt]):
		}
	}
}
