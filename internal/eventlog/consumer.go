package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/retry"
)

// Handler processes a single message off a claimed partition. When it
// returns an error, the consumer group calls it again up to the configured
// retry budget and then publishes the message to the dead-letter topic; the
// message is marked as consumed either way.
type Handler func(ctx context.Context, key, value []byte) error

// ConsumerGroup wraps a sarama consumer group with retry-then-dead-letter
// semantics, modeled directly on the teacher's
// cmd/kafka-worker/main.go AnalyticsPipelineHandler (Setup/Cleanup/
// ConsumeClaim) and internal/queue/redis_stream.go's retry/dead-letter
// pattern, generalized from a single analytics tap to any topic set.
type ConsumerGroup struct {
	group            sarama.ConsumerGroup
	topics           []string
	handler          Handler
	retryAttempts    int
	operationTimeout time.Duration
	producer         *Producer
	dlqFmt           string
}

// NewConsumerGroup builds a consumer group reading topics as groupID,
// dispatching each message to handler. operationTimeout is the fixed
// per-attempt deadline spec.md §5 assigns the event log (default 2s);
// falls back to 2s if zero so older callers don't regress to no deadline.
func NewConsumerGroup(brokers []string, groupID string, topics []string, handler Handler, retryAttempts int, producer *Producer, dlqFmt string, operationTimeout time.Duration) (*ConsumerGroup, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true
	sc.Version = sarama.V3_0_0_0

	group, err := sarama.NewConsumerGroup(brokers, groupID, sc)
	if err != nil {
		return nil, fmt.Errorf("eventlog: new consumer group: %w", err)
	}

	if operationTimeout <= 0 {
		operationTimeout = 2 * time.Second
	}
	if retryAttempts <= 0 {
		retryAttempts = retry.DefaultAttempts
	}

	return &ConsumerGroup{
		group:            group,
		topics:           topics,
		handler:          handler,
		retryAttempts:    retryAttempts,
		operationTimeout: operationTimeout,
		producer:         producer,
		dlqFmt:           dlqFmt,
	}, nil
}

// Run consumes until ctx is cancelled. It reconnects the claim loop on
// rebalance, matching sarama's documented consume-in-a-loop idiom.
func (c *ConsumerGroup) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		for {
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				errCh <- fmt.Errorf("eventlog: consume: %w", err)
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return c.group.Close()
	}
}

// Errors exposes the underlying group's async error channel for logging.
func (c *ConsumerGroup) Errors() <-chan error {
	return c.group.Errors()
}

func (c *ConsumerGroup) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *ConsumerGroup) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler. Each message is
// retried up to retryAttempts times before being routed to the topic's
// dead letter topic, so a poison message never blocks the partition
// (spec.md §5's no-unbounded-in-process-queue backpressure rule).
func (c *ConsumerGroup) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processWithRetry(sess.Context(), msg)
		sess.MarkMessage(msg, "")
	}
	return nil
}

// processWithRetry runs handler against msg under the event log's fixed
// per-attempt deadline, retrying with exponential backoff and jitter up to
// retryAttempts times (spec.md §5) before falling back to the dead letter
// topic.
func (c *ConsumerGroup) processWithRetry(ctx context.Context, msg *sarama.ConsumerMessage) {
	attempt := 0
	lastErr := retry.Do(ctx, c.retryAttempts, c.operationTimeout, func(attemptCtx context.Context) error {
		err := c.handler(attemptCtx, msg.Key, msg.Value)
		if err != nil {
			log.Warn().Err(err).
				Str("topic", msg.Topic).
				Int("attempt", attempt).
				Msg("eventlog: handler failed, retrying")
		}
		attempt++
		return err
	})
	if lastErr == nil {
		return
	}

	log.Error().Err(lastErr).
		Str("topic", msg.Topic).
		Msg("eventlog: retry budget exhausted, routing to dead letter topic")

	if c.producer != nil {
		dlqTopic := fmt.Sprintf(c.dlqFmt, msg.Topic)
		if err := c.producer.PublishDeadLetter(dlqTopic, string(msg.Key), msg.Value); err != nil {
			log.Error().Err(err).Msg("eventlog: dead letter publish also failed")
		}
	}
}

// Close shuts down the underlying consumer group connection.
func (c *ConsumerGroup) Close() error {
	return c.group.Close()
}
