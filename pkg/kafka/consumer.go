package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/vine/config"
	vinectx "github.com/Ramsey-B/vine/pkg/context"
	"github.com/Ramsey-B/vine/pkg/metrics"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

// MessageHandler receives parsed import line messages. The handler owns the message from then
// on and must call its Commit once it is done with it.
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

// Consumer reads import lines from Kafka
type Consumer struct {
	reader  *kafka.Reader
	logger  ectologger.Logger
	handler MessageHandler
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	mu       sync.Mutex
	fetchErr error // last fetch error, cleared by the next successful fetch
	failures int
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg config.Config, logger ectologger.Logger, handler MessageHandler) *Consumer {
	return NewConsumerWithConfig(ConsumerConfig{
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaInputTopic,
		ConsumerGroup: cfg.KafkaConsumerGroup,
		MaxWait:       cfg.KafkaMaxWait,
	}, logger, handler)
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	MaxWait       time.Duration
}

// NewConsumerWithConfig creates a new Kafka consumer with explicit config
func NewConsumerWithConfig(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        cfg.MaxWait,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:  reader,
		logger:  logger,
		handler: handler,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": c.reader.Config().Topic,
	}).Info("Kafka consumer started")
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 100 * time.Millisecond
	retry.MaxInterval = 10 * time.Second

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.WithContext(ctx).Info("Consumer loop stopping")
				return
			}
			failures := c.recordFetch(err)
			wait := retry.NextBackOff()
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"failures": failures,
				"retry_in": wait.String(),
			}).Error("Failed to fetch message")

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		c.recordFetch(nil)
		retry.Reset()

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) recordFetch(err error) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchErr = err
	if err == nil {
		c.failures = 0
	} else {
		c.failures++
	}
	return c.failures
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	incoming := newIncomingMessage(msg, c.reader)
	ctx = tracing.ExtractHeaders(ctx, incoming.Headers)
	ctx = vinectx.SetRequestID(ctx, incoming.RequestID())

	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(vinectx.LogFields(ctx)).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	if err := incoming.ParseImportLine(); err != nil {
		metrics.ConsumerMessagesTotal.WithLabelValues("malformed").Inc()
		log.WithError(err).Error("Dropping malformed import line")
		// a malformed line never parses on redelivery either
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.WithError(err).Error("Failed to commit message")
		}
		return
	}

	if err := c.handler(ctx, incoming); err != nil {
		metrics.ConsumerMessagesTotal.WithLabelValues("rejected").Inc()
		// not committed; redelivered after a restart or rebalance
		log.WithError(err).WithField("import_line_id", incoming.Line.ID).Error("Failed to hand off import line (not committing)")
		return
	}
	metrics.ConsumerMessagesTotal.WithLabelValues("accepted").Inc()
}

// Check fails while the broker cannot be read from
func (c *Consumer) Check(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchErr != nil {
		return fmt.Errorf("%d consecutive fetch failures: %w", c.failures, c.fetchErr)
	}
	return nil
}
