package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/manifold-labs/memoryd/internal/memory"
	"github.com/manifold-labs/memoryd/internal/observability"
)

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaProducer builds a producer writing envelopes to topic across
// the given comma-separated brokers, balancing across partitions by
// least-bytes the way the teacher's tool-shim producer does.
func NewKafkaProducer(brokers, topic string) (Producer, error) {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		return nil, fmt.Errorf("queue: kafka brokers cannot be empty")
	}
	brokerList := strings.Split(brokers, ",")
	for i, b := range brokerList {
		brokerList[i] = strings.TrimSpace(b)
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokerList...),
		Balancer: &kafka.LeastBytes{},
	}
	return &kafkaProducer{writer: w, topic: topic}, nil
}

func (p *kafkaProducer) Publish(ctx context.Context, env memory.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Topic: p.topic, Value: payload})
}

func (p *kafkaProducer) Close() error { return p.writer.Close() }

type kafkaConsumer struct {
	reader      *kafka.Reader
	dlq         *kafka.Writer
	dlqTopic    string
	workerCount int
}

// NewKafkaConsumer builds a worker-pool consumer over topic/groupID,
// publishing to dlqTopic after retries are exhausted.
func NewKafkaConsumer(brokers []string, groupID, topic, dlqTopic string, workerCount int) Consumer {
	if workerCount <= 0 {
		workerCount = 4
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	dlq := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &kafkaConsumer{reader: reader, dlq: dlq, dlqTopic: dlqTopic, workerCount: workerCount}
}

// Run fans incoming messages out across a worker pool. Each message is
// retried up to R=3 attempts with exponential backoff 2^i*100ms before
// the envelope is published to the DLQ topic and committed regardless of
// outcome, leaving eventual give-up to the queue's DLQ tooling.
func (c *kafkaConsumer) Run(ctx context.Context, handle func(context.Context, memory.Envelope) error) error {
	log := observability.LoggerForComponent(ctx, "ingest_consumer")
	jobs := make(chan kafka.Message, c.workerCount*4)

	var wg sync.WaitGroup
	wg.Add(c.workerCount)
	for i := 0; i < c.workerCount; i++ {
		go func(workerID int) {
			defer wg.Done()
			for msg := range jobs {
				c.process(ctx, &log, msg, handle)
				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					log.Error().Err(err).Int("worker", workerID).Msg("commit_failed")
				}
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for {
			if ctx.Err() != nil {
				return
			}
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				log.Error().Err(err).Msg("fetch_error")
				continue
			}
			select {
			case jobs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	return ctx.Err()
}

const maxAttempts = 3

func (c *kafkaConsumer) process(ctx context.Context, log *zerolog.Logger, msg kafka.Message, handle func(context.Context, memory.Envelope) error) {
	var env memory.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		log.Error().Err(err).RawJSON("envelope", observability.RedactJSON(msg.Value)).Msg("decode_envelope_failed")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = handle(ctx, env)
		if lastErr == nil {
			return
		}
		if attempt < maxAttempts && ctx.Err() == nil {
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			log.Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", backoff).Msg("ingest_retry")
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}

	c.publishDLQ(ctx, log, msg, maxAttempts, lastErr)
}

func (c *kafkaConsumer) publishDLQ(ctx context.Context, log *zerolog.Logger, msg kafka.Message, attempts int, lastErr error) {
	// The DLQ record itself carries the full envelope so a human or a
	// replay tool can reprocess it; only the log line is redacted/summarized.
	payload, _ := json.Marshal(map[string]any{
		"attempts": attempts,
		"error":    lastErr.Error(),
		"envelope": json.RawMessage(msg.Value),
	})
	log.Warn().RawJSON("envelope", observability.RedactJSON(msg.Value)).Int("attempts", attempts).Msg("ingest_dead_lettered")
	if err := c.dlq.WriteMessages(ctx, kafka.Message{Topic: c.dlqTopic, Value: payload}); err != nil {
		log.Error().Err(err).Msg("dlq_publish_failed")
	}
}

func (c *kafkaConsumer) Close() error {
	_ = c.reader.Close()
	return c.dlq.Close()
}
