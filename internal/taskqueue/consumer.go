// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package taskqueue

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/logctx"
)

// MessageHandler processes consumed messages
type MessageHandler func(ctx context.Context, messages []ConsumedMessage) error

// Consumer provides high-level Kafka consumer functionality
type Consumer interface {
	// Consume from topic with consumer group
	Consume(ctx context.Context, handler MessageHandler) error

	// CommitMessages after successful processing
	CommitMessages(ctx context.Context, messages ...ConsumedMessage) error

	// Close the consumer
	Close() error
}

// ConsumerConfig contains configuration for the Kafka consumer
type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	MinBytes    int
	MaxBytes    int
	MaxWait     time.Duration
	BatchSize   int
	StartOffset int64
	AutoCommit  bool
	CommitBatch bool

	// SASL authentication
	SASLMechanism sasl.Mechanism

	// TLS configuration
	TLSConfig *tls.Config

	// Connection settings
	ConnectionTimeout time.Duration
}

// kafkaConsumer implements the Consumer interface using segmentio/kafka-go
type kafkaConsumer struct {
	config ConsumerConfig
	reader *kafka.Reader
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig) Consumer {
	timeout := config.ConnectionTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	dialer := &kafka.Dialer{
		Timeout:       timeout,
		SASLMechanism: config.SASLMechanism,
		TLS:           config.TLSConfig,
	}

	readerConfig := kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.GroupID,
		MinBytes:       config.MinBytes,
		MaxBytes:       config.MaxBytes,
		MaxWait:        config.MaxWait,
		StartOffset:    config.StartOffset,
		Dialer:         dialer,
		CommitInterval: 0, // Synchronous commits only when explicitly called
	}

	return &kafkaConsumer{
		config: config,
		reader: kafka.NewReader(readerConfig),
	}
}

func (c *kafkaConsumer) Consume(ctx context.Context, handler MessageHandler) error {
	logctx.FromContext(ctx).Debug("Starting Kafka consumption loop",
		slog.String("topic", c.config.Topic),
		slog.String("consumerGroup", c.config.GroupID),
		slog.Int("batchSize", c.config.BatchSize),
		slog.Duration("maxWait", c.config.MaxWait))

	batch := make([]ConsumedMessage, 0, c.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			// Process remaining messages before exiting
			if len(batch) > 0 {
				if err := c.processBatch(ctx, handler, batch); err != nil {
					return fmt.Errorf("failed to process final batch: %w", err)
				}
			}
			return ctx.Err()
		default:
		}

		// Read message with timeout so partial batches still get flushed
		readCtx, cancel := context.WithTimeout(ctx, c.config.MaxWait)
		msg, err := c.reader.FetchMessage(readCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// Timeout reached, process batch if we have messages
				if len(batch) > 0 {
					if err := c.processBatch(ctx, handler, batch); err != nil {
						return fmt.Errorf("failed to process batch: %w", err)
					}
					batch = batch[:0]
				}
				continue
			}
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				continue // Top of loop drains the batch and returns ctx.Err()
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		batch = append(batch, FromKafkaMessage(msg))

		// Process batch when full
		if len(batch) >= c.config.BatchSize {
			if err := c.processBatch(ctx, handler, batch); err != nil {
				return fmt.Errorf("failed to process batch: %w", err)
			}
			batch = batch[:0]
		}
	}
}

func (c *kafkaConsumer) processBatch(ctx context.Context, handler MessageHandler, messages []ConsumedMessage) error {
	if err := handler(ctx, messages); err != nil {
		return fmt.Errorf("handler failed: %w", err)
	}

	if c.config.AutoCommit {
		if err := c.CommitMessages(ctx, messages...); err != nil {
			return fmt.Errorf("failed to commit messages: %w", err)
		}
	}
	return nil
}

func (c *kafkaConsumer) CommitMessages(ctx context.Context, messages ...ConsumedMessage) error {
	if len(messages) == 0 {
		return nil
	}

	if c.config.CommitBatch {
		// Commit only the highest offset per partition
		partitionOffsets := make(map[int]ConsumedMessage)
		for _, msg := range messages {
			existing, ok := partitionOffsets[msg.Partition]
			if !ok || msg.Offset > existing.Offset {
				partitionOffsets[msg.Partition] = msg
			}
		}

		kmsgs := make([]kafka.Message, 0, len(partitionOffsets))
		for _, msg := range partitionOffsets {
			kmsgs = append(kmsgs, kafka.Message{
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
			})
		}

		return c.reader.CommitMessages(ctx, kmsgs...)
	}

	kmsgs := make([]kafka.Message, len(messages))
	for i, msg := range messages {
		kmsgs[i] = kafka.Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
		}
	}
	return c.reader.CommitMessages(ctx, kmsgs...)
}

func (c *kafkaConsumer) Close() error {
	return c.reader.Close()
}
