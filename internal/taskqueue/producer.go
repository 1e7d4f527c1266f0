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
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
)

// Producer provides high-level Kafka producer functionality
type Producer interface {
	// Send with automatic partitioning
	Send(ctx context.Context, topic string, message Message) error

	// BatchSend for efficient bulk operations
	BatchSend(ctx context.Context, topic string, messages []Message) error

	// Close the producer
	Close() error
}

// ProducerConfig contains configuration for the Kafka producer
type ProducerConfig struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks kafka.RequiredAcks
	Compression  kafka.Compression

	// SASL authentication
	SASLMechanism sasl.Mechanism

	// TLS configuration
	TLSConfig *tls.Config

	// Connection settings
	ConnectionTimeout time.Duration
}

// kafkaProducer implements the Producer interface using segmentio/kafka-go
type kafkaProducer struct {
	config    ProducerConfig
	writers   map[string]*kafka.Writer
	writersMu sync.RWMutex
}

// NewProducer creates a new Kafka producer
func NewProducer(config ProducerConfig) Producer {
	return &kafkaProducer{
		config:  config,
		writers: make(map[string]*kafka.Writer),
	}
}

func (p *kafkaProducer) getWriter(topic string) *kafka.Writer {
	p.writersMu.RLock()
	w, ok := p.writers[topic]
	p.writersMu.RUnlock()
	if ok {
		return w
	}

	p.writersMu.Lock()
	defer p.writersMu.Unlock()

	// Double-check after acquiring write lock
	if w, ok := p.writers[topic]; ok {
		return w
	}

	transport := &kafka.Transport{
		DialTimeout: p.config.ConnectionTimeout,
		SASL:        p.config.SASLMechanism,
		TLS:         p.config.TLSConfig,
	}

	w = &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    p.config.BatchSize,
		BatchTimeout: p.config.BatchTimeout,
		RequiredAcks: p.config.RequiredAcks,
		Transport:    transport,
		Compression:  p.config.Compression,
	}
	p.writers[topic] = w
	return w
}

func (p *kafkaProducer) Send(ctx context.Context, topic string, message Message) error {
	w := p.getWriter(topic)
	return w.WriteMessages(ctx, message.ToKafkaMessage())
}

func (p *kafkaProducer) BatchSend(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	w := p.getWriter(topic)
	kmsgs := make([]kafka.Message, len(messages))
	for i, msg := range messages {
		kmsgs[i] = msg.ToKafkaMessage()
	}
	return w.WriteMessages(ctx, kmsgs...)
}

func (p *kafkaProducer) Close() error {
	p.writersMu.Lock()
	defer p.writersMu.Unlock()

	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.writers = make(map[string]*kafka.Writer)
	return firstErr
}
