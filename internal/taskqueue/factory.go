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
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// Factory creates Kafka producers and consumers with consistent configuration
type Factory struct {
	config *Config
}

// NewFactory creates a new factory with the given configuration
func NewFactory(cfg *Config) *Factory {
	return &Factory{
		config: cfg,
	}
}

// CreateProducer creates a new Kafka producer
func (f *Factory) CreateProducer() (Producer, error) {
	var compression kafka.Compression
	switch strings.ToLower(f.config.ProducerCompression) {
	case "", "none", "uncompressed":
		compression = 0
	case "gzip":
		compression = kafka.Gzip
	case "snappy":
		compression = kafka.Snappy
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	default:
		return nil, fmt.Errorf("unsupported compression: %s", f.config.ProducerCompression)
	}

	cfg := ProducerConfig{
		Brokers:           f.config.Brokers,
		BatchSize:         f.config.ProducerBatchSize,
		BatchTimeout:      f.config.ProducerBatchTimeout,
		RequiredAcks:      kafka.RequireOne,
		Compression:       compression,
		ConnectionTimeout: f.config.ConnectionTimeout,
	}

	if f.config.SASLEnabled {
		mechanism, err := f.createSASLMechanism()
		if err != nil {
			return nil, fmt.Errorf("failed to create SASL mechanism: %w", err)
		}
		cfg.SASLMechanism = mechanism
	}

	if f.config.TLSEnabled {
		cfg.TLSConfig = &tls.Config{
			InsecureSkipVerify: f.config.TLSSkipVerify,
		}
	}

	return NewProducer(cfg), nil
}

// CreateConsumer creates a new Kafka consumer for the specified topic
func (f *Factory) CreateConsumer(topic string, groupID string) (Consumer, error) {
	cfg := ConsumerConfig{
		Brokers:           f.config.Brokers,
		Topic:             topic,
		GroupID:           groupID,
		MinBytes:          f.config.ConsumerMinBytes,
		MaxBytes:          f.config.ConsumerMaxBytes,
		MaxWait:           f.config.ConsumerMaxWait,
		BatchSize:         f.config.ConsumerBatchSize,
		StartOffset:       kafka.LastOffset,
		AutoCommit:        true,
		CommitBatch:       true,
		ConnectionTimeout: f.config.ConnectionTimeout,
	}

	if f.config.SASLEnabled {
		mechanism, err := f.createSASLMechanism()
		if err != nil {
			return nil, fmt.Errorf("failed to create SASL mechanism: %w", err)
		}
		cfg.SASLMechanism = mechanism
	}

	if f.config.TLSEnabled {
		cfg.TLSConfig = &tls.Config{
			InsecureSkipVerify: f.config.TLSSkipVerify,
		}
	}

	return NewConsumer(cfg), nil
}

// createSASLMechanism creates the appropriate SASL mechanism based on configuration
func (f *Factory) createSASLMechanism() (sasl.Mechanism, error) {
	switch f.config.SASLMechanism {
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, f.config.SASLUsername, f.config.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, f.config.SASLUsername, f.config.SASLPassword)
	case "PLAIN":
		return plain.Mechanism{
			Username: f.config.SASLUsername,
			Password: f.config.SASLPassword,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", f.config.SASLMechanism)
	}
}

// GetConfig returns the underlying configuration
func (f *Factory) GetConfig() *Config {
	return f.config
}
