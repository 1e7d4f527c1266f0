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

import "time"

// Config holds the Kafka configuration for the task queue.
type Config struct {
	// Broker configuration
	Brokers []string `mapstructure:"brokers"`

	// TopicPrefix namespaces topics and consumer groups, e.g.
	// "openrelik" yields "openrelik.tasks.kustoingest".
	TopicPrefix string `mapstructure:"topic_prefix"`

	// SASL authentication
	SASLEnabled   bool   `mapstructure:"sasl_enabled"`
	SASLMechanism string `mapstructure:"sasl_mechanism"` // "SCRAM-SHA-256", "SCRAM-SHA-512" or "PLAIN"
	SASLUsername  string `mapstructure:"sasl_username"`
	SASLPassword  string `mapstructure:"sasl_password"`

	// TLS configuration
	TLSEnabled    bool `mapstructure:"tls_enabled"`
	TLSSkipVerify bool `mapstructure:"tls_skip_verify"`

	// Producer settings
	ProducerBatchSize    int           `mapstructure:"producer_batch_size"`
	ProducerBatchTimeout time.Duration `mapstructure:"producer_batch_timeout"`
	ProducerCompression  string        `mapstructure:"producer_compression"`

	// Consumer settings
	ConsumerBatchSize int           `mapstructure:"consumer_batch_size"`
	ConsumerMaxWait   time.Duration `mapstructure:"consumer_max_wait"`
	ConsumerMinBytes  int           `mapstructure:"consumer_min_bytes"`
	ConsumerMaxBytes  int           `mapstructure:"consumer_max_bytes"`

	// Connection settings
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Brokers:     []string{"localhost:9092"},
		TopicPrefix: "openrelik",

		SASLEnabled:   false,
		SASLMechanism: "SCRAM-SHA-256",
		SASLUsername:  "",
		SASLPassword:  "",

		TLSEnabled:    false,
		TLSSkipVerify: false,

		ProducerBatchSize:    100,
		ProducerBatchTimeout: 1 * time.Second,
		ProducerCompression:  "snappy",

		ConsumerBatchSize: 100,
		ConsumerMaxWait:   500 * time.Millisecond,
		ConsumerMinBytes:  10 * 1024,        // 10KB
		ConsumerMaxBytes:  10 * 1024 * 1024, // 10MB

		ConnectionTimeout: 10 * time.Second,
	}
}
