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

// Package taskqueue moves task and result messages over Kafka using
// segmentio/kafka-go.
package taskqueue

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Message represents a Kafka message with headers
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// ConsumedMessage represents a message consumed from Kafka with metadata
type ConsumedMessage struct {
	Message
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

// ToKafkaMessage converts to kafka-go message format
func (m *Message) ToKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{
			Key:   k,
			Value: []byte(v),
		})
	}
	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
	}
}

// FromKafkaMessage converts from kafka-go message format
func FromKafkaMessage(km kafka.Message) ConsumedMessage {
	headers := make(map[string]string)
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	return ConsumedMessage{
		Message: Message{
			Key:     km.Key,
			Value:   km.Value,
			Headers: headers,
		},
		Topic:     km.Topic,
		Partition: km.Partition,
		Offset:    km.Offset,
		Timestamp: km.Time,
	}
}
