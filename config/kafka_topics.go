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

package config

import (
	"fmt"
)

// Topic keys for semantic access to topics
const (
	TopicIngestTasks = "tasks.kustoingest"
	TopicTaskResults = "tasks.results"
)

// TopicSpec defines metadata for a Kafka topic
type TopicSpec struct {
	Key           string // Internal key for lookups
	Name          string // Full topic name with prefix
	ConsumerGroup string // Consumer group name
}

// TopicRegistry manages all Kafka topic definitions and provides type-safe access
type TopicRegistry struct {
	prefix string
	specs  map[string]TopicSpec
}

// NewTopicRegistry creates a new topic registry with the given prefix
func NewTopicRegistry(prefix string) *TopicRegistry {
	if prefix == "" {
		prefix = "openrelik"
	}

	tr := &TopicRegistry{
		prefix: prefix,
		specs:  make(map[string]TopicSpec),
	}

	// The worker consumes ingestion tasks and publishes task results for
	// the server to collect.
	tr.registerTopic(TopicIngestTasks, "tasks.kustoingest", "workers.kustoingest")
	tr.registerTopic(TopicTaskResults, "tasks.results", "servers.results")

	return tr
}

// registerTopic adds a topic specification to the registry
func (tr *TopicRegistry) registerTopic(key, suffix, consumerGroupSuffix string) {
	tr.specs[key] = TopicSpec{
		Key:           key,
		Name:          fmt.Sprintf("%s.%s", tr.prefix, suffix),
		ConsumerGroup: fmt.Sprintf("%s.%s", tr.prefix, consumerGroupSuffix),
	}
}

// GetTopic returns the full topic name for the given key
func (tr *TopicRegistry) GetTopic(key string) string {
	spec, exists := tr.specs[key]
	if !exists {
		panic(fmt.Sprintf("unknown topic key: %s", key))
	}
	return spec.Name
}

// GetConsumerGroup returns the consumer group name for the given topic key
func (tr *TopicRegistry) GetConsumerGroup(key string) string {
	spec, exists := tr.specs[key]
	if !exists {
		panic(fmt.Sprintf("unknown topic key: %s", key))
	}
	return spec.ConsumerGroup
}
