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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.False(t, cfg.SASLEnabled)
	assert.Equal(t, "SCRAM-SHA-256", cfg.SASLMechanism)
	assert.False(t, cfg.TLSEnabled)
	assert.Equal(t, 100, cfg.ProducerBatchSize)
	assert.Equal(t, 1*time.Second, cfg.ProducerBatchTimeout)
	assert.Equal(t, "snappy", cfg.ProducerCompression)
	assert.Equal(t, "openrelik", cfg.TopicPrefix)
	assert.Equal(t, 100, cfg.ConsumerBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.ConsumerMaxWait)
	assert.Equal(t, 10*1024, cfg.ConsumerMinBytes)
	assert.Equal(t, 10*1024*1024, cfg.ConsumerMaxBytes)
	assert.Equal(t, 10*time.Second, cfg.ConnectionTimeout)
}
