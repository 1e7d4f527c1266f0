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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	require.False(t, cfg.Kafka.SASLEnabled)
	require.Equal(t, "openrelik", cfg.Kafka.TopicPrefix)

	require.Equal(t, "http://localhost:8080", cfg.Kusto.ClusterURI)
	require.Equal(t, "Default", cfg.Kusto.Database)
	require.Equal(t, "none", cfg.Kusto.AuthMode)
	require.Equal(t, "/data/dbs", cfg.Kusto.AttachRoot)

	require.Equal(t, int64(10_000_000), cfg.Worker.MaxChunkBytes)
	require.Equal(t, 1000, cfg.Worker.SampleRows)
}

func TestLoadKafkaEnvOverride(t *testing.T) {
	t.Setenv("KUSTOINGEST_KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KUSTOINGEST_KAFKA_SASL_ENABLED", "true")
	t.Setenv("KUSTOINGEST_KAFKA_SASL_USERNAME", "alice")
	t.Setenv("KUSTOINGEST_KAFKA_CONSUMER_BATCH_SIZE", "200")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	require.True(t, cfg.Kafka.SASLEnabled)
	require.Equal(t, "alice", cfg.Kafka.SASLUsername)
	require.Equal(t, 200, cfg.Kafka.ConsumerBatchSize)
}

func TestLoadKustoEnvOverride(t *testing.T) {
	t.Setenv("KUSTOINGEST_KUSTO_CLUSTER_URI", "https://help.kusto.windows.net")
	t.Setenv("KUSTOINGEST_KUSTO_DATABASE", "Cases")
	t.Setenv("KUSTOINGEST_KUSTO_AUTH_MODE", "azcli")
	t.Setenv("KUSTOINGEST_KUSTO_INGEST_MAX_RETRIES", "3")
	t.Setenv("KUSTOINGEST_KUSTO_RETRY_INITIAL_DELAY", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://help.kusto.windows.net", cfg.Kusto.ClusterURI)
	require.Equal(t, "Cases", cfg.Kusto.Database)
	require.Equal(t, "azcli", cfg.Kusto.AuthMode)
	require.Equal(t, 3, cfg.Kusto.IngestMaxRetries)
	require.Equal(t, time.Second, cfg.Kusto.RetryInitialDelay)
}

func TestLoadWorkerEnvOverride(t *testing.T) {
	t.Setenv("KUSTOINGEST_WORKER_MAX_CHUNK_BYTES", "5000000")
	t.Setenv("KUSTOINGEST_WORKER_SAMPLE_ROWS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, int64(5_000_000), cfg.Worker.MaxChunkBytes)
	require.Equal(t, 250, cfg.Worker.SampleRows)
}
