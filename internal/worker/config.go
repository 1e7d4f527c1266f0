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

package worker

import (
	"github.com/openrelik/openrelik-worker-kustoingest/internal/csvschema"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/csvsplit"
)

// Config holds the ingestion tunables applied to every task this worker runs.
type Config struct {
	// MaxChunkBytes bounds each streamed chunk, sized to the streaming
	// ingestion per-request limit.
	MaxChunkBytes int64 `mapstructure:"max_chunk_bytes"`

	// SampleRows bounds how many data rows schema inference examines.
	SampleRows int `mapstructure:"sample_rows"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxChunkBytes: csvsplit.DefaultMaxChunkBytes,
		SampleRows:    csvschema.DefaultSampleRows,
	}
}
