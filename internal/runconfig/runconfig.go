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

// Package runconfig reads the .openrelik-config sidecar that a workflow can
// place among its input files to point this worker at a specific cluster
// and database for that run.
package runconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the display name of the sidecar file among the input files.
const FileName = ".openrelik-config"

// Config holds the sidecar keys this worker understands. The sidecar is
// shared across worker types, so unknown keys are ignored.
type Config struct {
	ClusterURI string `yaml:"openrelik-kusto-cluster-uri"`
	Database   string `yaml:"openrelik-kusto-database"`
}

// Load reads and parses a sidecar file.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	return Parse(contents)
}

// Parse decodes sidecar contents. An empty document yields an empty config.
func Parse(contents []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty sidecar, nothing to override.
			return &Config{}, nil
		}
		return nil, fmt.Errorf("%s is not valid YAML: %w", FileName, err)
	}
	return &cfg, nil
}
