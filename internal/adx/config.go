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

package adx

import (
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/cenkalti/backoff/v4"
)

// Supported authentication modes for cluster connections.
const (
	AuthModeNone    = "none"    // no credentials, for Kustainer and other local setups
	AuthModeAzCli   = "azcli"   // reuse the local az login session
	AuthModeDefault = "default" // DefaultAzureCredential chain
	AuthModeApp     = "app"     // AAD application id + secret
)

// Config holds the Azure Data Explorer configuration
type Config struct {
	// Default connection target, overridable per task
	ClusterURI string `mapstructure:"cluster_uri"`
	Database   string `mapstructure:"database"`

	// Authentication
	AuthMode     string `mapstructure:"auth_mode"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TenantID     string `mapstructure:"tenant_id"`

	// Credential, when set, wins over AuthMode. Lets callers inject a
	// prebuilt token credential (workload identity, tests).
	Credential azcore.TokenCredential `mapstructure:"-"`

	// Database metadata root used to re-attach databases that a Kustainer
	// restart has detached. Empty disables attach recovery.
	AttachRoot string `mapstructure:"attach_root"`

	// Retry settings
	IngestMaxRetries  int           `mapstructure:"ingest_max_retries"`
	PolicyMaxRetries  int           `mapstructure:"policy_max_retries"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		ClusterURI: "http://localhost:8080",
		Database:   "Default",

		AuthMode: AuthModeNone,

		AttachRoot: "/data/dbs",

		IngestMaxRetries:  10,
		PolicyMaxRetries:  5,
		RetryInitialDelay: 5 * time.Second,
	}
}

// newBackOff returns the exponential retry schedule shared by ingestion
// and management commands: RetryInitialDelay, doubling per attempt.
func (c *Config) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.RetryInitialDelay
	bo.Multiplier = 2
	bo.MaxInterval = 5 * time.Minute
	bo.MaxElapsedTime = 0
	return bo
}
