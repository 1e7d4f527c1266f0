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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	kustoerrors "github.com/Azure/azure-kusto-go/kusto/data/errors"
	"github.com/Azure/azure-kusto-go/kusto/data/table"
	"github.com/Azure/azure-kusto-go/kusto/kql"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/csvschema"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/logctx"
)

// netDefaultDB is the database every Kustainer instance starts with. Attach
// commands run against it because the database being attached is, by
// definition, not addressable yet.
const netDefaultDB = "NetDefaultDB"

var errPolicyPending = errors.New("streaming ingestion policy not enabled yet")

// policyRow maps a row of ".show table ... policy streamingingestion".
type policyRow struct {
	PolicyName string `kusto:"PolicyName"`
	Policy     string `kusto:"Policy"`
}

// EnsureTable creates the table with the inferred schema if it does not
// exist, merging columns into an existing table otherwise, and turns on
// streaming ingestion for it. It only returns once the streaming policy is
// confirmed active, so a following ingest call will not bounce.
//
// When the create fails and attach recovery is configured, the database is
// re-attached from its on-disk metadata first. Kustainer drops attached
// databases on restart, which otherwise strands every workflow that runs
// after one.
func (ing *Ingestor) EnsureTable(ctx context.Context, tableName string, schema *csvschema.Schema) error {
	ll := logctx.FromContext(ctx)

	ctx, span := tracer.Start(ctx, "Ingestor.EnsureTable",
		trace.WithAttributes(
			attribute.String("database", ing.database),
			attribute.String("table", tableName),
			attribute.Int("columns", len(schema.Columns)),
		),
	)
	defer span.End()

	cmd := createMergeCommand(tableName, schema)
	if err := ing.mgmt(ctx, ing.database, cmd); err != nil {
		if ing.cfg.AttachRoot == "" {
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
		ll.Warn("Table create failed, attempting database attach recovery",
			slog.String("database", ing.database),
			slog.Any("error", err))
		if aerr := ing.attachDatabase(ctx); aerr != nil {
			ll.Warn("Database attach failed", slog.Any("error", aerr))
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
		// The engine needs a moment to load metadata after an attach.
		if err := ing.mgmtRetry(ctx, ing.database, cmd, 3); err != nil {
			return fmt.Errorf("failed to create table %s after database attach: %w", tableName, err)
		}
	}

	if err := ing.mgmt(ctx, ing.database, enableStreamingPolicyCommand(tableName)); err != nil {
		return fmt.Errorf("failed to enable streaming policy on %s: %w", tableName, err)
	}

	// Read the schema back once so the engine indexes the fresh metadata.
	if err := ing.mgmt(ctx, ing.database, showSchemaCommand(tableName)); err != nil {
		return fmt.Errorf("failed to read back schema of %s: %w", tableName, err)
	}

	if err := ing.waitStreamingPolicyReady(ctx, tableName); err != nil {
		return fmt.Errorf("streaming policy not active on %s: %w", tableName, err)
	}

	ll.Info("Table ready for streaming ingestion",
		slog.String("table", tableName),
		slog.Int("columns", len(schema.Columns)))
	return nil
}

func (ing *Ingestor) attachDatabase(ctx context.Context) error {
	cmd, err := attachDatabaseCommand(ing.database, ing.cfg.AttachRoot)
	if err != nil {
		return err
	}
	return ing.mgmt(ctx, netDefaultDB, cmd)
}

// waitStreamingPolicyReady polls the table policy until streaming ingestion
// reports enabled, with the configured backoff schedule.
func (ing *Ingestor) waitStreamingPolicyReady(ctx context.Context, tableName string) error {
	attempts := ing.cfg.PolicyMaxRetries
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(ing.cfg.newBackOff(), uint64(attempts-1)), ctx)
	return backoff.Retry(func() error {
		return ing.checkStreamingPolicy(ctx, tableName)
	}, bo)
}

func (ing *Ingestor) checkStreamingPolicy(ctx context.Context, tableName string) error {
	mgmtCommands.Add(ctx, 1)
	iter, err := ing.client.Mgmt(ctx, ing.database, showStreamingPolicyCommand(tableName))
	if err != nil {
		return err
	}
	defer iter.Stop()

	enabled := false
	err = iter.DoOnRowOrError(func(row *table.Row, e *kustoerrors.Error) error {
		if e != nil {
			return e
		}
		var pr policyRow
		if err := row.ToStruct(&pr); err != nil {
			return err
		}
		ok, err := policyEnabled(pr.Policy)
		if err != nil {
			return err
		}
		if ok {
			enabled = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !enabled {
		return errPolicyPending
	}
	return nil
}

// policyEnabled reports whether a streamingingestion policy document has
// IsEnabled set. An empty or null policy means not enabled yet.
func policyEnabled(policyJSON string) (bool, error) {
	if policyJSON == "" {
		return false, nil
	}
	var policy struct {
		IsEnabled bool `json:"IsEnabled"`
	}
	if err := json.Unmarshal([]byte(policyJSON), &policy); err != nil {
		return false, fmt.Errorf("invalid streamingingestion policy payload: %w", err)
	}
	return policy.IsEnabled, nil
}

// mgmt runs a management command and drains its results.
func (ing *Ingestor) mgmt(ctx context.Context, database string, cmd *kql.Builder) error {
	mgmtCommands.Add(ctx, 1)
	iter, err := ing.client.Mgmt(ctx, database, cmd)
	if err != nil {
		return err
	}
	defer iter.Stop()
	return iter.DoOnRowOrError(func(_ *table.Row, e *kustoerrors.Error) error {
		if e != nil {
			return e
		}
		return nil
	})
}

// mgmtRetry retries a management command with the configured backoff, for
// commands that race the engine loading metadata.
func (ing *Ingestor) mgmtRetry(ctx context.Context, database string, cmd *kql.Builder, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(ing.cfg.newBackOff(), uint64(attempts-1)), ctx)
	return backoff.Retry(func() error {
		return ing.mgmt(ctx, database, cmd)
	}, bo)
}
