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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-kusto-go/kusto"
	kustoerrors "github.com/Azure/azure-kusto-go/kusto/data/errors"
	"github.com/Azure/azure-kusto-go/kusto/ingest"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/logctx"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/submitter"
)

var (
	meter  = otel.Meter("github.com/openrelik/openrelik-worker-kustoingest/internal/adx")
	tracer = otel.Tracer("github.com/openrelik/openrelik-worker-kustoingest/internal/adx")

	ingestRetries metric.Int64Counter
	mgmtCommands  metric.Int64Counter
)

func init() {
	var err error
	ingestRetries, err = meter.Int64Counter(
		"kustoingest.adx.ingest.retries",
		metric.WithDescription("Number of streaming ingest attempts that were retried"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create kustoingest.adx.ingest.retries counter: %v", err))
	}
	mgmtCommands, err = meter.Int64Counter(
		"kustoingest.adx.mgmt.commands",
		metric.WithDescription("Number of management commands issued"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create kustoingest.adx.mgmt.commands counter: %v", err))
	}
}

// Ingestor manages tables and streams CSV data for one cluster/database pair.
// It satisfies the submitter's ingestion client interface.
type Ingestor struct {
	cfg      *Config
	client   *kusto.Client
	database string

	mu      sync.RWMutex
	streams map[string]*ingest.Streaming
}

func newIngestor(cfg *Config, client *kusto.Client, database string) *Ingestor {
	return &Ingestor{
		cfg:      cfg,
		client:   client,
		database: database,
		streams:  make(map[string]*ingest.Streaming),
	}
}

// Database returns the database this ingestor writes to.
func (ing *Ingestor) Database() string {
	return ing.database
}

// IngestStream streams one CSV chunk into the table. The chunk arrives with
// its header line, which streaming ingestion cannot skip server-side, so it
// is dropped here before anything goes on the wire. A chunk with no data
// rows is a no-op.
//
// Transient failures are retried with exponential backoff. An error that
// means the database or table is gone is wrapped so the caller can stop
// submitting further chunks.
func (ing *Ingestor) IngestStream(ctx context.Context, tableName string, r io.Reader, size int64) error {
	payload, err := dataPayload(r)
	if err != nil {
		return fmt.Errorf("failed to read chunk: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Ingestor.IngestStream",
		trace.WithAttributes(
			attribute.String("database", ing.database),
			attribute.String("table", tableName),
			attribute.Int64("chunkBytes", size),
		),
	)
	defer span.End()

	streaming, err := ing.streaming(tableName)
	if err != nil {
		span.RecordError(err)
		return err
	}

	ll := logctx.FromContext(ctx)
	op := func() error {
		res, err := streaming.FromReader(ctx, bytes.NewReader(payload), ingest.FileFormat(ingest.CSV))
		if err == nil {
			err = <-res.Wait(ctx)
		}
		if err == nil {
			return nil
		}
		if !kustoerrors.Retry(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		ingestRetries.Add(ctx, 1)
		ll.Warn("Streaming ingest attempt failed, will retry",
			slog.String("table", tableName),
			slog.Duration("retry_in", next),
			slog.Any("error", err))
	}

	attempts := ing.cfg.IngestMaxRetries
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(ing.cfg.newBackOff(), uint64(attempts-1)), ctx)
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		span.RecordError(err)
		return classifyTargetError(err)
	}
	return nil
}

// dataPayload drops the header line from a chunk and returns the data rows.
func dataPayload(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	if _, err := br.ReadString('\n'); err != nil {
		if err == io.EOF {
			// Header-only chunk without a trailing newline.
			return nil, nil
		}
		return nil, err
	}
	return io.ReadAll(br)
}

// streaming returns a cached streaming client for the table, creating one
// on first use.
func (ing *Ingestor) streaming(tableName string) (*ingest.Streaming, error) {
	ing.mu.RLock()
	if s, ok := ing.streams[tableName]; ok {
		ing.mu.RUnlock()
		return s, nil
	}
	ing.mu.RUnlock()

	ing.mu.Lock()
	defer ing.mu.Unlock()
	if s, ok := ing.streams[tableName]; ok {
		return s, nil
	}
	s, err := ingest.NewStreaming(ing.client, ing.database, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming client for table %s: %w", tableName, err)
	}
	ing.streams[tableName] = s
	return s, nil
}

// classifyTargetError wraps errors that mean the target database or table
// no longer exists. The Kusto SDK reports a missing database with its own
// error kind; the emulator surfaces missing entities through OneApi error
// codes in the message body.
func classifyTargetError(err error) error {
	if err == nil {
		return nil
	}
	if ke, ok := kustoerrors.GetKustoError(err); ok && ke.Kind == kustoerrors.KDBNotExist {
		return fmt.Errorf("%w: %w", submitter.ErrTargetUnusable, err)
	}
	if isEntityNotFound(err) {
		return fmt.Errorf("%w: %w", submitter.ErrTargetUnusable, err)
	}
	return err
}

func isEntityNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "BadRequest_DatabaseNotExist") ||
		strings.Contains(msg, "BadRequest_EntityNotFound")
}

// Close closes all cached streaming clients. The underlying cluster client
// is owned by the factory.
func (ing *Ingestor) Close() error {
	ing.mu.Lock()
	defer ing.mu.Unlock()

	var firstErr error
	for tableName, s := range ing.streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(ing.streams, tableName)
	}
	return firstErr
}
