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

// Package submitter turns one CSV file into an ordered sequence of streaming
// ingestion calls against an injected client, splitting the file into
// row-aligned chunks when it exceeds the chunk budget and aggregating the
// per-chunk outcomes into a single summary.
package submitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/csvschema"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/csvsplit"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/logctx"
)

var (
	meter = otel.Meter("github.com/openrelik/openrelik-worker-kustoingest/internal/submitter")

	chunksSubmitted metric.Int64Counter
	rowsSubmitted   metric.Int64Counter
	bytesSubmitted  metric.Int64Counter
)

func init() {
	var err error
	chunksSubmitted, err = meter.Int64Counter(
		"kustoingest.chunks.submitted",
		metric.WithDescription("Number of chunk submissions attempted, by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create chunks.submitted counter: %w", err))
	}
	rowsSubmitted, err = meter.Int64Counter(
		"kustoingest.rows.submitted",
		metric.WithDescription("Number of data rows accepted by the ingestion client"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.submitted counter: %w", err))
	}
	bytesSubmitted, err = meter.Int64Counter(
		"kustoingest.bytes.submitted",
		metric.WithUnit("By"),
		metric.WithDescription("Number of chunk bytes accepted by the ingestion client"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create bytes.submitted counter: %w", err))
	}
}

// Ingestor is the ingestion capability the submitter drives. Implementations
// receive whole chunks, each independently valid CSV with a header line.
type Ingestor interface {
	// EnsureTable creates the table when it does not exist and readies it
	// for streaming ingestion.
	EnsureTable(ctx context.Context, table string, schema *csvschema.Schema) error

	// IngestStream submits one chunk. Errors wrapping ErrTargetUnusable
	// abort the remaining chunks of the run.
	IngestStream(ctx context.Context, table string, r io.Reader, size int64) error
}

// Submitter submits CSV files chunk by chunk. Each Submit call is
// self-contained; a Submitter may be shared across goroutines as long as the
// Ingestor is.
type Submitter struct {
	ingestor      Ingestor
	maxChunkBytes int64
	sampleRows    int
}

// Option adjusts a Submitter.
type Option func(*Submitter)

// WithMaxChunkBytes overrides the chunk byte budget.
func WithMaxChunkBytes(n int64) Option {
	return func(s *Submitter) {
		s.maxChunkBytes = n
	}
}

// WithSampleRows overrides how many rows schema inference examines.
func WithSampleRows(n int) Option {
	return func(s *Submitter) {
		s.sampleRows = n
	}
}

// New creates a Submitter over the given ingestion client.
func New(ingestor Ingestor, opts ...Option) *Submitter {
	s := &Submitter{
		ingestor:      ingestor,
		maxChunkBytes: csvsplit.DefaultMaxChunkBytes,
		sampleRows:    csvschema.DefaultSampleRows,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit ingests one CSV file into target. When target.Table is empty it is
// derived from the file's base name. Chunks are submitted strictly in order,
// each completing before the next begins; per-chunk rejections are recorded
// in the summary rather than raised. The returned error is non-nil only for
// run-fatal conditions: unreadable or malformed input, table creation
// failure, or no chunk succeeding. The summary is non-nil whenever at least
// one chunk was attempted.
func (s *Submitter) Submit(ctx context.Context, filePath string, target Target) (*Summary, error) {
	if target.Table == "" {
		target.Table = csvschema.TableName(filePath)
	}
	ll := logctx.FromContext(ctx).With(
		slog.String("file", filePath),
		slog.String("table", target.Table),
	)

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileUnreadable, err)
	}
	defer func() {
		_ = f.Close()
	}()

	schema, err := csvschema.Infer(f, s.sampleRows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileUnreadable, err)
	}

	splitter, err := csvsplit.NewSplitter(f, s.maxChunkBytes)
	if err != nil {
		if errors.Is(err, csvsplit.ErrNoHeader) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrFileUnreadable, err)
	}

	if err := s.ingestor.EnsureTable(ctx, target.Table, schema); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTableCreationFailed, err)
	}

	summary := &Summary{Target: target}
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		chunk, err := splitter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("%w: %w", ErrFileUnreadable, err)
		}

		outcome := s.submitChunk(ctx, target.Table, chunk)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Err != nil && errors.Is(outcome.Err, ErrTargetUnusable) {
			ll.Warn("Target unusable, skipping remaining chunks",
				slog.Int("chunk", chunk.Seq),
				slog.Any("error", outcome.Err))
			summary.Aborted = true
			break
		}
	}

	if failed := summary.FailedChunks(); len(failed) > 0 {
		ll.Warn("Chunk submissions rejected",
			slog.Int("chunks", len(summary.Outcomes)),
			slog.Any("failedChunks", failed))
	}

	if len(summary.Outcomes) > 0 && !anySucceeded(summary.Outcomes) {
		merr := &multierror.Error{}
		for _, o := range summary.Outcomes {
			merr = multierror.Append(merr, fmt.Errorf("chunk %d: %w", o.ChunkSeq, o.Err))
		}
		return summary, fmt.Errorf("no chunk succeeded for table %s: %w", target.Table, merr.ErrorOrNil())
	}

	ll.Info("File submitted",
		slog.Int("chunks", len(summary.Outcomes)),
		slog.Int("rows", summary.RowsIngested()),
		slog.Int64("bytes", summary.BytesIngested()))
	return summary, nil
}

func (s *Submitter) submitChunk(ctx context.Context, table string, chunk *csvsplit.Chunk) Outcome {
	outcome := Outcome{
		ChunkSeq: chunk.Seq,
		RowCount: chunk.RowCount,
		Bytes:    len(chunk.Data),
	}

	err := s.ingestor.IngestStream(ctx, table, bytes.NewReader(chunk.Data), int64(len(chunk.Data)))
	if err != nil {
		outcome.Err = fmt.Errorf("%w: %w", ErrIngestionRejected, err)
		chunksSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failure")))
		return outcome
	}

	chunksSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	rowsSubmitted.Add(ctx, int64(chunk.RowCount))
	bytesSubmitted.Add(ctx, int64(len(chunk.Data)))
	return outcome
}

func anySucceeded(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Succeeded() {
			return true
		}
	}
	return false
}
