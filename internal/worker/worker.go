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

// Package worker executes kustoingest tasks: it filters a task's input
// files down to CSVs, resolves the connection target, runs the chunked
// submitter per file, and builds the task result message reported back to
// the server.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/csvschema"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/logctx"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/runconfig"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/submitter"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/taskqueue/messages"
)

// Task identity used when registering with the OpenRelik server.
const (
	TaskName    = "openrelik-worker-kustoingest.tasks.kustoingest"
	DisplayName = "Kusto Ingestor"
)

// Task config keys a workflow can set to override the connection target.
const (
	ConfigKeyConnectionOverride = "connection_override"
	ConfigKeyDatabaseOverride   = "database_override"
)

// csvPattern selects the input files this worker ingests, matched against
// each file's display name.
const csvPattern = "*.csv"

var (
	meter = otel.Meter("github.com/openrelik/openrelik-worker-kustoingest/internal/worker")

	tasksProcessed metric.Int64Counter
	filesProcessed metric.Int64Counter
	taskDuration   metric.Float64Histogram
)

func init() {
	var err error
	tasksProcessed, err = meter.Int64Counter(
		"kustoingest.tasks.processed",
		metric.WithDescription("Number of tasks handled, by result status"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create tasks.processed counter: %w", err))
	}
	filesProcessed, err = meter.Int64Counter(
		"kustoingest.files.processed",
		metric.WithDescription("Number of CSV input files processed, by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create files.processed counter: %w", err))
	}
	taskDuration, err = meter.Float64Histogram(
		"kustoingest.task.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds for a task to be handled"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create task.duration histogram: %w", err))
	}
}

// IngestorProvider hands out ingestion clients for resolved targets. The
// ADX factory satisfies it through a thin adapter in cmd; tests substitute
// a fake to drive the worker without a cluster.
type IngestorProvider interface {
	Ingestor(clusterURI, database string) (submitter.Ingestor, error)
}

// Worker turns task messages into ingestion runs. A Worker is stateless
// across tasks and safe for sequential reuse.
type Worker struct {
	provider IngestorProvider
	defaults submitter.Target
	cfg      *Config
}

// New creates a Worker. defaults carries the cluster URI and database used
// when neither the sidecar nor the task config names one; its Table field
// is ignored.
func New(provider IngestorProvider, defaults submitter.Target, cfg *Config) *Worker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Worker{
		provider: provider,
		defaults: defaults,
		cfg:      cfg,
	}
}

// HandleTask processes one task message and returns its result message. It
// never returns an error: every failure lands in the result's status and
// error fields so the queue wrapper decides about whole-task retries.
func (w *Worker) HandleTask(ctx context.Context, task *messages.TaskMessage) *messages.TaskResultMessage {
	started := time.Now()
	result := &messages.TaskResultMessage{
		ResultID:   uuid.New(),
		TaskID:     task.TaskID,
		TaskName:   TaskName,
		WorkflowID: task.WorkflowID,
		StartedAt:  started,
	}
	defer func() {
		result.FinishedAt = time.Now()
		attrs := metric.WithAttributes(attribute.String("status", result.Status))
		tasksProcessed.Add(ctx, 1, attrs)
		taskDuration.Record(ctx, time.Since(started).Seconds(), attrs)
	}()

	inputs, err := task.ResolveInputFiles()
	if err != nil {
		result.Status = messages.StatusFailed
		result.Error = err.Error()
		return result
	}

	csvs := compatibleCSVs(ctx, inputs)
	if len(csvs) == 0 {
		result.Status = messages.StatusFailed
		result.Error = "no compatible CSV input files in task"
		return result
	}

	target := w.resolveTarget(ctx, inputs, task.TaskConfig)
	ll := logctx.FromContext(ctx).With(
		slog.String("cluster", target.ClusterURI),
		slog.String("database", target.Database),
	)

	ingestor, err := w.provider.Ingestor(target.ClusterURI, target.Database)
	if err != nil {
		result.Status = messages.StatusFailed
		result.Error = fmt.Errorf("failed to connect to %s: %w", target.ClusterURI, err).Error()
		return result
	}

	sub := submitter.New(ingestor,
		submitter.WithMaxChunkBytes(w.cfg.MaxChunkBytes),
		submitter.WithSampleRows(w.cfg.SampleRows),
	)

	failedFiles := 0
	merr := &multierror.Error{}
	for _, f := range csvs {
		// Table names come from the display name: input paths on the
		// shared volume are content-addressed and carry no usable name.
		fileTarget := target
		fileTarget.Table = csvschema.TableName(f.DisplayName)

		summary, err := sub.Submit(ctx, f.Path, fileTarget)
		outcome := messages.FileOutcome{
			DisplayName: f.DisplayName,
			Table:       fileTarget.Table,
			Database:    fileTarget.Database,
			ClusterURI:  fileTarget.ClusterURI,
		}
		if summary != nil {
			outcome.RowCount = int64(summary.RowsIngested())
			outcome.TotalChunks = len(summary.Outcomes)
			outcome.FailedChunks = summary.FailedChunks()
		}
		if err != nil {
			failedFiles++
			outcome.Error = err.Error()
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.DisplayName, err))
			ll.Error("File ingestion failed",
				slog.String("file", f.DisplayName),
				slog.Any("error", err))
			filesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		} else {
			filesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", fileOutcomeAttr(outcome))))
		}
		result.Files = append(result.Files, outcome)
	}

	result.Status = statusFor(result.Files, failedFiles)
	if result.Status == messages.StatusFailed {
		result.Error = merr.ErrorOrNil().Error()
	}

	ll.Info("Task handled",
		slog.String("status", result.Status),
		slog.Int("files", len(result.Files)),
		slog.Duration("elapsed", time.Since(started)))
	return result
}

func fileOutcomeAttr(o messages.FileOutcome) string {
	if len(o.FailedChunks) > 0 {
		return "partial"
	}
	return "succeeded"
}

// statusFor maps per-file outcomes to the task status: failed only when
// every file failed, partial when any file lost chunks or failed, and
// succeeded otherwise.
func statusFor(files []messages.FileOutcome, failedFiles int) string {
	if failedFiles == len(files) {
		return messages.StatusFailed
	}
	for _, f := range files {
		if f.Error != "" || len(f.FailedChunks) > 0 {
			return messages.StatusPartial
		}
	}
	return messages.StatusSucceeded
}

// compatibleCSVs filters task inputs to the files this worker ingests. The
// sidecar is consumed by target resolution, not ingested; anything else
// that is not a CSV is skipped and noted.
func compatibleCSVs(ctx context.Context, inputs []messages.InputFile) []messages.InputFile {
	var csvs []messages.InputFile
	for _, f := range inputs {
		if f.DisplayName == runconfig.FileName {
			continue
		}
		if ok, _ := path.Match(csvPattern, f.DisplayName); ok {
			csvs = append(csvs, f)
			continue
		}
		logctx.FromContext(ctx).Info("Skipping incompatible input file",
			slog.String("file", f.DisplayName))
	}
	return csvs
}
