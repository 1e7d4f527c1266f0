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

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openrelik/openrelik-worker-kustoingest/config"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/adx"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/submitter"
)

var (
	ingestFile          string
	ingestCluster       string
	ingestDatabase      string
	ingestTable         string
	ingestMaxChunkBytes int64
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one CSV file without the task queue",
		Long: `Ingest a single CSV file into a Kusto table directly, bypassing the
task queue. Useful for verifying cluster connectivity and for ad hoc loads.`,
		RunE: runIngest,
	}

	cmd.Flags().StringVar(&ingestFile, "file", "", "Path of the CSV file to ingest")
	cmd.Flags().StringVar(&ingestCluster, "cluster", "", "Cluster URI (defaults to the configured cluster)")
	cmd.Flags().StringVar(&ingestDatabase, "database", "", "Target database (defaults to the configured database)")
	cmd.Flags().StringVar(&ingestTable, "table", "", "Target table (defaults to a name derived from the file name)")
	cmd.Flags().Int64Var(&ingestMaxChunkBytes, "max-chunk-bytes", 0, "Largest chunk submitted in one request (defaults to the configured budget)")
	_ = cmd.MarkFlagRequired("file")

	rootCmd.AddCommand(cmd)
}

func runIngest(_ *cobra.Command, _ []string) error {
	ctx, doneFx, err := setupTelemetry("openrelik-worker-kustoingest")
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	target := submitter.Target{
		ClusterURI: cfg.Kusto.ClusterURI,
		Database:   cfg.Kusto.Database,
		Table:      ingestTable,
	}
	if ingestCluster != "" {
		target.ClusterURI = ingestCluster
	}
	if ingestDatabase != "" {
		target.Database = ingestDatabase
	}

	maxChunkBytes := cfg.Worker.MaxChunkBytes
	if ingestMaxChunkBytes > 0 {
		maxChunkBytes = ingestMaxChunkBytes
	}

	adxFactory := adx.NewFactory(&cfg.Kusto)
	defer func() { _ = adxFactory.Close() }()

	ing, err := adxFactory.Ingestor(target.ClusterURI, target.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", target.ClusterURI, err)
	}

	sub := submitter.New(ing,
		submitter.WithMaxChunkBytes(maxChunkBytes),
		submitter.WithSampleRows(cfg.Worker.SampleRows))

	summary, err := sub.Submit(ctx, ingestFile, target)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	slog.Info("Ingestion finished",
		slog.String("table", summary.Target.Table),
		slog.Int("chunks", len(summary.Outcomes)),
		slog.Int("rows", summary.RowsIngested()),
		slog.Int64("bytes", summary.BytesIngested()))

	if failed := summary.FailedChunks(); len(failed) > 0 {
		return fmt.Errorf("%d of %d chunks were rejected", len(failed), len(summary.Outcomes))
	}
	return nil
}
