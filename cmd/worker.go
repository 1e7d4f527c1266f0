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
	"github.com/openrelik/openrelik-worker-kustoingest/internal/healthcheck"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/submitter"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/taskqueue"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/worker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume ingestion tasks from the queue",
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "openrelik-worker-kustoingest"
			ctx, doneFx, err := setupTelemetry(servicename)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}

			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			// Start health check server
			healthConfig := healthcheck.GetConfigFromEnv()
			healthServer := healthcheck.NewServer(healthConfig)

			go func() {
				if err := healthServer.Start(ctx); err != nil {
					slog.Error("Health check server stopped", slog.Any("error", err))
				}
			}()

			// Get main config
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			topics := config.NewTopicRegistry(cfg.Kafka.TopicPrefix)

			kafkaFactory := taskqueue.NewFactory(&cfg.Kafka)
			consumer, err := kafkaFactory.CreateConsumer(
				topics.GetTopic(config.TopicIngestTasks),
				topics.GetConsumerGroup(config.TopicIngestTasks))
			if err != nil {
				return fmt.Errorf("failed to create Kafka consumer: %w", err)
			}
			producer, err := kafkaFactory.CreateProducer()
			if err != nil {
				_ = consumer.Close()
				return fmt.Errorf("failed to create Kafka producer: %w", err)
			}

			adxFactory := adx.NewFactory(&cfg.Kusto)
			defer func() { _ = adxFactory.Close() }()

			w := worker.New(&adxProvider{factory: adxFactory}, submitter.Target{
				ClusterURI: cfg.Kusto.ClusterURI,
				Database:   cfg.Kusto.Database,
			}, &cfg.Worker)

			svc := worker.NewService(w, consumer, producer, topics.GetTopic(config.TopicTaskResults))
			defer func() { _ = svc.Close() }()

			healthServer.SetStatus(healthcheck.StatusHealthy)
			healthServer.SetReady(true)

			return svc.Run(ctx)
		},
	}

	rootCmd.AddCommand(cmd)
}
