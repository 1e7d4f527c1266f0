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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/logctx"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/taskqueue"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/taskqueue/messages"
)

// Service runs the Worker against the task queue: it consumes task
// messages, hands each one to the Worker, and publishes the result.
type Service struct {
	worker      *Worker
	consumer    taskqueue.Consumer
	producer    taskqueue.Producer
	resultTopic string
}

// NewService wires a Worker to its queue endpoints.
func NewService(w *Worker, consumer taskqueue.Consumer, producer taskqueue.Producer, resultTopic string) *Service {
	return &Service{
		worker:      w,
		consumer:    consumer,
		producer:    producer,
		resultTopic: resultTopic,
	}
}

// Run consumes tasks until ctx is cancelled. Transient consume errors are
// logged and retried after a short pause rather than tearing the service
// down.
func (s *Service) Run(ctx context.Context) error {
	ll := logctx.FromContext(ctx)
	ll.Info("Starting task consumer", slog.String("resultTopic", s.resultTopic))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := s.consumer.Consume(ctx, func(ctx context.Context, msgs []taskqueue.ConsumedMessage) error {
			return s.handleBatch(ctx, msgs)
		})

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			ll.Error("Failed to consume tasks", slog.Any("error", err))
			time.Sleep(5 * time.Second)
			continue
		}
	}
}

// handleBatch processes consumed messages one at a time so a slow
// ingestion never delays acknowledging its batch-mates. An error aborts
// the batch before commit; the whole batch is then redelivered.
func (s *Service) handleBatch(ctx context.Context, msgs []taskqueue.ConsumedMessage) error {
	for _, msg := range msgs {
		if err := s.handleMessage(ctx, msg); err != nil {
			return fmt.Errorf("failed to handle task at %s[%d]@%d: %w",
				msg.Topic, msg.Partition, msg.Offset, err)
		}
	}
	return nil
}

// handleMessage runs one task and publishes its result. Undecodable
// messages are dropped with a log entry so a poison message cannot wedge
// the partition; only result publication failures block the commit.
func (s *Service) handleMessage(ctx context.Context, msg taskqueue.ConsumedMessage) error {
	ll := logctx.FromContext(ctx)

	task := &messages.TaskMessage{}
	if err := task.Unmarshal(msg.Value); err != nil {
		ll.Error("Dropping undecodable task message",
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Any("error", err))
		return nil
	}
	if err := task.Validate(); err != nil {
		ll.Error("Dropping invalid task message",
			slog.String("taskID", task.TaskID),
			slog.Any("error", err))
		return nil
	}

	ctx = logctx.WithLogger(ctx, ll.With(
		slog.String("taskID", task.TaskID),
		slog.String("workflowID", task.WorkflowID)))

	result := s.worker.HandleTask(ctx, task)

	payload, err := result.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal task result: %w", err)
	}
	if err := s.producer.Send(ctx, s.resultTopic, taskqueue.Message{
		Key:   []byte(task.WorkflowID),
		Value: payload,
		Headers: map[string]string{
			"task_name": TaskName,
		},
	}); err != nil {
		return fmt.Errorf("failed to publish task result: %w", err)
	}
	return nil
}

// Close shuts down the queue endpoints, consumer first so no new tasks
// arrive while the producer drains.
func (s *Service) Close() error {
	var firstErr error
	if err := s.consumer.Close(); err != nil {
		firstErr = err
	}
	if err := s.producer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
