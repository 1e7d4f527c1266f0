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

// Package messages defines the task and result payloads exchanged over the
// task queue.
package messages

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// InputFile describes one file handed to a task. Paths point into the
// shared evidence volume; DisplayName is the user-visible basename.
type InputFile struct {
	UUID        string `json:"uuid,omitempty"`
	DisplayName string `json:"display_name"`
	Path        string `json:"path"`
	DataType    string `json:"data_type,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

// TaskMessage represents a queued ingestion task.
type TaskMessage struct {
	TaskID     string            `json:"task_id"`
	TaskName   string            `json:"task_name,omitempty"`
	WorkflowID string            `json:"workflow_id,omitempty"`
	PipeResult string            `json:"pipe_result,omitempty"`
	InputFiles []InputFile       `json:"input_files,omitempty"`
	OutputPath string            `json:"output_path,omitempty"`
	TaskConfig map[string]string `json:"task_config,omitempty"`
}

// Marshal converts the message to JSON bytes
func (m *TaskMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal converts JSON bytes to TaskMessage
func (m *TaskMessage) Unmarshal(data []byte) error {
	return json.Unmarshal(data, m)
}

// Validate checks that the message carries enough to run a task.
func (m *TaskMessage) Validate() error {
	if m.TaskID == "" {
		return errors.New("task message missing task_id")
	}
	for i, f := range m.InputFiles {
		if f.Path == "" {
			return fmt.Errorf("input file %d missing path", i)
		}
		if f.DisplayName == "" {
			return fmt.Errorf("input file %d missing display_name", i)
		}
	}
	return nil
}

// pipedResult is the portion of an upstream task result this worker cares
// about. The full result travels base64-encoded so it can be chained
// through queue backends that mangle raw JSON.
type pipedResult struct {
	OutputFiles []InputFile `json:"output_files"`
}

// ResolveInputFiles returns the files this task should process. When the
// task was chained behind another one, the previous task's output files
// take precedence over the statically configured inputs.
func (m *TaskMessage) ResolveInputFiles() ([]InputFile, error) {
	if m.PipeResult == "" {
		return m.InputFiles, nil
	}
	raw, err := base64.StdEncoding.DecodeString(m.PipeResult)
	if err != nil {
		return nil, fmt.Errorf("invalid pipe_result: %w", err)
	}
	var prev pipedResult
	if err := json.Unmarshal(raw, &prev); err != nil {
		return nil, fmt.Errorf("invalid pipe_result: %w", err)
	}
	return prev.OutputFiles, nil
}
