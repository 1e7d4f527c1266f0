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

package messages

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task result statuses.
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// FileOutcome summarizes ingestion of one CSV input.
type FileOutcome struct {
	DisplayName  string `json:"display_name"`
	Table        string `json:"table,omitempty"`
	Database     string `json:"database,omitempty"`
	ClusterURI   string `json:"cluster_uri,omitempty"`
	RowCount     int64  `json:"row_count"`
	TotalChunks  int    `json:"total_chunks"`
	FailedChunks []int  `json:"failed_chunks,omitempty"`
	Error        string `json:"error,omitempty"`
}

// TaskResultMessage reports the outcome of one task back to the server.
type TaskResultMessage struct {
	ResultID   uuid.UUID     `json:"result_id"`
	TaskID     string        `json:"task_id"`
	TaskName   string        `json:"task_name,omitempty"`
	WorkflowID string        `json:"workflow_id,omitempty"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Files      []FileOutcome `json:"files,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Marshal converts the message to JSON bytes
func (m *TaskResultMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal converts JSON bytes to TaskResultMessage
func (m *TaskResultMessage) Unmarshal(data []byte) error {
	return json.Unmarshal(data, m)
}
