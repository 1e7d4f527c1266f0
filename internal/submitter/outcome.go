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

package submitter

import "errors"

// Failure taxonomy for a submission run. FileUnreadable, MalformedInput and
// TableCreationFailed are fatal for the run; IngestionRejected is recorded
// per chunk and only fails the run when no chunk succeeds.
var (
	ErrFileUnreadable      = errors.New("file unreadable")
	ErrMalformedInput      = errors.New("malformed csv input")
	ErrTableCreationFailed = errors.New("table creation failed")
	ErrIngestionRejected   = errors.New("ingestion rejected")
)

// ErrTargetUnusable marks client errors that mean the target itself is gone
// (database or table missing, bad endpoint). The submitter stops submitting
// remaining chunks when it sees one; a transient chunk failure does not.
var ErrTargetUnusable = errors.New("ingestion target unusable")

// Target is the (cluster, database, table) triple a run ingests into.
// Immutable once resolved.
type Target struct {
	ClusterURI string
	Database   string
	Table      string
}

// Outcome records one chunk submission attempt.
type Outcome struct {
	ChunkSeq int
	RowCount int
	Bytes    int
	Err      error
}

// Succeeded reports whether the chunk was accepted.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Summary aggregates the ordered chunk outcomes of one file submission.
// Aborted is set when the target became unusable mid-run and the remaining
// chunks were never attempted.
type Summary struct {
	Target   Target
	Outcomes []Outcome
	Aborted  bool
}

// Succeeded reports whether every attempted chunk was accepted and none were
// skipped.
func (s *Summary) Succeeded() bool {
	if s.Aborted || len(s.Outcomes) == 0 {
		return false
	}
	for _, o := range s.Outcomes {
		if !o.Succeeded() {
			return false
		}
	}
	return true
}

// FailedChunks returns the sequence numbers of rejected chunks, in order.
func (s *Summary) FailedChunks() []int {
	var failed []int
	for _, o := range s.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o.ChunkSeq)
		}
	}
	return failed
}

// RowsIngested counts the data rows of accepted chunks.
func (s *Summary) RowsIngested() int {
	rows := 0
	for _, o := range s.Outcomes {
		if o.Succeeded() {
			rows += o.RowCount
		}
	}
	return rows
}

// BytesIngested counts the bytes of accepted chunks, headers included.
func (s *Summary) BytesIngested() int64 {
	var n int64
	for _, o := range s.Outcomes {
		if o.Succeeded() {
			n += int64(o.Bytes)
		}
	}
	return n
}
