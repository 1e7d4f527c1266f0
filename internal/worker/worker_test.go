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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/csvschema"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/runconfig"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/submitter"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/taskqueue/messages"
)

// fakeIngestor accepts every chunk unless told to fail a table.
type fakeIngestor struct {
	ensured     []string
	ingestCalls map[string]int
	failTable   map[string]error // every chunk for the table fails
	failFirst   map[string]error // only the table's first chunk fails
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{
		ingestCalls: make(map[string]int),
		failTable:   make(map[string]error),
		failFirst:   make(map[string]error),
	}
}

func (f *fakeIngestor) EnsureTable(_ context.Context, table string, _ *csvschema.Schema) error {
	f.ensured = append(f.ensured, table)
	return nil
}

func (f *fakeIngestor) IngestStream(_ context.Context, table string, r io.Reader, _ int64) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	n := f.ingestCalls[table]
	f.ingestCalls[table] = n + 1
	if err, ok := f.failTable[table]; ok {
		return err
	}
	if err, ok := f.failFirst[table]; ok && n == 0 {
		return err
	}
	return nil
}

// fakeProvider records the targets it was asked for.
type fakeProvider struct {
	ingestor *fakeIngestor
	err      error
	clusters []string
	dbs      []string
}

func (f *fakeProvider) Ingestor(clusterURI, database string) (submitter.Ingestor, error) {
	f.clusters = append(f.clusters, clusterURI)
	f.dbs = append(f.dbs, database)
	if f.err != nil {
		return nil, f.err
	}
	return f.ingestor, nil
}

func writeInput(t *testing.T, name, content string) messages.InputFile {
	t.Helper()
	// Input paths on the shared volume carry no extension or readable name.
	path := filepath.Join(t.TempDir(), "f0a49c2e")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return messages.InputFile{DisplayName: name, Path: path}
}

func encodePipeResult(t *testing.T, files ...messages.InputFile) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"output_files": files})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func testDefaults() submitter.Target {
	return submitter.Target{ClusterURI: "http://localhost:8080", Database: "Default"}
}

func newTestWorker(provider IngestorProvider, cfg *Config) *Worker {
	return New(provider, testDefaults(), cfg)
}

func TestHandleTask_Success(t *testing.T) {
	provider := &fakeProvider{ingestor: newFakeIngestor()}
	w := newTestWorker(provider, nil)

	task := &messages.TaskMessage{
		TaskID:     "task-1",
		WorkflowID: "wf-1",
		InputFiles: []messages.InputFile{
			writeInput(t, "events.csv", "id,name\n1,alpha\n2,beta\n"),
			writeInput(t, "logons.csv", "id\n1\n"),
		},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusSucceeded, result.Status)
	assert.Empty(t, result.Error)
	assert.Equal(t, "task-1", result.TaskID)
	assert.Equal(t, "wf-1", result.WorkflowID)
	assert.Equal(t, TaskName, result.TaskName)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))

	require.Len(t, result.Files, 2)
	assert.Equal(t, "events", result.Files[0].Table)
	assert.Equal(t, int64(2), result.Files[0].RowCount)
	assert.Equal(t, 1, result.Files[0].TotalChunks)
	assert.Empty(t, result.Files[0].FailedChunks)
	assert.Equal(t, "logons", result.Files[1].Table)

	assert.Equal(t, []string{"http://localhost:8080"}, provider.clusters)
	assert.Equal(t, []string{"Default"}, provider.dbs)
	assert.Equal(t, []string{"events", "logons"}, provider.ingestor.ensured)
}

func TestHandleTask_TableFromDisplayNameNotPath(t *testing.T) {
	provider := &fakeProvider{ingestor: newFakeIngestor()}
	w := newTestWorker(provider, nil)

	task := &messages.TaskMessage{
		TaskID:     "task-1",
		InputFiles: []messages.InputFile{writeInput(t, "$MFT_Output.csv", "id\n1\n")},
	}

	result := w.HandleTask(context.Background(), task)

	require.Equal(t, messages.StatusSucceeded, result.Status)
	assert.Equal(t, []string{"dsMFT_Output"}, provider.ingestor.ensured)
	assert.Equal(t, "dsMFT_Output", result.Files[0].Table)
}

func TestHandleTask_SkipsIncompatibleInputs(t *testing.T) {
	provider := &fakeProvider{ingestor: newFakeIngestor()}
	w := newTestWorker(provider, nil)

	task := &messages.TaskMessage{
		TaskID: "task-1",
		InputFiles: []messages.InputFile{
			writeInput(t, "report.pdf", "%PDF"),
			writeInput(t, "events.csv", "id\n1\n"),
		},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusSucceeded, result.Status)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "events.csv", result.Files[0].DisplayName)
}

func TestHandleTask_NoCompatibleInputs(t *testing.T) {
	provider := &fakeProvider{ingestor: newFakeIngestor()}
	w := newTestWorker(provider, nil)

	task := &messages.TaskMessage{
		TaskID:     "task-1",
		InputFiles: []messages.InputFile{writeInput(t, "report.pdf", "%PDF")},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "no compatible CSV")
	assert.Empty(t, result.Files)
	assert.Empty(t, provider.clusters, "no connection attempted without inputs")
}

func TestHandleTask_InvalidPipeResult(t *testing.T) {
	provider := &fakeProvider{ingestor: newFakeIngestor()}
	w := newTestWorker(provider, nil)

	task := &messages.TaskMessage{
		TaskID:     "task-1",
		PipeResult: "%%% not base64 %%%",
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "pipe_result")
}

func TestHandleTask_SidecarOverridesDefaults(t *testing.T) {
	provider := &fakeProvider{ingestor: newFakeIngestor()}
	w := newTestWorker(provider, nil)

	sidecar := writeInput(t, runconfig.FileName,
		"openrelik-kusto-cluster-uri: https://cases.kusto.windows.net\nopenrelik-kusto-database: Cases\n")
	task := &messages.TaskMessage{
		TaskID: "task-1",
		InputFiles: []messages.InputFile{
			sidecar,
			writeInput(t, "events.csv", "id\n1\n"),
		},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusSucceeded, result.Status)
	assert.Equal(t, []string{"https://cases.kusto.windows.net"}, provider.clusters)
	assert.Equal(t, []string{"Cases"}, provider.dbs)
	require.Len(t, result.Files, 1, "sidecar itself must not be ingested")
	assert.Equal(t, "Cases", result.Files[0].Database)
}

func TestHandleTask_TaskConfigOverridesSidecar(t *testing.T) {
	provider := &fakeProvider{ingestor: newFakeIngestor()}
	w := newTestWorker(provider, nil)

	sidecar := writeInput(t, runconfig.FileName, "openrelik-kusto-database: Cases\n")
	task := &messages.TaskMessage{
		TaskID: "task-1",
		InputFiles: []messages.InputFile{
			sidecar,
			writeInput(t, "events.csv", "id\n1\n"),
		},
		TaskConfig: map[string]string{
			ConfigKeyConnectionOverride: "https://override.kusto.windows.net",
			ConfigKeyDatabaseOverride:   "Override",
		},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusSucceeded, result.Status)
	assert.Equal(t, []string{"https://override.kusto.windows.net"}, provider.clusters)
	assert.Equal(t, []string{"Override"}, provider.dbs)
}

func TestHandleTask_BrokenSidecarIgnored(t *testing.T) {
	provider := &fakeProvider{ingestor: newFakeIngestor()}
	w := newTestWorker(provider, nil)

	sidecar := writeInput(t, runconfig.FileName, "openrelik-kusto-database: [unclosed")
	task := &messages.TaskMessage{
		TaskID: "task-1",
		InputFiles: []messages.InputFile{
			sidecar,
			writeInput(t, "events.csv", "id\n1\n"),
		},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusSucceeded, result.Status)
	assert.Equal(t, []string{"http://localhost:8080"}, provider.clusters, "worker defaults apply when the sidecar is unusable")
}

func TestHandleTask_ProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("no such cluster")}
	w := newTestWorker(provider, nil)

	task := &messages.TaskMessage{
		TaskID:     "task-1",
		InputFiles: []messages.InputFile{writeInput(t, "events.csv", "id\n1\n")},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "no such cluster")
	assert.Contains(t, result.Error, "http://localhost:8080")
}

func TestHandleTask_OneFileFailedIsPartial(t *testing.T) {
	ingestor := newFakeIngestor()
	ingestor.failTable["doomed"] = errors.New("throttled")
	provider := &fakeProvider{ingestor: ingestor}
	w := newTestWorker(provider, nil)

	task := &messages.TaskMessage{
		TaskID: "task-1",
		InputFiles: []messages.InputFile{
			writeInput(t, "events.csv", "id\n1\n"),
			writeInput(t, "doomed.csv", "id\n1\n"),
		},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusPartial, result.Status)
	assert.Empty(t, result.Error, "task error is reserved for whole-task failure")
	require.Len(t, result.Files, 2)
	assert.Empty(t, result.Files[0].Error)
	assert.NotEmpty(t, result.Files[1].Error)
	assert.Equal(t, []int{0}, result.Files[1].FailedChunks)
}

func TestHandleTask_AllFilesFailed(t *testing.T) {
	ingestor := newFakeIngestor()
	ingestor.failTable["events"] = errors.New("boom")
	ingestor.failTable["logons"] = errors.New("boom")
	provider := &fakeProvider{ingestor: ingestor}
	w := newTestWorker(provider, nil)

	task := &messages.TaskMessage{
		TaskID: "task-1",
		InputFiles: []messages.InputFile{
			writeInput(t, "events.csv", "id\n1\n"),
			writeInput(t, "logons.csv", "id\n1\n"),
		},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "events.csv")
	assert.Contains(t, result.Error, "logons.csv")
	require.Len(t, result.Files, 2)
}

func TestHandleTask_FailedChunksArePartial(t *testing.T) {
	header := "id,value\n"
	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < 9; i++ {
		fmt.Fprintf(&b, "%d,aaaaaa\n", i)
	}

	ingestor := newFakeIngestor()
	ingestor.failFirst["big"] = errors.New("throttled")
	provider := &fakeProvider{ingestor: ingestor}
	w := newTestWorker(provider, &Config{MaxChunkBytes: 36, SampleRows: 100})

	task := &messages.TaskMessage{
		TaskID:     "task-1",
		InputFiles: []messages.InputFile{writeInput(t, "big.csv", b.String())},
	}

	result := w.HandleTask(context.Background(), task)

	assert.Equal(t, messages.StatusPartial, result.Status)
	require.Len(t, result.Files, 1)
	assert.Equal(t, 3, result.Files[0].TotalChunks)
	assert.Equal(t, []int{0}, result.Files[0].FailedChunks)
	assert.Equal(t, int64(6), result.Files[0].RowCount)
	assert.Empty(t, result.Files[0].Error, "a partially ingested file is not a failed file")
}

func TestHandleTask_PipedInputs(t *testing.T) {
	provider := &fakeProvider{ingestor: newFakeIngestor()}
	w := newTestWorker(provider, nil)

	piped := writeInput(t, "upstream.csv", "id\n1\n")
	task := &messages.TaskMessage{
		TaskID:     "task-1",
		PipeResult: encodePipeResult(t, piped),
		InputFiles: []messages.InputFile{writeInput(t, "stale.csv", "id\n1\n")},
	}

	result := w.HandleTask(context.Background(), task)

	require.Equal(t, messages.StatusSucceeded, result.Status)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "upstream.csv", result.Files[0].DisplayName, "piped outputs replace static inputs")
}

func TestStatusFor(t *testing.T) {
	clean := messages.FileOutcome{}
	chunked := messages.FileOutcome{FailedChunks: []int{2}}
	failed := messages.FileOutcome{Error: "boom"}

	assert.Equal(t, messages.StatusSucceeded, statusFor([]messages.FileOutcome{clean, clean}, 0))
	assert.Equal(t, messages.StatusPartial, statusFor([]messages.FileOutcome{clean, chunked}, 0))
	assert.Equal(t, messages.StatusPartial, statusFor([]messages.FileOutcome{clean, failed}, 1))
	assert.Equal(t, messages.StatusFailed, statusFor([]messages.FileOutcome{failed, failed}, 2))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, int64(10_000_000), cfg.MaxChunkBytes)
	assert.Equal(t, 1000, cfg.SampleRows)
}
