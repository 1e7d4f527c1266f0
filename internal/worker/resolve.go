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
	"log/slog"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/logctx"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/runconfig"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/submitter"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/taskqueue/messages"
)

// resolveTarget determines the cluster and database for a task. Worker
// defaults are overridden by a sidecar file shipped with the inputs, which
// in turn is overridden by per-task config. The returned target has no
// table; that is chosen per input file.
func (w *Worker) resolveTarget(ctx context.Context, inputs []messages.InputFile, overrides map[string]string) submitter.Target {
	target := submitter.Target{
		ClusterURI: w.defaults.ClusterURI,
		Database:   w.defaults.Database,
	}

	if sidecar := findSidecar(ctx, inputs); sidecar != nil {
		if sidecar.ClusterURI != "" {
			target.ClusterURI = sidecar.ClusterURI
		}
		if sidecar.Database != "" {
			target.Database = sidecar.Database
		}
	}

	if v := overrides[ConfigKeyConnectionOverride]; v != "" {
		target.ClusterURI = v
	}
	if v := overrides[ConfigKeyDatabaseOverride]; v != "" {
		target.Database = v
	}
	return target
}

// findSidecar loads the sidecar config when the inputs include one. An
// unreadable or malformed sidecar is logged and skipped so a stray file
// cannot take down the task.
func findSidecar(ctx context.Context, inputs []messages.InputFile) *runconfig.Config {
	for _, f := range inputs {
		if f.DisplayName != runconfig.FileName {
			continue
		}
		cfg, err := runconfig.Load(f.Path)
		if err != nil {
			logctx.FromContext(ctx).Warn("Ignoring unusable sidecar config",
				slog.String("path", f.Path),
				slog.Any("error", err))
			return nil
		}
		return cfg
	}
	return nil
}
