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
	"github.com/openrelik/openrelik-worker-kustoingest/internal/adx"
	"github.com/openrelik/openrelik-worker-kustoingest/internal/submitter"
)

// adxProvider adapts the ADX factory's concrete return type to the
// worker's provider interface.
type adxProvider struct {
	factory *adx.Factory
}

func (p *adxProvider) Ingestor(clusterURI, database string) (submitter.Ingestor, error) {
	return p.factory.Ingestor(clusterURI, database)
}
