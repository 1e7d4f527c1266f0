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

package adx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/csvschema"
)

func TestCreateMergeCommand(t *testing.T) {
	schema := &csvschema.Schema{
		Columns: []csvschema.Column{
			{Name: "Id", Type: csvschema.TypeLong},
			{Name: "Name", Type: csvschema.TypeString},
			{Name: "Ratio", Type: csvschema.TypeReal},
			{Name: "Active", Type: csvschema.TypeBool},
			{Name: "CreatedAt", Type: csvschema.TypeDateTime},
		},
	}

	cmd := createMergeCommand("Events", schema)
	assert.Equal(t,
		".create-merge table Events (Id:long, Name:string, Ratio:real, Active:bool, CreatedAt:datetime)",
		cmd.String())
}

func TestCreateMergeCommand_SingleColumn(t *testing.T) {
	schema := &csvschema.Schema{
		Columns: []csvschema.Column{{Name: "Line", Type: csvschema.TypeString}},
	}

	cmd := createMergeCommand("dsMFT_Output", schema)
	assert.Equal(t, ".create-merge table dsMFT_Output (Line:string)", cmd.String())
}

func TestAttachDatabaseCommand(t *testing.T) {
	cmd, err := attachDatabaseCommand("Default", "/data/dbs")
	require.NoError(t, err)
	assert.Equal(t, `.attach database Default from @"/data/dbs/Default/md"`, cmd.String())
}

func TestAttachDatabaseCommand_RejectsUnsafeName(t *testing.T) {
	_, err := attachDatabaseCommand(`bad"name`, "/data/dbs")
	require.Error(t, err)

	_, err = attachDatabaseCommand("name with space", "/data/dbs")
	require.Error(t, err)

	_, err = attachDatabaseCommand("", "/data/dbs")
	require.Error(t, err)
}

func TestEnableStreamingPolicyCommand(t *testing.T) {
	cmd := enableStreamingPolicyCommand("Events")
	assert.Equal(t,
		`.alter-merge table Events policy streamingingestion '{"IsEnabled":true}'`,
		cmd.String())
}

func TestShowCommands(t *testing.T) {
	assert.Equal(t, ".show table Events schema as json", showSchemaCommand("Events").String())
	assert.Equal(t, ".show table Events policy streamingingestion", showStreamingPolicyCommand("Events").String())
}
