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
	"fmt"
	"regexp"

	"github.com/Azure/azure-kusto-go/kusto/kql"

	"github.com/openrelik/openrelik-worker-kustoingest/internal/csvschema"
)

// Database names end up inside the attach path literal, so they are held to
// a stricter charset than Kusto itself requires.
var validDatabase = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// createMergeCommand builds a ".create-merge table" command for the table
// and inferred schema. create-merge is idempotent: re-running a workflow
// against an existing table extends it instead of failing.
func createMergeCommand(table string, schema *csvschema.Schema) *kql.Builder {
	b := kql.New(".create-merge table ").AddTable(table).AddLiteral(" (")
	for i, col := range schema.Columns {
		if i > 0 {
			b = b.AddLiteral(", ")
		}
		b = addColumnType(b.AddColumn(col.Name).AddLiteral(":"), col.Type)
	}
	return b.AddLiteral(")")
}

func addColumnType(b *kql.Builder, t csvschema.ColumnType) *kql.Builder {
	switch t {
	case csvschema.TypeLong:
		return b.AddLiteral("long")
	case csvschema.TypeReal:
		return b.AddLiteral("real")
	case csvschema.TypeBool:
		return b.AddLiteral("bool")
	case csvschema.TypeDateTime:
		return b.AddLiteral("datetime")
	default:
		return b.AddLiteral("string")
	}
}

// attachDatabaseCommand builds the ".attach database" command that restores
// a database Kustainer lost track of after a restart. The metadata path
// follows the emulator's persistent volume layout: <root>/<database>/md.
func attachDatabaseCommand(database, attachRoot string) (*kql.Builder, error) {
	if !validDatabase.MatchString(database) {
		return nil, fmt.Errorf("database name %q not safe for attach", database)
	}
	b := kql.New(".attach database ").AddUnsafe(database).AddLiteral(" from ")
	b = b.AddUnsafe(fmt.Sprintf("@%q", attachRoot+"/"+database+"/md"))
	return b, nil
}

// enableStreamingPolicyCommand builds the policy command that turns on
// streaming ingestion for the table.
func enableStreamingPolicyCommand(table string) *kql.Builder {
	return kql.New(".alter-merge table ").AddTable(table).
		AddLiteral(" policy streamingingestion ").
		AddLiteral(`'{"IsEnabled":true}'`)
}

// showSchemaCommand builds the ".show table ... schema" command. Running it
// forces the engine to index the table metadata after creation.
func showSchemaCommand(table string) *kql.Builder {
	return kql.New(".show table ").AddTable(table).AddLiteral(" schema as json")
}

// showStreamingPolicyCommand builds the command used to poll whether the
// streaming ingestion policy has taken effect.
func showStreamingPolicyCommand(table string) *kql.Builder {
	return kql.New(".show table ").AddTable(table).AddLiteral(" policy streamingingestion")
}
