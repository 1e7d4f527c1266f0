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

package csvschema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer_TypesFromSample(t *testing.T) {
	input := strings.Join([]string{
		"EntryNumber,Ratio,InUse,Created0x10,Name",
		"42,0.5,true,2023-04-01 12:30:45.1234567,alpha",
		"43,1.25,false,2023-04-02 08:00:00,beta",
		"44,2,TRUE,2023-04-03,gamma",
	}, "\n") + "\n"

	schema, err := Infer(strings.NewReader(input), 0)
	require.NoError(t, err)
	require.Len(t, schema.Columns, 5)

	assert.Equal(t, Column{Name: "EntryNumber", Type: TypeLong}, schema.Columns[0])
	assert.Equal(t, Column{Name: "Ratio", Type: TypeReal}, schema.Columns[1])
	assert.Equal(t, Column{Name: "InUse", Type: TypeBool}, schema.Columns[2])
	assert.Equal(t, Column{Name: "Created0x10", Type: TypeDateTime}, schema.Columns[3])
	assert.Equal(t, Column{Name: "Name", Type: TypeString}, schema.Columns[4])
}

func TestInfer_Promotions(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  ColumnType
	}{
		{name: "long stays long", cells: []string{"1", "2", "3"}, want: TypeLong},
		{name: "long widens to real", cells: []string{"1", "2.5"}, want: TypeReal},
		{name: "real then long stays real", cells: []string{"2.5", "1"}, want: TypeReal},
		{name: "long then text falls to string", cells: []string{"1", "abc"}, want: TypeString},
		{name: "bool then long falls to string", cells: []string{"true", "1"}, want: TypeString},
		{name: "datetime then text falls to string", cells: []string{"2023-04-01", "later"}, want: TypeString},
		{name: "empty cells do not vote", cells: []string{"", "7", ""}, want: TypeLong},
		{name: "no votes defaults to string", cells: []string{"", "", ""}, want: TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "col\n" + strings.Join(tt.cells, "\n") + "\n"
			schema, err := Infer(strings.NewReader(input), 0)
			require.NoError(t, err)
			require.Len(t, schema.Columns, 1)
			assert.Equal(t, tt.want, schema.Columns[0].Type)
		})
	}
}

func TestInfer_SampleLimit(t *testing.T) {
	// The poisoning third row sits past the sample window and must not
	// demote the column.
	input := "n\n1\n2\nnot-a-number\n"

	schema, err := Infer(strings.NewReader(input), 2)
	require.NoError(t, err)
	assert.Equal(t, TypeLong, schema.Columns[0].Type)
}

func TestInfer_HeaderSanitizedAndDeduplicated(t *testing.T) {
	input := "Payload<Data>,id,id,,2nd\nx,1,2,3,4\n"

	schema, err := Infer(strings.NewReader(input), 0)
	require.NoError(t, err)
	require.Len(t, schema.Columns, 5)

	names := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"PayloadltDatagt", "id", "id_2", "_", "_2nd"}, names)
}

func TestInfer_HeaderOnly(t *testing.T) {
	schema, err := Infer(strings.NewReader("a,b\n"), 0)
	require.NoError(t, err)
	require.Len(t, schema.Columns, 2)
	assert.Equal(t, TypeString, schema.Columns[0].Type)
	assert.Equal(t, TypeString, schema.Columns[1].Type)
}

func TestInfer_NoHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "blank line", input: "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Infer(strings.NewReader(tt.input), 0)
			assert.ErrorIs(t, err, ErrNoHeader)
		})
	}
}

func TestInfer_QuotedCommas(t *testing.T) {
	input := "name,notes\nalpha,\"x, y, z\"\n"

	schema, err := Infer(strings.NewReader(input), 0)
	require.NoError(t, err)
	require.Len(t, schema.Columns, 2)
	assert.Equal(t, TypeString, schema.Columns[1].Type)
}

func TestInfer_RaggedRows(t *testing.T) {
	// Short rows leave trailing columns unvoted; long rows must not panic.
	input := "a,b,c\n1\n2,3,4,5\n"

	schema, err := Infer(strings.NewReader(input), 0)
	require.NoError(t, err)
	require.Len(t, schema.Columns, 3)
	assert.Equal(t, TypeLong, schema.Columns[0].Type)
	assert.Equal(t, TypeLong, schema.Columns[1].Type)
	assert.Equal(t, TypeLong, schema.Columns[2].Type)
}
