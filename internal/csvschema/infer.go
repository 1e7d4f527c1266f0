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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultSampleRows bounds how many data rows inference examines.
const DefaultSampleRows = 1000

// ErrNoHeader indicates the input was empty or its header row had no cells.
var ErrNoHeader = errors.New("csv input has no header row")

// ColumnType is a Kusto scalar type name.
type ColumnType string

const (
	TypeLong     ColumnType = "long"
	TypeReal     ColumnType = "real"
	TypeBool     ColumnType = "bool"
	TypeDateTime ColumnType = "datetime"
	TypeString   ColumnType = "string"
)

// Column pairs a sanitized column name with its inferred type.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered column set for a table, matching the CSV header order.
type Schema struct {
	Columns []Column
}

// timeLayouts are the timestamp shapes seen in forensic tool CSV output.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.9999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Infer reads the header and up to sampleRows data rows and produces the
// table schema: sanitized, de-duplicated column names with types voted from
// the sampled cells. Columns with no usable cells default to string.
func Infer(r io.Reader, sampleRows int) (*Schema, error) {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	names := columnNames(header)
	if len(names) == 0 {
		return nil, ErrNoHeader
	}

	types := make([]ColumnType, len(names))
	for sampled := 0; sampled < sampleRows; sampled++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		for i := 0; i < len(types) && i < len(record); i++ {
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue
			}
			types[i] = promote(types[i], detect(cell))
		}
	}

	cols := make([]Column, len(names))
	for i, name := range names {
		t := types[i]
		if t == "" {
			t = TypeString
		}
		cols[i] = Column{Name: name, Type: t}
	}
	return &Schema{Columns: cols}, nil
}

// columnNames sanitizes header cells and de-duplicates collisions by
// appending the column position. An all-empty header yields nil.
func columnNames(header []string) []string {
	allEmpty := true
	for _, h := range header {
		if strings.TrimSpace(h) != "" {
			allEmpty = false
			break
		}
	}
	if allEmpty {
		return nil
	}

	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := SanitizeColumnName(strings.TrimSpace(h))
		if seen[name] {
			name = name + "_" + strconv.Itoa(i)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// detect classifies one cell value. Order matters: "1" must read as long,
// not bool, and anything numeric must win before the datetime layouts run.
func detect(cell string) ColumnType {
	if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return TypeLong
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		return TypeReal
	}
	switch strings.ToLower(cell) {
	case "true", "false":
		return TypeBool
	}
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, cell); err == nil {
			return TypeDateTime
		}
	}
	return TypeString
}

// promote merges a new vote into the running column type. Longs widen to
// real when mixed with reals; any other disagreement lands on string.
func promote(current, vote ColumnType) ColumnType {
	switch {
	case current == "" || current == vote:
		return vote
	case (current == TypeLong && vote == TypeReal) || (current == TypeReal && vote == TypeLong):
		return TypeReal
	default:
		return TypeString
	}
}
