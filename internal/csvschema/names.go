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
	"path/filepath"
	"strings"
)

// TableName derives a Kusto table name from a source file name: the base name
// with its extension stripped, sanitized. Forensic tool outputs commonly start
// with "$" (e.g. $MFT_Output.csv), which maps to the "ds" prefix.
func TableName(fileName string) string {
	base := filepath.Base(fileName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return SanitizeTableName(stem)
}

// SanitizeTableName replaces "$" with "ds" and any other character outside
// [A-Za-z0-9_] with "_".
func SanitizeTableName(name string) string {
	name = strings.ReplaceAll(name, "$", "ds")
	return replaceInvalid(name)
}

// SanitizeColumnName replaces "<" with "lt" and ">" with "gt", maps any other
// character outside [A-Za-z0-9_] to "_", and prefixes "_" when the result
// starts with a digit. An empty cell sanitizes to "_".
func SanitizeColumnName(name string) string {
	name = strings.ReplaceAll(name, "<", "lt")
	name = strings.ReplaceAll(name, ">", "gt")
	name = replaceInvalid(name)
	if name == "" {
		return "_"
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "_" + name
	}
	return name
}

func replaceInvalid(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
