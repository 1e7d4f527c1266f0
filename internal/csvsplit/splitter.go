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

// Package csvsplit slices a CSV stream into byte-bounded, row-aligned chunks.
// Lines are carried verbatim, so concatenating the data rows of every chunk
// reproduces the input exactly; the header line is re-prepended to each chunk
// after the first so every chunk is independently valid CSV.
package csvsplit

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxChunkBytes is the chunk budget used when none is configured,
// sized to the streaming ingestion per-request limit.
const DefaultMaxChunkBytes int64 = 10_000_000

// ErrNoHeader indicates the input was empty or its first line was blank.
var ErrNoHeader = errors.New("csv input has no header line")

// Chunk is one row-aligned slice of the input. Seq is 0-based and strictly
// increasing. RowCount counts data rows only; it is zero only for the single
// chunk produced from a header-only input.
type Chunk struct {
	Seq      int
	Data     []byte
	RowCount int
}

// Splitter yields chunks from a CSV stream in order. It does not own the
// underlying reader; the caller closes it after the last Next call.
type Splitter struct {
	r             *bufio.Reader
	maxChunkBytes int64

	header     []byte // first line; ends with a newline whenever data rows exist
	next       []byte // lookahead line, nil once the input is exhausted
	seq        int
	emittedAny bool
}

// NewSplitter reads the header line and primes the first data row. It fails
// with ErrNoHeader if the input is empty or starts with a blank line.
func NewSplitter(r io.Reader, maxChunkBytes int64) (*Splitter, error) {
	if maxChunkBytes <= 0 {
		maxChunkBytes = DefaultMaxChunkBytes
	}

	s := &Splitter{
		r:             bufio.NewReaderSize(r, 64*1024),
		maxChunkBytes: maxChunkBytes,
	}

	header, err := s.r.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(bytes.TrimSpace(header)) == 0 {
		return nil, ErrNoHeader
	}
	s.header = header

	if err := s.advance(); err != nil {
		return nil, fmt.Errorf("failed to read first CSV row: %w", err)
	}
	return s, nil
}

// Next returns the next chunk, or io.EOF after the last one. A chunk closes
// when the following row would push it past the byte budget; a single row
// larger than the budget becomes its own over-budget chunk since rows are
// never split.
func (s *Splitter) Next() (*Chunk, error) {
	if s.next == nil {
		if !s.emittedAny {
			// Header-only input: the whole file is one chunk with no data rows.
			s.emittedAny = true
			return &Chunk{Seq: 0, Data: s.header, RowCount: 0}, nil
		}
		return nil, io.EOF
	}

	buf := make([]byte, 0, min(s.maxChunkBytes, int64(len(s.header)+len(s.next))))
	buf = append(buf, s.header...)

	rows := 0
	for s.next != nil {
		if rows > 0 && int64(len(buf)+len(s.next)) > s.maxChunkBytes {
			break
		}
		buf = append(buf, s.next...)
		rows++
		if err := s.advance(); err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
	}

	c := &Chunk{Seq: s.seq, Data: buf, RowCount: rows}
	s.seq++
	s.emittedAny = true
	return c, nil
}

// advance moves the lookahead to the next line, setting it to nil at EOF.
// The final line of input may lack a newline; it is carried as-is.
func (s *Splitter) advance() error {
	line, err := s.r.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return err
	}
	if len(line) == 0 {
		s.next = nil
		return nil
	}
	s.next = line
	return nil
}
