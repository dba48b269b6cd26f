package parse

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/spkg/bom"
)

// Options control row-level failure handling and unknown-column
// retention for all table parsers.
type Options struct {
	// Strict surfaces the first row-level failure as an error. The
	// default (lenient) mode skips the offending row and records a
	// RowError on the table's info.
	Strict bool

	// RoundTrip retains unknown columns on each record's Extras map
	// so a later write can reproduce them. Off by default; unknown
	// columns are discarded.
	RoundTrip bool
}

// RowError describes a row- or field-level failure in one CSV table.
type RowError struct {
	File   string
	Line   int
	Column string
	Reason string
}

func (e *RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// TableInfo carries the byproducts of parsing one table: the header
// exactly as it appeared in the file, the columns that matched no known
// field, and the diagnostics accumulated in lenient mode.
type TableInfo struct {
	File         string
	Header       []string
	ExtraColumns []string
	Warnings     []RowError
}

// tableReader adapts encoding/csv for gocsv. It strips a leading BOM,
// normalizes the header row (trimmed, lowercased) while preserving the
// verbatim form, skips rows whose field count does not match the
// header, and records the line number and raw fields of every row it
// hands out.
type tableReader struct {
	file       string
	r          *csv.Reader
	headerRead bool
	rawHeader  []string
	normHeader []string
	arity      int
	lines      []int
	raws       [][]string
	keepRaw    bool
	warnings   []RowError
}

func newTableReader(file string, data io.Reader, keepRaw bool) *tableReader {
	cr := csv.NewReader(bom.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &tableReader{file: file, r: cr, keepRaw: keepRaw}
}

func (t *tableReader) Read() ([]string, error) {
	for {
		rec, err := t.r.Read()
		if err != nil {
			return nil, err
		}

		if !t.headerRead {
			t.headerRead = true
			t.rawHeader = append([]string{}, rec...)
			t.arity = len(rec)
			t.normHeader = make([]string, len(rec))
			for i, h := range rec {
				t.normHeader[i] = strings.ToLower(strings.TrimSpace(h))
			}
			return t.normHeader, nil
		}

		line, _ := t.r.FieldPos(0)

		if len(rec) != t.arity {
			t.warnings = append(t.warnings, RowError{
				File:   t.file,
				Line:   line,
				Reason: fmt.Sprintf("expected %d fields, found %d", t.arity, len(rec)),
			})
			continue
		}

		t.lines = append(t.lines, line)
		if t.keepRaw {
			t.raws = append(t.raws, append([]string{}, rec...))
		}
		return rec, nil
	}
}

func (t *tableReader) ReadAll() ([][]string, error) {
	rows := [][]string{}
	for {
		rec, err := t.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}

// line returns the source line of the i-th data row handed out.
func (t *tableReader) line(i int) int {
	if i < 0 || i >= len(t.lines) {
		return 0
	}
	return t.lines[i]
}

// extras builds the unknown-column map for the i-th data row, keyed by
// the verbatim header name. Returns nil when raw capture is off or the
// row has no unknown values.
func (t *tableReader) extras(i int, known map[string]bool) map[string]string {
	if !t.keepRaw || i >= len(t.raws) {
		return nil
	}
	var m map[string]string
	for j, norm := range t.normHeader {
		if known[norm] {
			continue
		}
		if m == nil {
			m = map[string]string{}
		}
		m[t.rawHeader[j]] = t.raws[i][j]
	}
	return m
}

// info finalizes the TableInfo once all rows have been consumed.
func (t *tableReader) info(known map[string]bool) *TableInfo {
	info := &TableInfo{
		File:     t.file,
		Header:   t.rawHeader,
		Warnings: t.warnings,
	}
	for j, norm := range t.normHeader {
		if !known[norm] {
			info.ExtraColumns = append(info.ExtraColumns, t.rawHeader[j])
		}
	}
	return info
}

// reject handles one bad row: in strict mode it returns the RowError to
// abort the parse, in lenient mode it records a warning and returns nil
// so the caller can skip the row.
func (t *tableReader) reject(i int, column, reason string, opts Options) error {
	re := RowError{File: t.file, Line: t.line(i), Column: column, Reason: reason}
	if opts.Strict {
		return &re
	}
	t.warnings = append(t.warnings, re)
	return nil
}

// CountRows streams a table counting data rows without building any
// records. Rows with the wrong field count are excluded, matching what
// a full parse would produce.
func CountRows(data io.Reader) (int, error) {
	r := csv.NewReader(bom.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	arity := -1
	n := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		if arity == -1 {
			arity = len(rec)
			continue
		}
		if len(rec) == arity {
			n++
		}
	}
}
