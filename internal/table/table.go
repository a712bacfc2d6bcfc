// Package table holds the column-ordered string table shared by the fetcher,
// the merger and the reporter. Cells are strings; an absent key is a null cell.
package table

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Row is one record keyed by column name. A missing key is a null cell.
type Row map[string]string

// Get returns the cell value and whether it is non-null.
func (r Row) Get(col string) (string, bool) {
	v, ok := r[col]
	return v, ok
}

// Value returns the cell value, or "" for a null cell.
func (r Row) Value(col string) string {
	return r[col]
}

// Table is an ordered set of columns plus rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	t := &Table{}
	for _, c := range columns {
		t.AddColumn(c)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// HasColumn reports whether col is part of the table schema.
func (t *Table) HasColumn(col string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// AddColumn appends col to the schema when it is not already present.
func (t *Table) AddColumn(col string) {
	if !t.HasColumn(col) {
		t.Columns = append(t.Columns, col)
	}
}

// Append adds a row. Keys outside the schema are added as columns.
func (t *Table) Append(row Row) {
	for k := range row {
		if !t.HasColumn(k) {
			t.Columns = append(t.Columns, k)
		}
	}
	t.Rows = append(t.Rows, row)
}

// SetAll sets col to value on every row, adding the column if needed.
func (t *Table) SetAll(col, value string) {
	t.AddColumn(col)
	for _, r := range t.Rows {
		r[col] = value
	}
}

// Filter returns a new table with the same schema and the rows keep accepts.
// Rows are shared, not copied.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, 0, len(t.Rows)),
	}
	for _, r := range t.Rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.Rows = append(out.Rows, cp)
	}
	return out
}

// Distinct returns the sorted unique non-empty values of col.
func (t *Table) Distinct(col string) []string {
	seen := make(map[string]struct{})
	for _, r := range t.Rows {
		if v, ok := r[col]; ok && v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Concat stacks tables vertically. The result schema is the union of all
// columns in first-seen order; cells missing from a source stay null.
// Rows are deep-copied so callers may mutate the result.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			out.AddColumn(c)
		}
		for _, r := range t.Rows {
			cp := make(Row, len(r))
			for k, v := range r {
				cp[k] = v
			}
			out.Rows = append(out.Rows, cp)
		}
	}
	return out
}

// MissingColumnsError reports required columns absent from a table.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Validate checks that every required column exists. It returns a
// *MissingColumnsError naming the sorted missing set, or nil.
func (t *Table) Validate(required ...string) error {
	var missing []string
	for _, c := range required {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingColumnsError{Missing: missing}
}

// MissingColumns extracts the missing set from err, if it is a validation error.
func MissingColumns(err error) ([]string, bool) {
	var mce *MissingColumnsError
	if errors.As(err, &mce) {
		return mce.Missing, true
	}
	return nil, false
}
