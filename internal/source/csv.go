package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tinytelemetry/ponwatch/internal/table"
)

// ErrNoHeader is returned when the CSV body has no header row.
var ErrNoHeader = errors.New("csv: no header row")

const utf8BOM = "\uFEFF"

// ParseCSV reads a header-first CSV document into a table. Empty cells are
// stored as nulls, short records leave trailing cells null, and cells beyond
// the header width are dropped.
func ParseCSV(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}

	columns := headerColumns(header)
	t := table.New(columns...)

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		row := make(table.Row, len(columns))
		for i, cell := range record {
			if i >= len(columns) {
				break
			}
			if cell == "" {
				continue
			}
			row[columns[i]] = cell
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// headerColumns names blank headers "Unnamed: N" and suffixes repeats with
// ".1", ".2", ... so every column stays addressable.
func headerColumns(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			columns[i] = fmt.Sprintf("%s.%d", name, n+1)
			continue
		}
		seen[name] = 0
		columns[i] = name
	}
	return columns
}
