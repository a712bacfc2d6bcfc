// Package report builds the hourly incidence pivot and the other views
// derived from the merged alarm table.
package report

import (
	"sort"
	"strconv"

	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/normalize"
	"github.com/tinytelemetry/ponwatch/internal/table"
)

// TotalColumn is the row-sum column appended to the pivot.
const TotalColumn = "Total"

// PivotSpec names the columns the pivot groups and counts by.
type PivotSpec struct {
	Index  []string
	Hour   string
	Count  string
	Labels []string
}

// DefaultPivotSpec is the incidence-per-hour layout used by the dashboard.
var DefaultPivotSpec = PivotSpec{
	Index:  []string{model.ColDEV, model.ColFN, model.ColSN, model.ColPN, model.ColHoraPeru},
	Hour:   model.ColHour,
	Count:  model.ColSerialNo,
	Labels: []string{model.ColDEV2, model.ColClientePuerto},
}

// Required returns every column the pivot cannot be built without.
func (s PivotSpec) Required() []string {
	req := append([]string(nil), s.Index...)
	return append(req, s.Hour, s.Count)
}

// PivotRow is one index group.
type PivotRow struct {
	Index  []string          `json:"index"`
	Labels map[string]string `json:"labels,omitempty"`
	Counts []int             `json:"counts"`
	Total  int               `json:"total"`
}

// Pivot is the hourly incidence matrix. Counts[i] lines up with Hours[i].
type Pivot struct {
	IndexColumns []string   `json:"index_columns"`
	LabelColumns []string   `json:"label_columns,omitempty"`
	Hours        []string   `json:"hours"`
	Rows         []PivotRow `json:"rows"`
}

// Validate reports the columns of s missing from t as a
// *table.MissingColumnsError.
func (s PivotSpec) Validate(t *table.Table) error {
	return t.Validate(s.Required()...)
}

// identifierColumns are index parts that group by their normalized value, so
// "2" and "2.0" land in the same row.
var identifierColumns = map[string]bool{
	model.ColDEV: true,
	model.ColFN:  true,
	model.ColSN:  true,
	model.ColPN:  true,
}

// BuildPivot counts the non-empty Count values per index group and hour.
// Rows with an empty index part or hour are skipped. Hour columns that are
// zero everywhere are dropped and rows are ordered by Total descending, ties
// by index ascending.
func BuildPivot(t *table.Table, s PivotSpec) (*Pivot, error) {
	if err := s.Validate(t); err != nil {
		return nil, err
	}

	var labels []string
	for _, l := range s.Labels {
		if t.HasColumn(l) {
			labels = append(labels, l)
		}
	}

	type group struct {
		row    PivotRow
		counts map[string]int
	}
	groups := make(map[string]*group)
	var order []*group
	seenHours := make(map[string]bool)

rows:
	for _, r := range t.Rows {
		index := make([]string, len(s.Index))
		for i, col := range s.Index {
			v := r.Value(col)
			if v == "" {
				continue rows
			}
			switch {
			case col == model.ColHoraPeru:
				v = canonicalTime(v)
			case identifierColumns[col]:
				v = normalize.Identifier(v)
			}
			index[i] = v
		}
		hour := normalize.Identifier(r.Value(s.Hour))
		if hour == "" {
			continue
		}
		if _, ok := seenHours[hour]; !ok {
			seenHours[hour] = false
		}

		key := groupKey(index)
		g, ok := groups[key]
		if !ok {
			g = &group{row: PivotRow{Index: index}, counts: make(map[string]int)}
			groups[key] = g
			order = append(order, g)
		}
		for _, l := range labels {
			if v, ok := r.Get(l); ok && v != "" {
				if g.row.Labels == nil {
					g.row.Labels = make(map[string]string)
				}
				if _, set := g.row.Labels[l]; !set {
					g.row.Labels[l] = v
				}
			}
		}
		if v, ok := r.Get(s.Count); ok && v != "" {
			g.counts[hour]++
			seenHours[hour] = true
		}
	}

	hours := make([]string, 0, len(seenHours))
	for h, nonZero := range seenHours {
		if nonZero {
			hours = append(hours, h)
		}
	}
	sortHours(hours)

	p := &Pivot{
		IndexColumns: append([]string(nil), s.Index...),
		LabelColumns: labels,
		Hours:        hours,
		Rows:         make([]PivotRow, 0, len(order)),
	}
	for _, g := range order {
		row := g.row
		row.Counts = make([]int, len(hours))
		for i, h := range hours {
			row.Counts[i] = g.counts[h]
			row.Total += g.counts[h]
		}
		p.Rows = append(p.Rows, row)
	}

	sort.SliceStable(p.Rows, func(i, j int) bool {
		return lessIndex(p.Rows[i].Index, p.Rows[j].Index)
	})
	sort.SliceStable(p.Rows, func(i, j int) bool {
		return p.Rows[i].Total > p.Rows[j].Total
	})
	return p, nil
}

// Columns returns the flattened header: index, labels, hours, Total.
func (p *Pivot) Columns() []string {
	cols := append([]string(nil), p.IndexColumns...)
	cols = append(cols, p.LabelColumns...)
	cols = append(cols, p.Hours...)
	return append(cols, TotalColumn)
}

// Records returns the pivot as string records matching Columns.
func (p *Pivot) Records() [][]string {
	out := make([][]string, 0, len(p.Rows))
	for _, r := range p.Rows {
		rec := append([]string(nil), r.Index...)
		for _, l := range p.LabelColumns {
			rec = append(rec, r.Labels[l])
		}
		for _, c := range r.Counts {
			rec = append(rec, strconv.Itoa(c))
		}
		out = append(out, append(rec, strconv.Itoa(r.Total)))
	}
	return out
}

// Head returns a copy of p limited to the first n rows.
func (p *Pivot) Head(n int) *Pivot {
	cp := *p
	if n >= 0 && n < len(p.Rows) {
		cp.Rows = p.Rows[:n]
	}
	return &cp
}

func canonicalTime(v string) string {
	if ts, ok := ParseTime(v); ok {
		return ts.Format(ISOLayout)
	}
	return v
}

func groupKey(index []string) string {
	n := 0
	for _, v := range index {
		n += len(v) + 1
	}
	b := make([]byte, 0, n)
	for _, v := range index {
		b = append(b, v...)
		b = append(b, 0)
	}
	return string(b)
}

func lessIndex(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// sortHours orders hour labels numerically when every label is an integer,
// lexically otherwise.
func sortHours(hours []string) {
	numeric := true
	for _, h := range hours {
		if _, err := strconv.Atoi(h); err != nil {
			numeric = false
			break
		}
	}
	if !numeric {
		sort.Strings(hours)
		return
	}
	sort.Slice(hours, func(i, j int) bool {
		a, _ := strconv.Atoi(hours[i])
		b, _ := strconv.Atoi(hours[j])
		return a < b
	})
}
