package report

import (
	"sort"
	"time"

	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/table"
)

// Facets lists the filter options available for a table.
type Facets struct {
	TipoFinal  []string   `json:"tipo_final"`
	StrName    []string   `json:"str_name"`
	MinDate    string     `json:"min_date,omitempty"`
	MaxDate    string     `json:"max_date,omitempty"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
	Rows       int        `json:"rows"`
}

// BuildFacets collects the filter options for t.
func BuildFacets(t *table.Table) Facets {
	f := Facets{
		TipoFinal: t.Distinct(model.ColTipoFinal),
		StrName:   t.Distinct(model.ColStrName),
		Rows:      t.Len(),
	}

	var minDay, maxDay, last time.Time
	for _, r := range t.Rows {
		if ts, ok := ParseTime(r.Value(model.ColHoraPeru)); ok {
			if minDay.IsZero() || ts.Before(minDay) {
				minDay = ts
			}
			if ts.After(maxDay) {
				maxDay = ts
			}
		}
		if ts, ok := ParseTime(r.Value(model.ColHoraProceso)); ok && ts.After(last) {
			last = ts
		}
	}
	if !minDay.IsZero() {
		f.MinDate = minDay.Format(DateLayout)
		f.MaxDate = maxDay.Format(DateLayout)
	}
	if !last.IsZero() {
		f.LastUpdate = &last
	}
	return f
}

// TopOLTs counts rows per DEV and returns the limit largest, ties broken by
// DEV ascending. Rows without a DEV are not counted.
func TopOLTs(t *table.Table, limit int) []model.DimensionCount {
	if !t.HasColumn(model.ColDEV) {
		return []model.DimensionCount{}
	}
	counts := make(map[string]int64)
	for _, r := range t.Rows {
		if dev, ok := r.Get(model.ColDEV); ok && dev != "" {
			counts[dev]++
		}
	}

	out := make([]model.DimensionCount, 0, len(counts))
	for dev, n := range counts {
		out = append(out, model.DimensionCount{Value: dev, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
