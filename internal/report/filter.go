package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/table"
)

// Gestor selections accepted by the gestor filter.
const (
	GestorAll    = "ambos"
	GestorHuawei = "huawei"
	GestorZTE    = "zte"
)

// Filter narrows the merged alarm view. Zero values select everything.
type Filter struct {
	From      time.Time
	To        time.Time
	Gestor    string
	TipoFinal []string
	StrName   []string
}

// ParseGestor validates a gestor selection, case-insensitively. Empty means
// both vendors.
func ParseGestor(s string) (string, error) {
	g := strings.ToLower(strings.TrimSpace(s))
	switch g {
	case "":
		return GestorAll, nil
	case GestorAll, GestorHuawei, GestorZTE:
		return g, nil
	}
	return "", fmt.Errorf("invalid gestor %q: want huawei, zte or ambos", s)
}

// Apply returns the rows of t that pass f. When HoraPeru is a column, rows
// whose timestamp cannot be parsed are dropped and the date range applies.
// dated reports whether HoraPeru was present; without it the date range is
// ignored.
func (f Filter) Apply(t *table.Table) (out *table.Table, dated bool) {
	if t == nil {
		return table.New(), false
	}
	dated = t.HasColumn(model.ColHoraPeru)
	gestor, err := ParseGestor(f.Gestor)
	if err != nil {
		gestor = GestorAll
	}
	tipos := stringSet(f.TipoFinal)
	names := stringSet(f.StrName)

	out = t.Filter(func(r table.Row) bool {
		if dated && !f.inRange(r.Value(model.ColHoraPeru)) {
			return false
		}
		if gestor != GestorAll && strings.ToLower(r.Value(model.ColGestor)) != gestor {
			return false
		}
		if len(tipos) > 0 && !contains(tipos, r, model.ColTipoFinal) {
			return false
		}
		if len(names) > 0 && !contains(names, r, model.ColStrName) {
			return false
		}
		return true
	})
	return out, dated
}

func (f Filter) inRange(raw string) bool {
	ts, ok := ParseTime(raw)
	if !ok {
		return false
	}
	day := dateOf(ts)
	if !f.From.IsZero() && day.Before(dateOf(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(dateOf(f.To)) {
		return false
	}
	return true
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func contains(set map[string]struct{}, r table.Row, col string) bool {
	v, ok := r.Get(col)
	if !ok {
		return false
	}
	_, found := set[v]
	return found
}
