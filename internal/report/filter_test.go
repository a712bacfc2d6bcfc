package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinytelemetry/ponwatch/internal/table"
)

func filterFixture() *table.Table {
	t := table.New("Gestor", "HoraPeru", "TipoFinal", "strName", "DEV", "HoraProceso")
	t.Append(table.Row{"Gestor": "Huawei", "HoraPeru": "01/03/2025 08:00:00", "TipoFinal": "LOS", "DEV": "OLT1", "HoraProceso": "05/03/2025 11:00:00"})
	t.Append(table.Row{"Gestor": "Huawei", "HoraPeru": "03/03/2025 08:00", "TipoFinal": "Power", "DEV": "OLT2"})
	t.Append(table.Row{"Gestor": "ZTE", "HoraPeru": "05/03/2025", "strName": "ONU LOS", "DEV": "OLT1", "HoraProceso": "05/03/2025 12:30:00"})
	t.Append(table.Row{"Gestor": "ZTE", "HoraPeru": "not a date", "strName": "ONU LOS", "DEV": "OLT3"})
	return t
}

func date(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"03/04/2025 10:20:30", "2025-04-03 10:20:30", true},
		{"3/4/2025 7:05", "2025-04-03 07:05:00", true},
		{"03/04/2025", "2025-04-03 00:00:00", true},
		{"2025-04-03 10:20:30", "2025-04-03 10:20:30", true},
		{"2025-04-03T10:20:30Z", "2025-04-03 10:20:30", true},
		{"2025-04-03", "2025-04-03 00:00:00", true},
		{"", "", false},
		{"yesterday", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTime(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, got.Format(ISOLayout), tt.in)
		}
	}
}

func TestParseGestor(t *testing.T) {
	for in, want := range map[string]string{"": "ambos", "HUAWEI": "huawei", " zte ": "zte", "Ambos": "ambos"} {
		got, err := ParseGestor(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseGestor("nokia")
	assert.Error(t, err)
}

func TestFilter_DropsUnparseableTimestamps(t *testing.T) {
	out, dated := Filter{}.Apply(filterFixture())
	assert.True(t, dated)
	assert.Equal(t, 3, out.Len())
}

func TestFilter_DateRangeInclusive(t *testing.T) {
	out, _ := Filter{From: date("2025-03-03"), To: date("2025-03-05")}.Apply(filterFixture())
	assert.Equal(t, []string{"OLT1", "OLT2"}, out.Distinct("DEV"))
	assert.Equal(t, 2, out.Len())
}

func TestFilter_Gestor(t *testing.T) {
	out, _ := Filter{Gestor: "ZTE"}.Apply(filterFixture())
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "ZTE", out.Rows[0].Value("Gestor"))

	out, _ = Filter{Gestor: "huawei"}.Apply(filterFixture())
	assert.Equal(t, 2, out.Len())
}

func TestFilter_MultiSelect(t *testing.T) {
	out, _ := Filter{TipoFinal: []string{"Power", "Other"}}.Apply(filterFixture())
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "OLT2", out.Rows[0].Value("DEV"))

	out, _ = Filter{StrName: []string{"ONU LOS"}}.Apply(filterFixture())
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "ZTE", out.Rows[0].Value("Gestor"))
}

func TestFilter_NoTimestampColumn(t *testing.T) {
	tbl := table.New("DEV")
	tbl.Append(table.Row{"DEV": "OLT1"})

	out, dated := Filter{From: date("2030-01-01")}.Apply(tbl)
	assert.False(t, dated)
	assert.Equal(t, 1, out.Len(), "date range is ignored without HoraPeru")
}

func TestFilter_KeepsSchema(t *testing.T) {
	src := filterFixture()
	out, _ := Filter{Gestor: "zte", StrName: []string{"missing"}}.Apply(src)
	assert.True(t, out.Empty())
	assert.Equal(t, src.Columns, out.Columns)
}
