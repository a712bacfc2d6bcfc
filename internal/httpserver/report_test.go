package httpserver

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/tinytelemetry/ponwatch/internal/table"
	"github.com/xuri/excelize/v2"
)

func TestAlarmsEndpoint_Filters(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"?gestor=huawei", 3},
		{"?gestor=ZTE", 1},
		{"?from=2025-03-02", 2},
		{"?from=2025-03-01&to=2025-03-01", 2},
		{"?tipo_final=Power&tipo_final=Other", 1},
		{"?str_name=ONU+LOS", 1},
		{"?gestor=huawei&str_name=ONU+LOS", 0},
	}
	for _, tt := range tests {
		w := env.do(http.MethodGet, "/api/alarms"+tt.query, "")
		if w.Code != http.StatusOK {
			t.Fatalf("alarms%s status = %d; body: %s", tt.query, w.Code, w.Body.String())
		}
		body := decode(t, w)
		if body["total"] != float64(tt.want) {
			t.Errorf("alarms%s total = %v, want %d", tt.query, body["total"], tt.want)
		}
	}
}

func TestAlarmsEndpoint_Limit(t *testing.T) {
	env := newTestEnv(t, nil)

	body := decode(t, env.do(http.MethodGet, "/api/alarms?limit=1", ""))
	rows, _ := body["rows"].([]interface{})
	if len(rows) != 1 || body["total"] != float64(4) {
		t.Errorf("limit=1 returned %d rows of %v", len(rows), body["total"])
	}

	if w := env.do(http.MethodGet, "/api/alarms?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", w.Code)
	}
}

func TestAlarmsEndpoint_BadFilter(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, q := range []string{"?from=01/03/2025", "?gestor=nokia", "?from=2025-03-05&to=2025-03-01"} {
		if w := env.do(http.MethodGet, "/api/alarms"+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("alarms%s status = %d, want 400", q, w.Code)
		}
	}
}

func TestAlarmsCSVEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/alarms.csv?gestor=zte", "")
	if w.Code != http.StatusOK {
		t.Fatalf("alarms.csv status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "alarmas_filtradas.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 || records[1][0] != "OLT2" {
		t.Errorf("csv records = %v", records)
	}
}

func TestPivotEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/pivot", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pivot status = %d; body: %s", w.Code, w.Body.String())
	}
	var body struct {
		TotalRows int `json:"total_rows"`
		Pivot     struct {
			Hours []string `json:"hours"`
			Rows  []struct {
				Index  []string          `json:"index"`
				Labels map[string]string `json:"labels"`
				Total  int               `json:"total"`
			} `json:"rows"`
		} `json:"pivot"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.TotalRows != 3 {
		t.Fatalf("pivot rows = %d, want 3", body.TotalRows)
	}
	if strings.Join(body.Pivot.Hours, ",") != "9,10,11" {
		t.Errorf("hours = %v", body.Pivot.Hours)
	}
	top := body.Pivot.Rows[0]
	if top.Total != 2 || top.Index[0] != "OLT1" || top.Labels["Cliente_puerto"] != "12" {
		t.Errorf("top pivot row = %+v", top)
	}

	w = env.do(http.MethodGet, "/api/pivot?limit=1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Pivot.Rows) != 1 || body.TotalRows != 3 {
		t.Errorf("limited pivot = %d rows of %d", len(body.Pivot.Rows), body.TotalRows)
	}
}

func TestPivotEndpoint_MissingColumns(t *testing.T) {
	env := newTestEnv(t, nil)
	t2 := table.New("DEV", "Gestor")
	t2.Append(table.Row{"DEV": "OLT1", "Gestor": "Huawei"})
	env.merger.table = t2

	w := env.do(http.MethodGet, "/api/pivot", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("pivot status = %d, want 422", w.Code)
	}
	var body struct {
		Missing []string `json:"missing"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := "FN,HoraPeru,Hour,PN,SN,SerialNo"
	if got := strings.Join(body.Missing, ","); got != want {
		t.Errorf("missing = %s, want %s", got, want)
	}
}

func TestPivotDownloads(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/pivot.csv?gestor=huawei", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pivot.csv status = %d", w.Code)
	}
	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 || records[0][len(records[0])-1] != "Total" {
		t.Errorf("pivot csv = %v", records)
	}

	w = env.do(http.MethodGet, "/api/pivot.xlsx", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pivot.xlsx status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "tabla_dinamica.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Pivot")
	if err != nil || len(rows) != 4 {
		t.Errorf("xlsx rows = %d, err = %v", len(rows), err)
	}
}

func TestTopOLTsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/top-olts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("top-olts status = %d", w.Code)
	}
	var body struct {
		Top []struct {
			Value string `json:"value"`
			Count int64  `json:"count"`
		} `json:"top"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Top) != 2 || body.Top[0].Value != "OLT1" || body.Top[0].Count != 3 {
		t.Errorf("top = %+v", body.Top)
	}
}

func TestFacetsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/facets?gestor=huawei&tipo_final=LOS", "")
	if w.Code != http.StatusOK {
		t.Fatalf("facets status = %d", w.Code)
	}
	var body struct {
		Facets struct {
			TipoFinal []string `json:"tipo_final"`
			StrName   []string `json:"str_name"`
			MinDate   string   `json:"min_date"`
			MaxDate   string   `json:"max_date"`
		} `json:"facets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if strings.Join(body.Facets.TipoFinal, ",") != "LOS,Power" {
		t.Errorf("tipo_final options = %v", body.Facets.TipoFinal)
	}
	if len(body.Facets.StrName) != 0 {
		t.Errorf("str_name options for huawei = %v", body.Facets.StrName)
	}
	if body.Facets.MinDate != "2025-03-01" || body.Facets.MaxDate != "2025-03-03" {
		t.Errorf("date range = %s..%s", body.Facets.MinDate, body.Facets.MaxDate)
	}
}
