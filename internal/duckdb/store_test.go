package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/table"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore("")
	require.NoError(t, err, "NewStore(\"\")")
	t.Cleanup(func() { store.Close() })
	return store
}

// writeParquet materializes selectSQL as a parquet file with the store's file engine.
func writeParquet(t *testing.T, store *Store, selectSQL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clientes_activos.parquet")
	_, err := store.files.Exec("COPY (" + selectSQL + ") TO " + quoteLiteral(path) + " (FORMAT PARQUET)")
	require.NoError(t, err, "write parquet")
	return path
}

func sampleAlarms() *table.Table {
	t := table.New(model.ColDEV, model.ColFN, model.ColSN, model.ColPN, model.ColGestor, model.ColDEV2, "Severity")
	t.Append(table.Row{model.ColDEV: "OLT1", model.ColFN: "1", model.ColSN: "2", model.ColPN: "3", model.ColGestor: "Huawei", model.ColDEV2: "OLT1-1-2-3", "Severity": "Critical"})
	t.Append(table.Row{model.ColDEV: "OLT1", model.ColFN: "1", model.ColSN: "2", model.ColPN: "4", model.ColGestor: "Huawei", model.ColDEV2: "OLT1-1-2-4"})
	t.Append(table.Row{model.ColDEV: "OLT2", model.ColFN: "0", model.ColSN: "1", model.ColPN: "1", model.ColGestor: "ZTE", model.ColDEV2: "OLT2-0-1-1"})
	return t
}

func TestNewStore_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ponwatch.duckdb")
	store, err := NewStore(path, 5*time.Second)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, path, store.DBPath())
	assert.Equal(t, 5*time.Second, store.QueryTimeout)

	version, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestLoadClients_RowLabelHeader(t *testing.T) {
	store := newTestStore(t)
	path := writeParquet(t, store, `SELECT * FROM (VALUES ('OLT1-1-2-3', 12), ('OLT1-1-2-3', 99), ('OLT2-0-1-5', 3), (NULL, 4)) AS t("Etiquetas de fila", "Total general")`)

	idx, err := store.LoadClients(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	label, ok := idx.Lookup("OLT1-1-2-3")
	require.True(t, ok)
	assert.Equal(t, "12", label, "first row for a duplicated key wins")
}

func TestLoadClients_DEV2Header(t *testing.T) {
	store := newTestStore(t)
	path := writeParquet(t, store, `SELECT * FROM (VALUES ('OLT1-1-2-3', 5.0)) AS t("DEV_2", "Total general")`)

	idx, err := store.LoadClients(context.Background(), path)
	require.NoError(t, err)

	label, ok := idx.Lookup("OLT1-1-2-3")
	require.True(t, ok)
	assert.Equal(t, "5", label)
}

func TestLoadClients_MissingColumns(t *testing.T) {
	store := newTestStore(t)
	path := writeParquet(t, store, `SELECT * FROM (VALUES ('OLT1-1-2-3', 5)) AS t("Puerto", "Cantidad")`)

	_, err := store.LoadClients(context.Background(), path)
	require.Error(t, err)

	missing, ok := table.MissingColumns(err)
	require.True(t, ok)
	assert.Equal(t, []string{"DEV_2", "Total general"}, missing)
}

func TestLoadClients_MissingFile(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadClients(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"))
	assert.Error(t, err)
}

func TestReplaceAlarms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := model.RefreshRecord{ID: "r1", FetchedAt: time.Now(), HuaweiRows: 2, ZTERows: 1, ClientMatches: 1}
	require.NoError(t, store.ReplaceAlarms(ctx, rec, sampleAlarms()))

	count, err := store.TotalAlarmCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// A second refresh replaces rather than appends.
	rec2 := model.RefreshRecord{ID: "r2", FetchedAt: time.Now().Add(time.Minute), HuaweiRows: 2, ZTERows: 1}
	require.NoError(t, store.ReplaceAlarms(ctx, rec2, sampleAlarms()))

	count, err = store.TotalAlarmCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	refreshes, err := store.RecentRefreshes(5)
	require.NoError(t, err)
	require.Len(t, refreshes, 2)
	assert.Equal(t, "r2", refreshes[0].ID)
	assert.Equal(t, 3, refreshes[0].TotalRows())
}

func TestReplaceAlarms_ExtraFieldsStoredAsJSON(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceAlarms(context.Background(), model.RefreshRecord{ID: "r1", FetchedAt: time.Now()}, sampleAlarms()))

	rows, err := store.ExecuteQuery(`SELECT json_extract_string(fields, '$.Severity') AS severity FROM alarms WHERE row_num = 0`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Critical", rows[0]["severity"])
}

func TestGestorCountsAndTopDevices(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceAlarms(context.Background(), model.RefreshRecord{ID: "r1", FetchedAt: time.Now()}, sampleAlarms()))

	gestores, err := store.GestorCounts()
	require.NoError(t, err)
	assert.Equal(t, []model.DimensionCount{{Value: "Huawei", Count: 2}, {Value: "ZTE", Count: 1}}, gestores)

	devices, err := store.TopDevices(1)
	require.NoError(t, err)
	assert.Equal(t, []model.DimensionCount{{Value: "OLT1", Count: 2}}, devices)
}

func TestExecuteQuery_Guards(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name  string
		query string
	}{
		{"insert", "INSERT INTO alarms (refresh_id, row_num) VALUES ('x', 1)"},
		{"chained", "SELECT 1; DROP TABLE alarms"},
		{"hidden in comment prefix", "/* SELECT */ DELETE FROM alarms"},
		{"file reader", "SELECT * FROM read_parquet('/etc/passwd')"},
		{"copy", "SELECT 1 FROM alarms WHERE 1=0 UNION SELECT 1 FROM (COPY alarms TO '/tmp/x')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ExecuteQuery(tt.query)
			assert.Error(t, err)
		})
	}

	rows, err := store.ExecuteQuery("WITH c AS (SELECT COUNT(*) AS n FROM alarms) SELECT n FROM c")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExecuteQuery_FileAccessRejected(t *testing.T) {
	store := newTestStore(t)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "secret.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("k,v\nsecret,42\n"), 0o600))
	jsonPath := filepath.Join(dir, "secret.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"k":"secret"}`+"\n"), 0o600))
	parquetPath := writeParquet(t, store, `SELECT 'secret' AS k`)

	tests := []struct {
		name  string
		query string
	}{
		{"replacement scan csv", "SELECT * FROM " + quoteLiteral(csvPath)},
		{"replacement scan parquet", "SELECT * FROM " + quoteLiteral(parquetPath)},
		{"replacement scan in subquery", "SELECT k FROM (SELECT * FROM " + quoteLiteral(jsonPath) + ")"},
		{"read_json_auto", "SELECT * FROM read_json_auto(" + quoteLiteral(jsonPath) + ")"},
		{"read_ndjson", "SELECT * FROM read_ndjson(" + quoteLiteral(jsonPath) + ")"},
		{"read_blob", "SELECT * FROM read_blob(" + quoteLiteral(csvPath) + ")"},
		{"read_text upper case", "SELECT * FROM READ_TEXT(" + quoteLiteral(csvPath) + ")"},
		{"parquet_scan", "SELECT * FROM parquet_scan(" + quoteLiteral(parquetPath) + ")"},
		{"re-enable access", "SET enable_external_access = true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := store.ExecuteQuery(tt.query)
			assert.Error(t, err, "rows: %v", rows)
		})
	}
}

func TestStoreEngine_ExternalAccessDisabled(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(path, []byte("secret"), 0o600))

	// Past the keyword filter, the engine still refuses to read files.
	_, err := store.db.Exec("SELECT * FROM read_text(" + quoteLiteral(path) + ")")
	assert.Error(t, err)
	_, err = store.db.Exec("SELECT * FROM " + quoteLiteral(path))
	assert.Error(t, err)

	_, err = store.db.Exec("SET enable_external_access = true")
	assert.Error(t, err, "configuration must stay locked")
}

func TestTableRowCounts(t *testing.T) {
	store := newTestStore(t)
	counts, err := store.TableRowCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"alarms": 0, "refreshes": 0}, counts)
}
