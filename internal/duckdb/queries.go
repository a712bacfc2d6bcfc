package duckdb

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tinytelemetry/ponwatch/internal/model"
	"go.uber.org/zap"
)

// dangerousKeywordPattern matches write or side-effecting SQL keywords and
// file-reading table functions at word boundaries, so a column named
// "settings" is not caught by SET. It is a fast rejection only; the engine
// itself has external access disabled.
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET|RESET|READ_\w+|\w+_SCAN|SNIFF_CSV|GLOB)\b`,
)

var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

const maxQueryRows = 1000

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// TotalAlarmCount returns the number of stored alarm rows.
func (s *Store) TotalAlarmCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alarms`).Scan(&count)
	return count, err
}

// GestorCounts returns alarm counts per gestor, largest first.
func (s *Store) GestorCounts() ([]model.DimensionCount, error) {
	return s.dimensionCounts("gestor", 0)
}

// TopDevices returns the devices (DEV) with the most alarms.
func (s *Store) TopDevices(limit int) ([]model.DimensionCount, error) {
	return s.dimensionCounts("dev", limit)
}

// dimensionCounts groups alarms by a hardcoded column name, never user input.
func (s *Store) dimensionCounts(column string, limit int) ([]model.DimensionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %[1]s AS value, COUNT(*) AS count
		FROM alarms
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY count DESC, value ASC`, column)
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.DimensionCount
	for rows.Next() {
		var item model.DimensionCount
		if err := rows.Scan(&item.Value, &item.Count); err != nil {
			zap.L().Warn("duckdb scan error", zap.String("query", "dimensionCounts"), zap.Error(err))
			continue
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// RecentRefreshes returns the latest refresh records, newest first.
func (s *Store) RecentRefreshes(limit int) ([]model.RefreshRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT refresh_id, fetched_at, huawei_rows, zte_rows, client_matches
		FROM refreshes
		ORDER BY fetched_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.RefreshRecord
	for rows.Next() {
		var r model.RefreshRecord
		if err := rows.Scan(&r.ID, &r.FetchedAt, &r.HuaweiRows, &r.ZTERows, &r.ClientMatches); err != nil {
			zap.L().Warn("duckdb scan error", zap.String("query", "RecentRefreshes"), zap.Error(err))
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ExecuteQuery runs a read-only SQL query and returns results as maps.
// Only SELECT/WITH read queries are allowed; DDL/DML and file readers are
// rejected. Quoted file paths in FROM are refused by the engine.
func (s *Store) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	trimmed := strings.TrimSpace(query)

	if strings.Contains(trimmed, ";") {
		return nil, fmt.Errorf("query must not contain semicolons")
	}

	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return nil, fmt.Errorf("only SELECT/WITH queries are allowed")
	}

	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return nil, fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() && len(results) < maxQueryRows {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			zap.L().Warn("duckdb scan error", zap.String("query", "ExecuteQuery"), zap.Error(err))
			continue
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// GetSchemaDescription returns a human-readable schema description.
func (s *Store) GetSchemaDescription() string {
	return `Table 'alarms': refresh_id (VARCHAR), row_num (INTEGER), gestor (VARCHAR: Huawei/ZTE), ` +
		`dev, fn, sn, pn (VARCHAR), dev_2 (VARCHAR: DEV-FN-SN-PN), fault_id (VARCHAR), ` +
		`name_alarm (VARCHAR), hora_peru (VARCHAR, day-first timestamp), hour (VARCHAR), ` +
		`serial_no (VARCHAR), tipo_final (VARCHAR, Huawei), str_name (VARCHAR, ZTE), ` +
		`cliente_puerto (VARCHAR), fields (JSON: remaining source columns). ` +
		`Table 'refreshes': refresh_id, fetched_at (TIMESTAMP), huawei_rows, zte_rows, client_matches (INTEGER).`
}

// TableRowCounts returns the row count for each known table using a hardcoded allowlist.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	allowedTables := []string{"alarms", "refreshes"}
	counts := make(map[string]int64, len(allowedTables))

	for _, table := range allowedTables {
		var count int64
		err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			continue
		}
		counts[table] = count
	}
	return counts, nil
}
