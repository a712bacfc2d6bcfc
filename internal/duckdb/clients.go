package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/normalize"
	"github.com/tinytelemetry/ponwatch/internal/table"
)

// LoadClients reads the active-clients parquet snapshot at path into an index
// of DEV_2 -> Cliente_puerto. The key column is DEV_2, or the spreadsheet
// pivot's "Etiquetas de fila" header when DEV_2 is absent.
func (s *Store) LoadClients(ctx context.Context, path string) (*model.ClientIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("client snapshot: %w", err)
	}

	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	source := "read_parquet(" + quoteLiteral(path) + ")"

	columns, err := s.sourceColumns(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("client snapshot columns: %w", err)
	}

	schema := table.New(columns...)
	keyCol := model.ColDEV2
	if !schema.HasColumn(keyCol) && schema.HasColumn(model.ClientColRowLabel) {
		keyCol = model.ClientColRowLabel
	}
	if err := schema.Validate(keyCol, model.ClientColTotal); err != nil {
		return nil, fmt.Errorf("client snapshot: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT CAST(%s AS VARCHAR), CAST(%s AS VARCHAR) FROM %s`,
		quoteIdent(keyCol), quoteIdent(model.ClientColTotal), source,
	)
	rows, err := s.files.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("client snapshot read: %w", err)
	}
	defer rows.Close()

	idx := model.NewClientIndex()
	for rows.Next() {
		var key, total sql.NullString
		if err := rows.Scan(&key, &total); err != nil {
			return nil, fmt.Errorf("client snapshot scan: %w", err)
		}
		if !key.Valid || key.String == "" {
			continue
		}
		label := ""
		if total.Valid {
			label = normalize.Identifier(total.String)
		}
		idx.Add(key.String, label)
	}
	return idx, rows.Err()
}

func (s *Store) sourceColumns(ctx context.Context, source string) ([]string, error) {
	rows, err := s.files.QueryContext(ctx, "SELECT * FROM "+source+" LIMIT 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Columns()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
