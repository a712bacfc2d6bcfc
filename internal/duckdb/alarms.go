package duckdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/table"
	"go.uber.org/zap"
)

// alarmColumns maps the typed alarms columns to their source column names.
// Every other source column is kept in the fields JSON.
var alarmColumns = []struct {
	sqlName string
	source  string
}{
	{"gestor", model.ColGestor},
	{"dev", model.ColDEV},
	{"fn", model.ColFN},
	{"sn", model.ColSN},
	{"pn", model.ColPN},
	{"dev_2", model.ColDEV2},
	{"fault_id", model.ColFaultID},
	{"name_alarm", model.ColNameAlarm},
	{"hora_peru", model.ColHoraPeru},
	{"hour", model.ColHour},
	{"serial_no", model.ColSerialNo},
	{"tipo_final", model.ColTipoFinal},
	{"str_name", model.ColStrName},
	{"cliente_puerto", model.ColClientePuerto},
}

var typedSources = func() map[string]struct{} {
	m := make(map[string]struct{}, len(alarmColumns))
	for _, c := range alarmColumns {
		m[c.source] = struct{}{}
	}
	return m
}()

// ReplaceAlarms swaps the stored alarm view for merged in one transaction and
// records the refresh.
func (s *Store) ReplaceAlarms(ctx context.Context, rec model.RefreshRecord, merged *table.Table) error {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM alarms"); err != nil {
		return fmt.Errorf("clear alarms: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO alarms (refresh_id, row_num, gestor, dev, fn, sn, pn, dev_2, fault_id, name_alarm, hora_peru, hour, serial_no, tipo_final, str_name, cliente_puerto, fields) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range merged.Rows {
		args := make([]any, 0, len(alarmColumns)+3)
		args = append(args, rec.ID, i)
		for _, c := range alarmColumns {
			if v, ok := row.Get(c.source); ok {
				args = append(args, v)
			} else {
				args = append(args, nil)
			}
		}
		args = append(args, extraFields(row))

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("alarm insert row %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refreshes (refresh_id, fetched_at, huawei_rows, zte_rows, client_matches) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.FetchedAt, rec.HuaweiRows, rec.ZTERows, rec.ClientMatches,
	); err != nil {
		return fmt.Errorf("record refresh: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func extraFields(row table.Row) string {
	extra := make(map[string]string)
	for k, v := range row {
		if _, typed := typedSources[k]; !typed {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return "{}"
	}
	data, err := json.Marshal(extra)
	if err != nil {
		zap.L().Warn("duckdb: failed to marshal alarm fields, using empty", zap.Error(err))
		return "{}"
	}
	return string(data)
}
