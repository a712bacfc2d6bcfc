package model

import (
	"context"

	"github.com/tinytelemetry/ponwatch/internal/table"
)

// ClientLoader reads the active-clients reference snapshot.
type ClientLoader interface {
	LoadClients(ctx context.Context, path string) (*ClientIndex, error)
}

// AlarmWriter replaces the queryable copy of the merged alarm view.
type AlarmWriter interface {
	ReplaceAlarms(ctx context.Context, rec RefreshRecord, merged *table.Table) error
}

// AlarmQuerier provides read-only aggregate queries over the stored alarms.
type AlarmQuerier interface {
	TotalAlarmCount() (int64, error)
	GestorCounts() ([]DimensionCount, error)
	TopDevices(limit int) ([]DimensionCount, error)
	RecentRefreshes(limit int) ([]RefreshRecord, error)
}

// SchemaQuerier provides schema introspection and arbitrary read-only queries.
type SchemaQuerier interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	GetSchemaDescription() string
	TableRowCounts() (map[string]int64, error)
}

// ReadAPI is the unified read contract for the HTTP API.
type ReadAPI interface {
	AlarmQuerier
	SchemaQuerier
}
