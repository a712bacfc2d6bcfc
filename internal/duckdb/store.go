package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/tinytelemetry/ponwatch/internal/duckdb/migrate"
)

const defaultQueryTimeout = 30 * time.Second

// Store manages the DuckDB connection that holds the current alarm view and
// reads the client parquet snapshot.
//
// db has external access disabled and its configuration locked, so queries
// run on it cannot touch the filesystem. Snapshot files are read through
// files, a separate in-memory instance that never sees user SQL.
type Store struct {
	db           *sql.DB
	files        *sql.DB
	mu           sync.RWMutex
	dbPath       string
	migrations   *migrate.Runner
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database.
// If dbPath is empty, an in-memory database is used.
// An optional queryTimeout can be passed; it defaults to 30s.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}

	qt := defaultQueryTimeout
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	runner := migrate.NewRunner(db)
	ctx, cancel := context.WithTimeout(context.Background(), qt)
	defer cancel()
	if err := runner.Run(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := lockDown(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	files, err := sql.Open("duckdb", "")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:           db,
		files:        files,
		dbPath:       dbPath,
		migrations:   runner,
		QueryTimeout: qt,
	}, nil
}

// lockDown disables file, network and extension access on db for every
// connection and prevents later SET statements from re-enabling it.
func lockDown(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{
		"SET enable_external_access = false",
		"SET lock_configuration = true",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("duckdb: %s: %w", stmt, err)
		}
	}
	return nil
}

// Close closes both database connections.
func (s *Store) Close() error {
	filesErr := s.files.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return filesErr
}

// DBPath returns the configured database path. Empty means in-memory.
func (s *Store) DBPath() string {
	return s.dbPath
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()
	current, _, err := s.migrations.Status(ctx)
	return current, err
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// boundCtx layers the store's query timeout over a caller context.
func (s *Store) boundCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, s.QueryTimeout)
}
