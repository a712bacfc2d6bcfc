// Package migrate versions the ponwatch DuckDB schema. Each file under
// migrations/ is named NNN_description.sql and runs once, in version order.
package migrate

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var embedded embed.FS

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       VARCHAR NOT NULL,
	applied_at TIMESTAMP DEFAULT current_timestamp
)`

type migration struct {
	version int
	name    string
	sql     string
}

// Runner brings a database up to the newest embedded schema version.
type Runner struct {
	db    *sql.DB
	files fs.FS
}

func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db, files: embedded}
}

// Run applies every migration newer than the recorded version. A failed
// migration rolls back alone and stops the run.
func (r *Runner) Run(ctx context.Context) error {
	todo, _, err := r.pending(ctx)
	if err != nil {
		return err
	}
	for _, m := range todo {
		if err := r.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Status reports the recorded version and how many migrations are newer.
func (r *Runner) Status(ctx context.Context) (current int, pending int, err error) {
	todo, current, err := r.pending(ctx)
	if err != nil {
		return 0, 0, err
	}
	return current, len(todo), nil
}

func (r *Runner) pending(ctx context.Context) ([]migration, int, error) {
	if _, err := r.db.ExecContext(ctx, ledgerDDL); err != nil {
		return nil, 0, fmt.Errorf("migrate: create ledger: %w", err)
	}

	var recorded sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&recorded); err != nil {
		return nil, 0, fmt.Errorf("migrate: read version: %w", err)
	}
	current := int(recorded.Int64)

	all, err := load(r.files)
	if err != nil {
		return nil, 0, err
	}
	i, _ := slices.BinarySearchFunc(all, current+1, func(m migration, v int) int {
		return cmp.Compare(m.version, v)
	})
	return all[i:], current, nil
}

func (r *Runner) apply(ctx context.Context, m migration) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate %s: begin: %w", m.name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migrate %s: %w", m.name, err)
	}
	if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		return fmt.Errorf("migrate %s: record: %w", m.name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("migrate %s: commit: %w", m.name, err)
	}
	return nil
}

// load returns the migrations in fsys sorted by version. Two files with the
// same version are an error.
func load(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("migrate: list: %w", err)
	}

	out := make([]migration, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		prefix, _, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migrate: version of %s: %w", base, err)
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", base, err)
		}
		out = append(out, migration{version: version, name: base, sql: string(body)})
	}

	slices.SortFunc(out, func(a, b migration) int { return cmp.Compare(a.version, b.version) })
	for i := 1; i < len(out); i++ {
		if out[i].version == out[i-1].version {
			return nil, fmt.Errorf("migrate: %s and %s share version %d", out[i-1].name, out[i].name, out[i].version)
		}
	}
	return out, nil
}
