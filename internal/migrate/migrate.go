// Package migrate creates the optional MySQL tables used for board user
// mappings.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema file.
type Migration struct {
	Version int
	File    string
}

// List returns the embedded migrations ordered by version. Files must be
// named like 0001_description.sql.
func List() ([]Migration, error) {
	files, err := fs.Glob(migrationsFS, "sql/*.sql")
	if err != nil {
		return nil, goerr.Wrap(err, "listing migrations")
	}
	out := make([]Migration, 0, len(files))
	for _, f := range files {
		base := path.Base(f)
		ver, err := parseVersion(base)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid migration filename", goerr.V("file", base))
		}
		out = append(out, Migration{Version: ver, File: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run applies pending migrations. Each file is executed as a single
// statement batch; the DSN should include multiStatements=true when a file
// holds more than one statement. It returns the number of files applied.
func Run(ctx context.Context, dsn string, log *slog.Logger) (int, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return 0, goerr.Wrap(err, "mysql: open failed")
	}
	defer db.Close()

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		return 0, goerr.Wrap(err, "mysql: ping failed")
	}

	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, err
	}
	migrations, err := List()
	if err != nil {
		return 0, err
	}
	applied, err := loadApplied(ctx, db)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range migrations {
		if applied[m.Version] {
			log.Debug("migration already applied", slog.Int("version", m.Version), slog.String("file", m.File))
			continue
		}
		b, err := fs.ReadFile(migrationsFS, m.File)
		if err != nil {
			return n, goerr.Wrap(err, "reading migration", goerr.V("file", m.File))
		}
		log.Info("applying migration", slog.Int("version", m.Version), slog.String("file", m.File))
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return n, goerr.Wrap(err, "applying migration", goerr.V("file", m.File))
		}
		if err := recordApplied(ctx, db, m.Version); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at DATETIME(6) NOT NULL
    ) ENGINE=InnoDB;`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return goerr.Wrap(err, "creating schema_migrations")
	}
	return nil
}

func loadApplied(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, goerr.Wrap(err, "loading applied migrations")
	}
	defer rows.Close()
	m := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, goerr.Wrap(err, "scanning migration version")
		}
		m[v] = true
	}
	return m, rows.Err()
}

func recordApplied(ctx context.Context, db *sql.DB, version int) error {
	_, err := db.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)", version, time.Now().UTC())
	if err != nil {
		return goerr.Wrap(err, "recording migration", goerr.V("version", version))
	}
	return nil
}

func parseVersion(name string) (int, error) {
	// Expect prefix like 0001_...
	i := strings.IndexByte(name, '_')
	if i <= 0 {
		return 0, goerr.New("missing version prefix")
	}
	return strconv.Atoi(name[:i])
}
