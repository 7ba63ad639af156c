package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/*/*.sql
var migrationsFS embed.FS

// Run applies pending migrations for the dialect of db. Migrations live under
// internal/migrate/sql/<dialect> and must be named like 0001_description.sql;
// they are executed in lexicographic order, each file as one statement batch,
// so a MySQL connection needs multiStatements=true (sqlstore.Open sets it).
// Replicas starting together are serialized by a database lock, so each
// migration is applied once.
func Run(ctx context.Context, db *sqlx.DB, log *slog.Logger) error {
	dir, err := Dir(db.DriverName())
	if err != nil {
		return err
	}

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		return err
	}

	// Session locks belong to a connection: everything below runs on conn.
	conn, err := db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	unlock, err := lock(ctx, conn, dir)
	if err != nil {
		return fmt.Errorf("migrate: acquire lock: %w", err)
	}
	defer unlock()

	if err := ensureMigrationsTable(ctx, conn, dir); err != nil {
		return err
	}

	files, err := fs.Glob(migrationsFS, path.Join("sql", dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	applied, err := loadApplied(ctx, conn)
	if err != nil {
		return err
	}

	for _, f := range files {
		base := path.Base(f)
		ver, err := parseVersion(base)
		if err != nil {
			return fmt.Errorf("invalid migration filename %q: %w", base, err)
		}
		if applied[ver] {
			log.Debug("migration already applied", slog.Int("version", ver), slog.String("file", base))
			continue
		}
		b, err := fs.ReadFile(migrationsFS, f)
		if err != nil {
			return err
		}
		log.Info("applying migration", slog.String("dialect", dir), slog.Int("version", ver), slog.String("file", base))
		if _, err := conn.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("applying %s: %w", base, err)
		}
		if err := recordApplied(ctx, conn, ver); err != nil {
			return err
		}
	}
	return nil
}

// lockName identifies the migration lock on MySQL; lockKey on PostgreSQL.
const (
	lockName = "timetrack_migrate"
	lockKey  = 73051001
)

// lock takes a session-level lock on conn and returns its release. SQLite
// needs none: the store holds a single connection.
func lock(ctx context.Context, conn *sqlx.Conn, dir string) (func(), error) {
	switch dir {
	case "mysql":
		var got sql.NullInt64
		if err := conn.GetContext(ctx, &got, "SELECT GET_LOCK(?, 60)", lockName); err != nil {
			return nil, err
		}
		if !got.Valid || got.Int64 != 1 {
			return nil, errors.New("timed out waiting for migration lock")
		}
		return func() {
			_, _ = conn.ExecContext(context.Background(), "SELECT RELEASE_LOCK(?)", lockName)
		}, nil
	case "postgres":
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockKey); err != nil {
			return nil, err
		}
		return func() {
			_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", lockKey)
		}, nil
	default:
		return func() {}, nil
	}
}

// Dir maps a database/sql driver name to its migrations directory.
func Dir(driver string) (string, error) {
	switch driver {
	case "mysql":
		return "mysql", nil
	case "pgx", "postgres":
		return "postgres", nil
	case "sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("migrate: unsupported driver %q", driver)
	}
}

func ensureMigrationsTable(ctx context.Context, db *sqlx.Conn, dir string) error {
	var ddl string
	switch dir {
	case "mysql":
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at DATETIME(6) NOT NULL
    ) ENGINE=InnoDB;`
	case "postgres":
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL
    );`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TIMESTAMP NOT NULL
    );`
	}
	_, err := db.ExecContext(ctx, ddl)
	return err
}

func loadApplied(ctx context.Context, db *sqlx.Conn) (map[int]bool, error) {
	var versions []int
	if err := db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return nil, err
	}
	m := make(map[int]bool, len(versions))
	for _, v := range versions {
		m[v] = true
	}
	return m, nil
}

func recordApplied(ctx context.Context, db *sqlx.Conn, version int) error {
	q := db.Rebind("INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)")
	_, err := db.ExecContext(ctx, q, version, time.Now().UTC())
	return err
}

func parseVersion(name string) (int, error) {
	// Expect prefix like 0001_...
	i := strings.IndexByte(name, '_')
	if i <= 0 {
		return 0, fmt.Errorf("missing prefix number")
	}
	v, err := strconv.Atoi(name[:i])
	if err != nil {
		return 0, err
	}
	return v, nil
}
