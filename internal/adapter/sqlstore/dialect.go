package sqlstore

import (
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Name of the unique index (MySQL: unique key on a generated column) that
// holds at most one running entry per user.
const runningIndex = "uq_time_entries_running"

const (
	driverMySQL    = "mysql"
	driverPostgres = "pgx"
	driverSQLite   = "sqlite3"
)

// normalizeDSN applies driver options the store relies on.
func normalizeDSN(driver, dsn string) (string, error) {
	if driver != driverMySQL {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// migration files hold several statements each
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

// isRunningConflict reports whether err is a violation of the running-timer
// unique index, as opposed to any other constraint.
func isRunningConflict(driver string, err error) bool {
	switch driver {
	case driverMySQL:
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == 1062 && strings.Contains(me.Message, runningIndex)
	case driverPostgres:
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == runningIndex
	case driverSQLite:
		var se sqlite3.Error
		return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique &&
			strings.Contains(se.Error(), "time_entries.user_id")
	}
	return false
}

func isCheckViolation(driver string, err error) bool {
	switch driver {
	case driverMySQL:
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == 3819
	case driverPostgres:
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23514"
	case driverSQLite:
		var se sqlite3.Error
		return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	return false
}
