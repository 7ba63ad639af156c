package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"timetrack/internal/domain"
	"timetrack/internal/ports"
)

// Store implements ports.TimeEntryStore on MySQL, PostgreSQL (pgx) or SQLite.
// The running-timer rule is enforced by a unique index, so it holds across
// any number of service replicas sharing the database.
type Store struct {
	db  *sqlx.DB
	log *slog.Logger
}

var _ ports.TimeEntryStore = (*Store)(nil)

// Open connects to the database identified by driver ("mysql", "pgx" or
// "sqlite3") and dsn.
// Example MySQL DSN: user:pass@tcp(host:3306)/dbname
func Open(ctx context.Context, driver, dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlstore: DSN is required")
	}
	dsn, err := normalizeDSN(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: parse dsn: %w", err)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == driverSQLite {
		// One connection: SQLite serializes writers anyway, and an in-memory
		// database only lives as long as its connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const entryColumns = `id, user_id, task_id, task_name, project_id, project_name, description,
	start_time, end_time, duration_minutes, is_running, created_at, updated_at`

type entryRow struct {
	ID              string        `db:"id"`
	UserID          string        `db:"user_id"`
	TaskID          string        `db:"task_id"`
	TaskName        string        `db:"task_name"`
	ProjectID       string        `db:"project_id"`
	ProjectName     string        `db:"project_name"`
	Description     string        `db:"description"`
	StartTime       time.Time     `db:"start_time"`
	EndTime         sql.NullTime  `db:"end_time"`
	DurationMinutes sql.NullInt64 `db:"duration_minutes"`
	IsRunning       bool          `db:"is_running"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

func (r entryRow) toDomain() domain.TimeEntry {
	e := domain.TimeEntry{
		ID:          r.ID,
		UserID:      r.UserID,
		TaskID:      r.TaskID,
		TaskName:    r.TaskName,
		ProjectID:   r.ProjectID,
		ProjectName: r.ProjectName,
		Description: r.Description,
		StartTime:   r.StartTime.UTC(),
		IsRunning:   r.IsRunning,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.EndTime.Valid {
		end := r.EndTime.Time.UTC()
		e.EndTime = &end
	}
	if r.DurationMinutes.Valid {
		d := int(r.DurationMinutes.Int64)
		e.DurationMinutes = &d
	}
	return e
}

// dbTime matches the microsecond precision of DATETIME(6) and TIMESTAMPTZ.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s *Store) InsertRunning(ctx context.Context, e domain.TimeEntry) (domain.TimeEntry, error) {
	e.IsRunning = true
	e.EndTime = nil
	e.DurationMinutes = nil
	out, err := s.insert(ctx, e)
	if err != nil {
		if isRunningConflict(s.db.DriverName(), err) {
			s.log.Debug("running timer conflict", slog.String("user", e.UserID))
			return domain.TimeEntry{}, domain.ErrActiveTimerConflict
		}
		return domain.TimeEntry{}, err
	}
	return out, nil
}

func (s *Store) InsertStopped(ctx context.Context, e domain.TimeEntry) (domain.TimeEntry, error) {
	if e.EndTime == nil || e.DurationMinutes == nil {
		return domain.TimeEntry{}, fmt.Errorf("%w: stopped entry needs end time and duration", domain.ErrBadArguments)
	}
	e.IsRunning = false
	return s.insert(ctx, e)
}

func (s *Store) insert(ctx context.Context, e domain.TimeEntry) (domain.TimeEntry, error) {
	now := dbTime(time.Now())
	e.StartTime = dbTime(e.StartTime)
	if e.EndTime != nil {
		end := dbTime(*e.EndTime)
		e.EndTime = &end
	}
	e.CreatedAt = now
	e.UpdatedAt = now

	var (
		end      sql.NullTime
		duration sql.NullInt64
	)
	if e.EndTime != nil {
		end = sql.NullTime{Time: *e.EndTime, Valid: true}
	}
	if e.DurationMinutes != nil {
		duration = sql.NullInt64{Int64: int64(*e.DurationMinutes), Valid: true}
	}

	q := s.db.Rebind(`
INSERT INTO time_entries
  (` + entryColumns + `)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q,
		e.ID,
		e.UserID,
		e.TaskID,
		e.TaskName,
		e.ProjectID,
		e.ProjectName,
		e.Description,
		e.StartTime,
		end,
		duration,
		e.IsRunning,
		e.CreatedAt,
		e.UpdatedAt,
	); err != nil {
		if isCheckViolation(s.db.DriverName(), err) {
			return domain.TimeEntry{}, domain.ErrInvalidRange
		}
		return domain.TimeEntry{}, fmt.Errorf("insert time entry: %w", err)
	}
	return e, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.TimeEntry, error) {
	return s.getEntry(ctx, s.db, id)
}

func (s *Store) GetRunning(ctx context.Context, userID string) (*domain.TimeEntry, error) {
	q := s.db.Rebind(`SELECT ` + entryColumns + ` FROM time_entries WHERE user_id = ? AND is_running = ?`)
	var r entryRow
	if err := s.db.GetContext(ctx, &r, q, userID, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get running entry: %w", err)
	}
	e := r.toDomain()
	return &e, nil
}

func (s *Store) Finalize(ctx context.Context, id string, endTime time.Time, durationMinutes int) (domain.TimeEntry, error) {
	if durationMinutes < 0 {
		return domain.TimeEntry{}, domain.ErrInvalidDuration
	}
	var out domain.TimeEntry
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(`
UPDATE time_entries
SET end_time = ?, duration_minutes = ?, is_running = ?, updated_at = ?
WHERE id = ? AND is_running = ?`)
		res, err := tx.ExecContext(ctx, q, dbTime(endTime), durationMinutes, false, dbTime(time.Now()), id, true)
		if err != nil {
			if isCheckViolation(s.db.DriverName(), err) {
				return domain.ErrInvalidRange
			}
			return fmt.Errorf("finalize time entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if err := s.expectState(ctx, tx, id, true); err != nil {
				return err
			}
		}
		out, err = s.getEntry(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.TimeEntry{}, err
	}
	return out, nil
}

func (s *Store) Query(ctx context.Context, f domain.EntryFilter) ([]domain.TimeEntry, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + entryColumns + ` FROM time_entries WHERE user_id = ? AND start_time >= ? AND start_time <= ?`)
	args = append(args, f.UserID, dbTime(f.Range.From), dbTime(f.Range.To))

	if f.TaskID != "" {
		sb.WriteString(" AND task_id = ?")
		args = append(args, f.TaskID)
	}
	if f.ProjectID != "" {
		sb.WriteString(" AND project_id = ?")
		args = append(args, f.ProjectID)
	}
	sb.WriteString(" ORDER BY start_time DESC, id DESC")

	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(sb.String()), args...); err != nil {
		return nil, fmt.Errorf("query time entries: %w", err)
	}
	out := make([]domain.TimeEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id string, p domain.EntryPatch) (domain.TimeEntry, error) {
	if p.Empty() {
		return domain.TimeEntry{}, domain.ErrBadArguments
	}
	var out domain.TimeEntry
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var (
			set  []string
			args []any
		)
		if p.Description != nil {
			set = append(set, "description = ?")
			args = append(args, strings.TrimSpace(*p.Description))
		}
		if p.DurationMinutes != nil {
			set = append(set, "duration_minutes = ?")
			args = append(args, *p.DurationMinutes)
		}
		set = append(set, "updated_at = ?")
		args = append(args, dbTime(time.Now()), id, false)

		q := tx.Rebind(`UPDATE time_entries SET ` + strings.Join(set, ", ") + ` WHERE id = ? AND is_running = ?`)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			if isCheckViolation(s.db.DriverName(), err) {
				return domain.ErrInvalidDuration
			}
			return fmt.Errorf("update time entry: %w", err)
		}
		// MySQL counts changed rows only, so zero may also mean "nothing to change".
		if n, _ := res.RowsAffected(); n == 0 {
			if err := s.expectState(ctx, tx, id, false); err != nil {
				return err
			}
		}
		out, err = s.getEntry(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.TimeEntry{}, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		q := tx.Rebind(`DELETE FROM time_entries WHERE id = ? AND is_running = ?`)
		res, err := tx.ExecContext(ctx, q, id, false)
		if err != nil {
			return fmt.Errorf("delete time entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.expectState(ctx, tx, id, false)
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) getEntry(ctx context.Context, q sqlx.QueryerContext, id string) (domain.TimeEntry, error) {
	var r entryRow
	query := s.db.Rebind(`SELECT ` + entryColumns + ` FROM time_entries WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TimeEntry{}, domain.ErrEntryNotFound
		}
		return domain.TimeEntry{}, fmt.Errorf("get time entry: %w", err)
	}
	return r.toDomain(), nil
}

// expectState explains why a conditional write matched no row: the entry is
// missing, or its running flag differs from running. It returns nil when the
// entry exists in the expected state.
func (s *Store) expectState(ctx context.Context, q sqlx.QueryerContext, id string, running bool) error {
	e, err := s.getEntry(ctx, q, id)
	if err != nil {
		return err
	}
	if e.IsRunning != running {
		return domain.ErrInvalidState
	}
	return nil
}
