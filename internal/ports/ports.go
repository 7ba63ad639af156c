package ports

import (
	"context"
	"time"

	"timetrack/internal/domain"
)

// TimeEntryStore is the durable home of time entries and the sole enforcement
// point of the one-running-timer-per-user rule.
type TimeEntryStore interface {
	// InsertRunning stores e as the user's running timer, failing with
	// domain.ErrActiveTimerConflict when one already exists. The check and the
	// insert are a single atomic datastore operation.
	InsertRunning(ctx context.Context, e domain.TimeEntry) (domain.TimeEntry, error)
	InsertStopped(ctx context.Context, e domain.TimeEntry) (domain.TimeEntry, error)
	// GetRunning returns nil when the user has no running timer.
	GetRunning(ctx context.Context, userID string) (*domain.TimeEntry, error)
	Get(ctx context.Context, id string) (domain.TimeEntry, error)
	Finalize(ctx context.Context, id string, endTime time.Time, durationMinutes int) (domain.TimeEntry, error)
	Query(ctx context.Context, f domain.EntryFilter) ([]domain.TimeEntry, error)
	Update(ctx context.Context, id string, p domain.EntryPatch) (domain.TimeEntry, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// TaskDirectory resolves tasks owned by the surrounding project-management
// system.
type TaskDirectory interface {
	ResolveTask(ctx context.Context, taskID string) (domain.TaskRef, error)
}
