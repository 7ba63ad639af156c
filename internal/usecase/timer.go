package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/domain"
	"timetrack/internal/ports"
)

// TimerController applies the business rules for live timers and manual
// entries on top of a TimeEntryStore.
type TimerController struct {
	Log   *slog.Logger
	Store ports.TimeEntryStore
	Tasks ports.TaskDirectory
	// Now defaults to time.Now.
	Now func() time.Time
}

// ManualEntry is the input of CreateManual. StartTime and EndTime are
// optional; missing ones are derived from DurationMinutes.
type ManualEntry struct {
	TaskID          string
	Description     string
	DurationMinutes int
	StartTime       *time.Time
	EndTime         *time.Time
}

var errNotInitialized = errors.New("timer controller not initialized: missing dependencies")

func (c *TimerController) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *TimerController) ready() error {
	if c.Store == nil || c.Tasks == nil || c.Log == nil {
		return errNotInitialized
	}
	return nil
}

// Start begins a running timer for userID on taskID. If the user already has
// one, domain.ErrActiveTimerConflict is returned and the existing timer is
// left untouched.
func (c *TimerController) Start(ctx context.Context, userID, taskID, description string) (domain.TimeEntry, error) {
	if err := c.ready(); err != nil {
		return domain.TimeEntry{}, err
	}
	if userID == "" || taskID == "" {
		return domain.TimeEntry{}, domain.ErrBadArguments
	}
	task, err := c.Tasks.ResolveTask(ctx, taskID)
	if err != nil {
		return domain.TimeEntry{}, err
	}

	e := c.newEntry(userID, task, description)
	e.StartTime = c.now()
	e.IsRunning = true

	out, err := c.Store.InsertRunning(ctx, e)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	c.Log.Info("timer started",
		slog.String("entry", out.ID),
		slog.String("user", userID),
		slog.String("task", taskID),
	)
	return out, nil
}

// Stop finalizes the running entry entryID owned by userID.
func (c *TimerController) Stop(ctx context.Context, userID, entryID string) (domain.TimeEntry, error) {
	if err := c.ready(); err != nil {
		return domain.TimeEntry{}, err
	}
	e, err := c.owned(ctx, userID, entryID)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if !e.IsRunning {
		return domain.TimeEntry{}, domain.ErrInvalidState
	}

	end := c.now()
	if end.Before(e.StartTime) {
		// Clock skew between replicas; an entry never ends before it starts.
		end = e.StartTime
	}
	minutes := domain.WholeMinutes(end.Sub(e.StartTime))

	out, err := c.Store.Finalize(ctx, entryID, end, minutes)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	c.Log.Info("timer stopped",
		slog.String("entry", entryID),
		slog.String("user", userID),
		slog.Int("minutes", minutes),
	)
	return out, nil
}

// CreateManual records a finished entry directly. It never interacts with the
// user's running timer.
func (c *TimerController) CreateManual(ctx context.Context, userID string, in ManualEntry) (domain.TimeEntry, error) {
	if err := c.ready(); err != nil {
		return domain.TimeEntry{}, err
	}
	if userID == "" || in.TaskID == "" {
		return domain.TimeEntry{}, domain.ErrBadArguments
	}
	if in.DurationMinutes <= 0 {
		return domain.TimeEntry{}, domain.ErrInvalidDuration
	}
	start, end, err := c.manualBounds(in)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	task, err := c.Tasks.ResolveTask(ctx, in.TaskID)
	if err != nil {
		return domain.TimeEntry{}, err
	}

	e := c.newEntry(userID, task, in.Description)
	e.StartTime = start
	e.EndTime = &end
	minutes := in.DurationMinutes
	e.DurationMinutes = &minutes

	out, err := c.Store.InsertStopped(ctx, e)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	c.Log.Info("manual entry created",
		slog.String("entry", out.ID),
		slog.String("user", userID),
		slog.String("task", in.TaskID),
		slog.Int("minutes", minutes),
	)
	return out, nil
}

func (c *TimerController) manualBounds(in ManualEntry) (time.Time, time.Time, error) {
	d := time.Duration(in.DurationMinutes) * time.Minute
	switch {
	case in.StartTime != nil && in.EndTime != nil:
		start, end := in.StartTime.UTC(), in.EndTime.UTC()
		if end.Before(start) {
			return time.Time{}, time.Time{}, domain.ErrInvalidRange
		}
		return start, end, nil
	case in.StartTime != nil:
		start := in.StartTime.UTC()
		return start, start.Add(d), nil
	case in.EndTime != nil:
		end := in.EndTime.UTC()
		return end.Add(-d), end, nil
	default:
		end := c.now()
		return end.Add(-d), end, nil
	}
}

// GetRunning returns the user's running timer, or nil. Elapsed is computed
// from the stored start time on every call.
func (c *TimerController) GetRunning(ctx context.Context, userID string) (*domain.RunningTimer, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, domain.ErrBadArguments
	}
	e, err := c.Store.GetRunning(ctx, userID)
	if err != nil || e == nil {
		return nil, err
	}
	elapsed := c.now().Sub(e.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}
	return &domain.RunningTimer{Entry: *e, Elapsed: elapsed}, nil
}

// Get returns one of the user's entries.
func (c *TimerController) Get(ctx context.Context, userID, entryID string) (domain.TimeEntry, error) {
	if err := c.ready(); err != nil {
		return domain.TimeEntry{}, err
	}
	return c.owned(ctx, userID, entryID)
}

// List returns the user's entries in f.Range, most recent first. Running
// entries are included.
func (c *TimerController) List(ctx context.Context, userID string, f domain.EntryFilter) ([]domain.TimeEntry, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, domain.ErrBadArguments
	}
	if !f.Range.Valid() {
		return nil, domain.ErrInvalidRange
	}
	f.UserID = userID
	return c.Store.Query(ctx, f)
}

// Update edits the description or duration of a stopped entry.
func (c *TimerController) Update(ctx context.Context, userID, entryID string, p domain.EntryPatch) (domain.TimeEntry, error) {
	if err := c.ready(); err != nil {
		return domain.TimeEntry{}, err
	}
	if p.Empty() {
		return domain.TimeEntry{}, domain.ErrBadArguments
	}
	if p.DurationMinutes != nil && *p.DurationMinutes <= 0 {
		return domain.TimeEntry{}, domain.ErrInvalidDuration
	}
	e, err := c.owned(ctx, userID, entryID)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if e.IsRunning {
		return domain.TimeEntry{}, domain.ErrInvalidState
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		p.Description = &d
	}
	out, err := c.Store.Update(ctx, entryID, p)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	c.Log.Debug("entry updated", slog.String("entry", entryID), slog.String("user", userID))
	return out, nil
}

// Delete removes a stopped entry. Running entries must be stopped first.
func (c *TimerController) Delete(ctx context.Context, userID, entryID string) error {
	if err := c.ready(); err != nil {
		return err
	}
	e, err := c.owned(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if e.IsRunning {
		return domain.ErrInvalidState
	}
	if err := c.Store.Delete(ctx, entryID); err != nil {
		return err
	}
	c.Log.Info("entry deleted", slog.String("entry", entryID), slog.String("user", userID))
	return nil
}

// owned loads entryID and checks that userID owns it.
func (c *TimerController) owned(ctx context.Context, userID, entryID string) (domain.TimeEntry, error) {
	if userID == "" || entryID == "" {
		return domain.TimeEntry{}, domain.ErrBadArguments
	}
	e, err := c.Store.Get(ctx, entryID)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if e.UserID != userID {
		return domain.TimeEntry{}, fmt.Errorf("%w: entry %s", domain.ErrNotOwner, entryID)
	}
	return e, nil
}

func (c *TimerController) newEntry(userID string, task domain.TaskRef, description string) domain.TimeEntry {
	return domain.TimeEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		TaskID:      task.ID,
		TaskName:    task.Name,
		ProjectID:   task.ProjectID,
		ProjectName: task.ProjectName,
		Description: strings.TrimSpace(description),
	}
}
