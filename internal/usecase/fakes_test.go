package usecase

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"timetrack/internal/domain"
	"timetrack/internal/ports"
)

// memStore is an in-memory TimeEntryStore. Its mutex makes the running check
// and the insert one atomic step, like the unique index does in SQL.
type memStore struct {
	mu      sync.Mutex
	entries map[string]domain.TimeEntry
	failErr error
}

var _ ports.TimeEntryStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]domain.TimeEntry)}
}

func (m *memStore) InsertRunning(_ context.Context, e domain.TimeEntry) (domain.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return domain.TimeEntry{}, m.failErr
	}
	for _, x := range m.entries {
		if x.UserID == e.UserID && x.IsRunning {
			return domain.TimeEntry{}, domain.ErrActiveTimerConflict
		}
	}
	e.IsRunning = true
	e.EndTime, e.DurationMinutes = nil, nil
	m.entries[e.ID] = e
	return e, nil
}

func (m *memStore) InsertStopped(_ context.Context, e domain.TimeEntry) (domain.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return domain.TimeEntry{}, m.failErr
	}
	e.IsRunning = false
	m.entries[e.ID] = e
	return e, nil
}

func (m *memStore) GetRunning(_ context.Context, userID string) (*domain.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.entries {
		if x.UserID == userID && x.IsRunning {
			return &x, nil
		}
	}
	return nil, nil
}

func (m *memStore) Get(_ context.Context, id string) (domain.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.TimeEntry{}, domain.ErrEntryNotFound
	}
	return e, nil
}

func (m *memStore) Finalize(_ context.Context, id string, end time.Time, minutes int) (domain.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.TimeEntry{}, domain.ErrEntryNotFound
	}
	if !e.IsRunning {
		return domain.TimeEntry{}, domain.ErrInvalidState
	}
	e.IsRunning = false
	e.EndTime = &end
	e.DurationMinutes = &minutes
	m.entries[id] = e
	return e, nil
}

func (m *memStore) Query(_ context.Context, f domain.EntryFilter) ([]domain.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	out := []domain.TimeEntry{}
	for _, e := range m.entries {
		if e.UserID != f.UserID || !f.Range.Contains(e.StartTime) {
			continue
		}
		if f.TaskID != "" && e.TaskID != f.TaskID {
			continue
		}
		if f.ProjectID != "" && e.ProjectID != f.ProjectID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) Update(_ context.Context, id string, p domain.EntryPatch) (domain.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.TimeEntry{}, domain.ErrEntryNotFound
	}
	if e.IsRunning {
		return domain.TimeEntry{}, domain.ErrInvalidState
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.DurationMinutes != nil {
		d := *p.DurationMinutes
		e.DurationMinutes = &d
	}
	m.entries[id] = e
	return e, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	if e.IsRunning {
		return domain.ErrInvalidState
	}
	delete(m.entries, id)
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.failErr }

func (m *memStore) runningCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID && e.IsRunning {
			n++
		}
	}
	return n
}

// fakeDirectory resolves tasks from a fixed map.
type fakeDirectory struct {
	tasks map[string]domain.TaskRef
	err   error
}

func (f fakeDirectory) ResolveTask(_ context.Context, id string) (domain.TaskRef, error) {
	if f.err != nil {
		return domain.TaskRef{}, f.err
	}
	t, ok := f.tasks[id]
	if !ok {
		return domain.TaskRef{}, domain.ErrTaskNotFound
	}
	return t, nil
}

var testTasks = fakeDirectory{tasks: map[string]domain.TaskRef{
	"t1": {ID: "t1", Name: "Design", ProjectID: "p1", ProjectName: "Website"},
	"t2": {ID: "t2", Name: "Build", ProjectID: "p1", ProjectName: "Website"},
	"t3": {ID: "t3", Name: "Review", ProjectID: "p2", ProjectName: "Mobile"},
}}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newController(store *memStore, clk *clock) *TimerController {
	return &TimerController{
		Log:   discardLogger(),
		Store: store,
		Tasks: testTasks,
		Now:   clk.Now,
	}
}
