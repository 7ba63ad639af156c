package domain

import "time"

// TimeEntry is a single record of time spent on a task. While IsRunning is
// true EndTime and DurationMinutes are nil.
type TimeEntry struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	TaskID          string     `json:"task_id"`
	TaskName        string     `json:"task_name"`
	ProjectID       string     `json:"project_id"`   // resolved from the task at creation
	ProjectName     string     `json:"project_name"` // snapshot taken with ProjectID
	Description     string     `json:"description"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes *int       `json:"duration_minutes"`
	IsRunning       bool       `json:"is_running"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Minutes returns the recorded duration, or 0 for a running entry.
func (e TimeEntry) Minutes() int {
	if e.DurationMinutes == nil {
		return 0
	}
	return *e.DurationMinutes
}

// EntryPatch holds the editable fields of a stopped entry. A nil field is left
// unchanged.
type EntryPatch struct {
	Description     *string
	DurationMinutes *int
}

// Empty reports whether the patch changes nothing.
func (p EntryPatch) Empty() bool {
	return p.Description == nil && p.DurationMinutes == nil
}

// EntryFilter selects entries of one user whose StartTime falls in Range.
type EntryFilter struct {
	UserID    string
	Range     DateRange
	TaskID    string // optional
	ProjectID string // optional
}

// RunningTimer is the active entry of a user together with the time elapsed
// since it started, as of the moment it was read.
type RunningTimer struct {
	Entry   TimeEntry
	Elapsed time.Duration
}

// WholeMinutes truncates d to whole minutes, never returning a negative value.
func WholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
