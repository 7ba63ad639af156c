package domain

import (
	"math"
	"time"
)

// DateRange is a closed interval [From, To].
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Valid reports whether From is not after To.
func (r DateRange) Valid() bool {
	return !r.From.After(r.To)
}

// Contains reports whether t lies within the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// ProjectSummary aggregates the finalized entries of one project.
type ProjectSummary struct {
	ProjectID    string      `json:"project_id"`
	ProjectName  string      `json:"project_name"`
	TotalMinutes int         `json:"total_minutes"`
	Percentage   float64     `json:"percentage"`
	Entries      []TimeEntry `json:"entries"`
}

// Timesheet is the report produced for a user over a date range.
type Timesheet struct {
	UserID            string           `json:"user_id"`
	Range             DateRange        `json:"range"`
	GrandTotalMinutes int              `json:"grand_total_minutes"`
	TotalHours        float64          `json:"total_hours"`
	EntryCount        int              `json:"entry_count"`
	ByProject         []ProjectSummary `json:"by_project"`
	Entries           []TimeEntry      `json:"entries"`
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
