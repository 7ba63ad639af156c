package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"timetrack/internal/domain"
	"timetrack/internal/ports"
)

// TimesheetFilter narrows a timesheet to one task or project.
type TimesheetFilter struct {
	TaskID    string
	ProjectID string
}

// TimesheetAggregator builds read-only reports over stored entries.
type TimesheetAggregator struct {
	Log   *slog.Logger
	Store ports.TimeEntryStore
}

// Summarize groups the user's finalized entries in r by project. Entries still
// running are left out of the report entirely: their duration is not settled.
func (a *TimesheetAggregator) Summarize(ctx context.Context, userID string, r domain.DateRange, f TimesheetFilter) (domain.Timesheet, error) {
	if a.Store == nil || a.Log == nil {
		return domain.Timesheet{}, errors.New("timesheet aggregator not initialized: missing dependencies")
	}
	if userID == "" {
		return domain.Timesheet{}, domain.ErrBadArguments
	}
	if !r.Valid() {
		return domain.Timesheet{}, domain.ErrInvalidRange
	}

	entries, err := a.Store.Query(ctx, domain.EntryFilter{
		UserID:    userID,
		Range:     r,
		TaskID:    f.TaskID,
		ProjectID: f.ProjectID,
	})
	if err != nil {
		return domain.Timesheet{}, err
	}

	ts := Aggregate(entries)
	ts.UserID = userID
	ts.Range = r
	a.Log.Debug("timesheet built",
		slog.String("user", userID),
		slog.Time("from", r.From),
		slog.Time("to", r.To),
		slog.Int("entries", ts.EntryCount),
		slog.Int("minutes", ts.GrandTotalMinutes),
	)
	return ts, nil
}

// Aggregate computes totals and per-project groups for entries, which are
// expected most recent first. Running entries are skipped.
func Aggregate(entries []domain.TimeEntry) domain.Timesheet {
	ts := domain.Timesheet{
		ByProject: []domain.ProjectSummary{},
		Entries:   []domain.TimeEntry{},
	}
	groups := make(map[string]*domain.ProjectSummary)
	for _, e := range entries {
		if e.IsRunning {
			continue
		}
		m := e.Minutes()
		ts.Entries = append(ts.Entries, e)
		ts.GrandTotalMinutes += m

		g, ok := groups[e.ProjectID]
		if !ok {
			g = &domain.ProjectSummary{
				ProjectID:   e.ProjectID,
				ProjectName: e.ProjectName,
				Entries:     []domain.TimeEntry{},
			}
			groups[e.ProjectID] = g
		}
		g.TotalMinutes += m
		g.Entries = append(g.Entries, e)
	}
	ts.EntryCount = len(ts.Entries)
	ts.TotalHours = domain.Round2(float64(ts.GrandTotalMinutes) / 60)

	for _, g := range groups {
		ts.ByProject = append(ts.ByProject, *g)
	}
	sort.Slice(ts.ByProject, func(i, j int) bool {
		a, b := ts.ByProject[i], ts.ByProject[j]
		if a.TotalMinutes != b.TotalMinutes {
			return a.TotalMinutes > b.TotalMinutes
		}
		if a.ProjectName != b.ProjectName {
			return a.ProjectName < b.ProjectName
		}
		return a.ProjectID < b.ProjectID
	})
	assignPercentages(ts.ByProject, ts.GrandTotalMinutes)
	return ts
}

// assignPercentages sets each group's share of total in hundredths of a
// percent, so that the shares add up to exactly 100. Every group gets its
// floored share; the hundredths left over go to the largest remainders, ties
// keeping the order of groups.
func assignPercentages(groups []domain.ProjectSummary, total int) {
	if total <= 0 || len(groups) == 0 {
		return
	}
	const whole = 100 * 100

	shares := make([]int, len(groups))
	rems := make([]int, len(groups))
	left := whole
	for i, g := range groups {
		n := g.TotalMinutes * whole
		shares[i], rems[i] = n/total, n%total
		left -= shares[i]
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rems[order[a]] > rems[order[b]] })
	for k := 0; k < left; k++ {
		shares[order[k%len(order)]]++
	}

	for i := range groups {
		groups[i].Percentage = float64(shares[i]) / 100
	}
}
