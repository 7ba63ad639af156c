package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"timetrack/internal/domain"
)

var csvHeader = []string{"Date", "Task", "Project", "Description", "Duration (hours)"}

// WriteCSV writes one row per entry in the given order. Dates are the UTC
// calendar day of the start time; durations are hours with two decimals.
func WriteCSV(w io.Writer, entries []domain.TimeEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		task := e.TaskName
		if task == "" {
			task = e.TaskID
		}
		project := e.ProjectName
		if project == "" {
			project = e.ProjectID
		}
		row := []string{
			e.StartTime.UTC().Format("2006-01-02"),
			task,
			project,
			e.Description,
			strconv.FormatFloat(float64(e.Minutes())/60, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
