package app

import (
	"fmt"
	"net/url"
	"time"

	"timetrack/internal/domain"
)

// DefaultWindow is the report span used when no start date is given.
const DefaultWindow = 7 * 24 * time.Hour

// ParseStart parses a start boundary that may be RFC3339 or YYYY-MM-DD.
// If empty, defaultVal is returned.
func ParseStart(val string, defaultVal time.Time) (time.Time, error) {
	if val == "" {
		return defaultVal, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	// Date-only in UTC at 00:00
	if d, err := time.Parse("2006-01-02", val); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid start %q, expected RFC3339 or YYYY-MM-DD", domain.ErrBadArguments, val)
}

// ParseEnd parses an end boundary that may be RFC3339 or YYYY-MM-DD.
// Date-only form covers the whole day: it yields the last representable
// instant before the next day's 00:00 UTC.
// If empty, defaultVal is returned.
func ParseEnd(val string, defaultVal time.Time) (time.Time, error) {
	if val == "" {
		return defaultVal, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.Parse("2006-01-02", val); err == nil {
		next := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, time.UTC)
		return next.Add(-time.Microsecond), nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid end %q, expected RFC3339 or YYYY-MM-DD", domain.ErrBadArguments, val)
}

// ParseRange reads start_date and end_date from q. Defaults to the
// DefaultWindow ending at now.
func ParseRange(q url.Values, now time.Time) (domain.DateRange, error) {
	to, err := ParseEnd(q.Get("end_date"), now.UTC())
	if err != nil {
		return domain.DateRange{}, err
	}
	from, err := ParseStart(q.Get("start_date"), to.Add(-DefaultWindow))
	if err != nil {
		return domain.DateRange{}, err
	}
	r := domain.DateRange{From: from, To: to}
	if !r.Valid() {
		return domain.DateRange{}, domain.ErrInvalidRange
	}
	return r, nil
}
