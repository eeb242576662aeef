package dates

import (
	"time"

	"github.com/pkg/errors"
)

// DayFormat is the wire format for calendar dates.
const DayFormat = "2006-01-02"

// LocalDate converts an instant to the calendar day it falls on in the given
// IANA timezone. The result is that day at midnight UTC, which is how dates
// are stored and compared throughout the ledger.
func LocalDate(instant time.Time, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid timezone %q", timezone)
	}

	y, m, d := instant.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// ParseDay parses a YYYY-MM-DD string into a UTC midnight date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid date %q", s)
	}
	return t, nil
}

// FormatDay renders a date as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(DayFormat)
}
