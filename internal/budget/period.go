// Package budget holds the pure budget-goal domain: calendar periods, the
// reference clock, sparse goal series and progress math. Nothing in this
// package performs I/O.
package budget

import (
	"fmt"
	"time"
)

// MinYear is the earliest year a goal may be recorded for.
const MinYear = 1800

// Period identifies one calendar month.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewPeriod returns the period for the given month and year without validating it.
func NewPeriod(month, year int) Period {
	return Period{Month: month, Year: year}
}

// PeriodOf returns the period containing t, in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// Validate checks month and year ranges.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("month must be between 1 and 12, got %d", p.Month)
	}
	if p.Year < MinYear {
		return fmt.Errorf("year must be %d or later, got %d", MinYear, p.Year)
	}
	return nil
}

// Compare orders periods by year, then month. It returns -1, 0 or 1.
func (p Period) Compare(other Period) int {
	switch {
	case p.Year < other.Year:
		return -1
	case p.Year > other.Year:
		return 1
	case p.Month < other.Month:
		return -1
	case p.Month > other.Month:
		return 1
	}
	return 0
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool { return p.Compare(other) < 0 }

// After reports whether p is strictly later than other.
func (p Period) After(other Period) bool { return p.Compare(other) > 0 }

// Next returns the following calendar month.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// MonthsUntil returns the number of months from p to other; negative when other is earlier.
func (p Period) MonthsUntil(other Period) int {
	return (other.Year-p.Year)*12 + (other.Month - p.Month)
}

// Bounds returns the first instant of the month and the first instant of the next month in loc.
func (p Period) Bounds(loc *time.Location) (start, end time.Time) {
	start = time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Clock reports the current reference period.
type Clock func() Period

// ZoneClock returns a Clock that reads now in loc. A nil now uses time.Now.
func ZoneClock(loc *time.Location, now func() time.Time) Clock {
	if now == nil {
		now = time.Now
	}
	return func() Period {
		return PeriodOf(now().In(loc))
	}
}

// FixedClock always reports p.
func FixedClock(p Period) Clock {
	return func() Period { return p }
}

// IsFuture reports whether p lies after the reference period current.
// Any month of an earlier year is accepted; within the current year only
// months up to the current month are.
func IsFuture(p, current Period) bool {
	if p.Year < current.Year {
		return false
	}
	if p.Year > current.Year {
		return true
	}
	return p.Month > current.Month
}
